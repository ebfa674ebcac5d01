package agent

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/afero"
)

// Agent is the interface every analysis unit implements. Name doubles as the
// key of the unit's slot in the merged Document.
//
// Run should report expected conditions (empty repository, unreadable files,
// unreachable collaborators) inside the returned Result rather than as an error.
type Agent interface {
	Name() string
	Run(ctx context.Context) (Result, error)
}

// Root is the repository being analysed. Agents only read from FS.
type Root struct {
	Path string
	FS   afero.Fs
}

// NewOsRoot returns a Root backed by the real filesystem, read-only.
func NewOsRoot(path string) Root {
	return Root{Path: path, FS: afero.NewReadOnlyFs(afero.NewOsFs())}
}

// Factory builds an agent for a repository root and free-form options.
type Factory func(root Root, opts Options) Agent

// Options carries free-form agent configuration such as sampling limits.
type Options map[string]any

// Int returns the option as an int, or def when absent or not numeric.
func (o Options) Int(key string, def int) int {
	switch v := o[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return def
}

// String returns the option as a string, or def when absent.
func (o Options) String(key, def string) string {
	if v, ok := o[key]; ok && v != nil {
		return fmt.Sprint(v)
	}
	return def
}

// Bool returns the option as a bool, or def when absent or unparsable.
func (o Options) Bool(key string, def bool) bool {
	switch v := o[key].(type) {
	case bool:
		return v
	case string:
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

// Strings returns the option as a string slice.
func (o Options) Strings(key string) []string {
	switch v := o[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, s := range v {
			out = append(out, fmt.Sprint(s))
		}
		return out
	case string:
		if v == "" {
			return nil
		}
		return strings.Split(v, ",")
	}
	return nil
}
