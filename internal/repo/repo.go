// Package repo resolves a repository locator to a directory on disk, cloning
// remote repositories into a temporary directory.
package repo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// Errors returned by Acquire.
var (
	ErrEmptyLocator        = errors.New("repository locator is empty")
	ErrUnsupportedProtocol = errors.New("unsupported repository protocol")
	ErrCloneFailed         = errors.New("failed to clone repository")
)

// AllowedSchemes lists the remote locator prefixes that may be cloned.
var AllowedSchemes = []string{"https://", "http://", "git@"}

// Commander executes external commands. It allows mocking git in tests.
type Commander interface {
	Run(ctx context.Context, name string, args ...string) (string, error)
}

// ShellCommander runs real commands.
type ShellCommander struct{}

// Run executes name with args and returns trimmed stdout. Stderr is folded into
// the error.
func (ShellCommander) Run(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("%w: %s", err, msg)
		}
		return "", err
	}
	return strings.TrimSpace(stdout.String()), nil
}

// Checkout is an acquired repository. Close removes a temporary clone.
type Checkout struct {
	Path   string
	Remote bool

	fs   afero.Fs
	temp string
}

// Close removes the clone directory, if one was created.
func (c *Checkout) Close() error {
	if c.temp == "" {
		return nil
	}
	err := c.fs.RemoveAll(c.temp)
	c.temp = ""
	return err
}

// Acquirer resolves locators.
type Acquirer struct {
	fs  afero.Fs
	cmd Commander
}

// NewAcquirer returns an Acquirer using the OS filesystem and the git binary.
func NewAcquirer() *Acquirer {
	return &Acquirer{fs: afero.NewOsFs(), cmd: ShellCommander{}}
}

// NewAcquirerWith returns an Acquirer with a custom filesystem and commander.
func NewAcquirerWith(fs afero.Fs, cmd Commander) *Acquirer {
	return &Acquirer{fs: fs, cmd: cmd}
}

// Acquire returns a checkout for locator. An existing local path is used in
// place; anything else must be a remote URL with an allowed scheme and is
// shallow-cloned into a temporary directory.
func (a *Acquirer) Acquire(ctx context.Context, locator string) (*Checkout, error) {
	locator = strings.TrimSpace(locator)
	if locator == "" {
		return nil, ErrEmptyLocator
	}

	if local := expandHome(locator); local != "" {
		if info, err := a.fs.Stat(local); err == nil && info.IsDir() {
			abs, err := filepath.Abs(local)
			if err != nil {
				return nil, fmt.Errorf("resolve %s: %w", local, err)
			}
			return &Checkout{Path: abs, fs: a.fs}, nil
		}
	}

	if !IsRemote(locator) {
		return nil, fmt.Errorf("%w: %q (expected an existing directory or one of %s)",
			ErrUnsupportedProtocol, locator, strings.Join(AllowedSchemes, ", "))
	}

	dir, err := afero.TempDir(a.fs, "", "codespectre-")
	if err != nil {
		return nil, fmt.Errorf("create clone directory: %w", err)
	}

	slog.Info("Cloning repository", "url", locator)
	if _, err := a.cmd.Run(ctx, "git", "clone", "--depth", "1", "--", locator, dir); err != nil {
		_ = a.fs.RemoveAll(dir)
		return nil, fmt.Errorf("%w: %v", ErrCloneFailed, err)
	}
	return &Checkout{Path: dir, Remote: true, fs: a.fs, temp: dir}, nil
}

// IsRemote reports whether locator starts with an allowed remote scheme.
func IsRemote(locator string) bool {
	for _, s := range AllowedSchemes {
		if strings.HasPrefix(locator, s) {
			return true
		}
	}
	return false
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		return filepath.Join(home, strings.TrimPrefix(p, "~"))
	}
	return p
}
