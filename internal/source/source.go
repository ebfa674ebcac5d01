// Package source enumerates and reads the Python files of a repository.
package source

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/afero"

	"github.com/ppiankov/codespectre/internal/agent"
)

// DefaultExcludeDirs are directory names never descended into.
var DefaultExcludeDirs = []string{".venv", "venv", "__pycache__", ".git", "node_modules"}

// File is a Python source file under the repository root.
type File struct {
	// Path is relative to the root, slash separated.
	Path string
	// Name is the base name, used for call-graph node labels.
	Name string
}

// PythonFiles returns every *.py file under root in lexical order, skipping
// DefaultExcludeDirs and any extra directory names given.
func PythonFiles(root agent.Root, extraExclude ...string) ([]File, error) {
	exclude := append(slices.Clone(DefaultExcludeDirs), extraExclude...)

	var files []File
	err := afero.Walk(root.FS, root.Path, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if path == root.Path {
				return err
			}
			return nil
		}
		if info.IsDir() {
			if path != root.Path && slices.Contains(exclude, info.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !info.Mode().IsRegular() || !strings.EqualFold(filepath.Ext(path), ".py") {
			return nil
		}

		rel, err := filepath.Rel(root.Path, path)
		if err != nil {
			return nil
		}
		files = append(files, File{Path: filepath.ToSlash(rel), Name: info.Name()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root.Path, err)
	}
	return files, nil
}

// Read returns the contents of a file returned by PythonFiles.
func Read(root agent.Root, f File) ([]byte, error) {
	return afero.ReadFile(root.FS, filepath.Join(root.Path, filepath.FromSlash(f.Path)))
}

// CountLines counts lines the way text editors do: a trailing newline does not
// start an extra line, and \r\n and \r both end a line.
func CountLines(content []byte) int {
	if len(content) == 0 {
		return 0
	}
	text := strings.ReplaceAll(string(content), "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	n := strings.Count(text, "\n")
	if !strings.HasSuffix(text, "\n") {
		n++
	}
	return n
}
