// Package pyast extracts the few syntactic facts the agents need from Python
// source: function definitions with the names they call, nested for-loops and
// imported packages. Parsing is done with tree-sitter; no symbol resolution is
// attempted, call targets are bare identifiers only.
package pyast

import (
	"context"
	"fmt"
	"sort"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// File is a parsed Python module. Close releases the underlying tree.
type File struct {
	tree *sitter.Tree
	src  []byte
}

// Function is a def statement and the bare names called anywhere inside it.
type Function struct {
	Name  string
	Line  int
	Calls []string
}

// Parse parses Python source. A tree is produced even for invalid source; use
// HasError to find out whether the parser had to recover.
func Parse(ctx context.Context, src []byte) (*File, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(python.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("parse python: %w", err)
	}
	return &File{tree: tree, src: src}, nil
}

// Close releases the syntax tree.
func (f *File) Close() {
	if f.tree != nil {
		f.tree.Close()
		f.tree = nil
	}
}

// HasError reports whether the source contained syntax errors.
func (f *File) HasError() bool {
	return f.tree.RootNode().HasError()
}

// Functions returns every plain def (module level, methods and nested defs)
// in source order. async def is not counted as a function, but calls inside
// it still count toward an enclosing def.
func (f *File) Functions() []Function {
	var funcs []Function
	walk(f.tree.RootNode(), func(n *sitter.Node) {
		if n.Type() != "function_definition" || isAsync(n) {
			return
		}
		name := n.ChildByFieldName("name")
		if name == nil {
			return
		}
		fn := Function{
			Name: name.Content(f.src),
			Line: int(n.StartPoint().Row) + 1,
		}
		walk(n, func(c *sitter.Node) {
			if c.Type() != "call" {
				return
			}
			if target := c.ChildByFieldName("function"); target != nil && target.Type() == "identifier" {
				fn.Calls = append(fn.Calls, target.Content(f.src))
			}
		})
		funcs = append(funcs, fn)
	})
	return funcs
}

func isAsync(def *sitter.Node) bool {
	return def.ChildCount() > 0 && def.Child(0).Type() == "async"
}

// NestedLoops counts for statements that directly contain another for
// statement in their body or else clause.
func (f *File) NestedLoops() int {
	count := 0
	walk(f.tree.RootNode(), func(n *sitter.Node) {
		if n.Type() != "for_statement" {
			return
		}
		if blockHasFor(n.ChildByFieldName("body")) {
			count++
			return
		}
		if alt := n.ChildByFieldName("alternative"); alt != nil && blockHasFor(alt.ChildByFieldName("body")) {
			count++
		}
	})
	return count
}

func blockHasFor(block *sitter.Node) bool {
	if block == nil {
		return false
	}
	for i := 0; i < int(block.NamedChildCount()); i++ {
		if block.NamedChild(i).Type() == "for_statement" {
			return true
		}
	}
	return false
}

// Imports returns the sorted, de-duplicated top-level package names imported by
// the module. Relative imports are ignored.
func (f *File) Imports() []string {
	seen := make(map[string]bool)
	walk(f.tree.RootNode(), func(n *sitter.Node) {
		switch n.Type() {
		case "import_statement":
			for i := 0; i < int(n.NamedChildCount()); i++ {
				child := n.NamedChild(i)
				if child.Type() == "aliased_import" {
					child = child.ChildByFieldName("name")
				}
				if pkg := topLevel(child, f.src); pkg != "" {
					seen[pkg] = true
				}
			}
		case "import_from_statement":
			if pkg := topLevel(n.ChildByFieldName("module_name"), f.src); pkg != "" {
				seen[pkg] = true
			}
		}
	})

	out := make([]string, 0, len(seen))
	for pkg := range seen {
		out = append(out, pkg)
	}
	sort.Strings(out)
	return out
}

// topLevel returns the first segment of a dotted_name node.
func topLevel(n *sitter.Node, src []byte) string {
	if n == nil || n.Type() != "dotted_name" || n.NamedChildCount() == 0 {
		return ""
	}
	return n.NamedChild(0).Content(src)
}

// walk visits n and all its named descendants in pre-order.
func walk(n *sitter.Node, visit func(*sitter.Node)) {
	if n == nil {
		return
	}
	visit(n)
	for i := 0; i < int(n.NamedChildCount()); i++ {
		walk(n.NamedChild(i), visit)
	}
}
