package parser

import "testing"

func TestCallGraphCounts(t *testing.T) {
	g := newCallGraph()
	g.addNode("app.py:foo")
	g.addEdge("app.py:foo", "bar")
	g.addEdge("app.py:foo", "bar")
	g.addEdge("app.py:foo", "baz")
	g.addEdge("app.py:bar", "foo")
	g.addNode("app.py:foo")

	if got := g.nodeCount(); got != 5 {
		t.Errorf("nodeCount() = %d, want 5", got)
	}
	if got := g.edgeCount(); got != 3 {
		t.Errorf("edgeCount() = %d, want 3", got)
	}
}

func TestCallGraphEmpty(t *testing.T) {
	g := newCallGraph()
	if g.nodeCount() != 0 || g.edgeCount() != 0 {
		t.Errorf("empty graph = %d nodes, %d edges", g.nodeCount(), g.edgeCount())
	}
}
