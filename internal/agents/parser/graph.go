package parser

import (
	"gonum.org/v1/gonum/graph/simple"
)

// callGraph is a directed graph of string-labelled nodes without parallel
// edges. Adding an edge adds both endpoints as nodes.
type callGraph struct {
	g   *simple.DirectedGraph
	ids map[string]int64
}

func newCallGraph() *callGraph {
	return &callGraph{
		g:   simple.NewDirectedGraph(),
		ids: make(map[string]int64),
	}
}

func (c *callGraph) node(label string) simple.Node {
	if id, ok := c.ids[label]; ok {
		return simple.Node(id)
	}
	n := c.g.NewNode()
	c.g.AddNode(n)
	c.ids[label] = n.ID()
	return simple.Node(n.ID())
}

func (c *callGraph) addNode(label string) {
	c.node(label)
}

// addEdge records from -> to. Caller labels are file qualified and callee
// labels are bare names, so the endpoints never coincide.
func (c *callGraph) addEdge(from, to string) {
	f, t := c.node(from), c.node(to)
	if f == t {
		return
	}
	c.g.SetEdge(c.g.NewEdge(f, t))
}

func (c *callGraph) nodeCount() int { return c.g.Nodes().Len() }

func (c *callGraph) edgeCount() int { return c.g.Edges().Len() }
