package graph

import (
	"fmt"
	"strconv"
)

// Graph is an ordered collection of nodes with id lookup. It is built once per
// submission and is not safe for concurrent mutation.
type Graph struct {
	nodes []*Node
	byID  map[string]*Node
}

// New creates an empty Graph.
func New() *Graph {
	return &Graph{byID: make(map[string]*Node)}
}

// AddNode inserts n under the current node count (as a decimal string) and
// returns the assigned id.
func (g *Graph) AddNode(n Noder) (string, error) {
	id := strconv.Itoa(len(g.nodes))
	if err := g.AddNodeWithID(n, id); err != nil {
		return "", err
	}
	return id, nil
}

// AddNodeWithID inserts n under id, which is kept verbatim.
func (g *Graph) AddNodeWithID(n Noder, id string) error {
	if n == nil || n.Base() == nil {
		return fmt.Errorf("add node %q: nil node", id)
	}
	node := n.Base()
	if node.hasID {
		return fmt.Errorf("add node %q: %s: %w", id, node, ErrAlreadyInserted)
	}
	if _, ok := g.byID[id]; ok {
		return fmt.Errorf("add node %q: %w", id, ErrDuplicateID)
	}
	node.id = id
	node.hasID = true
	g.nodes = append(g.nodes, node)
	g.byID[id] = node
	return nil
}

// Node looks a node up by id.
func (g *Graph) Node(id string) (*Node, bool) {
	n, ok := g.byID[id]
	return n, ok
}

// Nodes returns the nodes in insertion order. The slice is a copy.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, len(g.nodes))
	copy(out, g.nodes)
	return out
}

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.nodes) }

// Edge is one resolved connection inside a Graph.
type Edge struct {
	From        string
	OutputIndex int
	To          string
	Input       string
}

// Edges returns every connection, ordered by target node insertion order and
// then by input name.
func (g *Graph) Edges() []Edge {
	var out []Edge
	for _, n := range g.nodes {
		for _, name := range n.InputNames() {
			ref, ok := n.inputs[name].(OutputRef)
			if !ok {
				continue
			}
			out = append(out, Edge{From: ref.NodeID, OutputIndex: ref.OutputIndex, To: n.id, Input: name})
		}
	}
	return out
}
