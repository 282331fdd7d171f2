// Package graph holds the in-memory model of a job graph: nodes, their input
// and output sockets, and the ordered Graph that serializes to the server's
// API prompt format.
package graph

import (
	"fmt"
	"sort"
)

// Noder is implemented by *Node and by every typed wrapper that embeds it.
type Noder interface {
	Base() *Node
}

// Node is one computation step. The class type is fixed at construction;
// the id is assigned once, when the node is inserted into a Graph.
type Node struct {
	id        string
	hasID     bool
	classType string
	inputs    map[string]any
}

// NewNode creates a generic node of the given class type.
func NewNode(classType string) *Node {
	return &Node{
		classType: classType,
		inputs:    make(map[string]any),
	}
}

// Base returns n itself so that *Node satisfies Noder.
func (n *Node) Base() *Node { return n }

// ClassType returns the server-side class tag of the node.
func (n *Node) ClassType() string { return n.classType }

// ID returns the node's id and whether it has been assigned.
func (n *Node) ID() (string, bool) { return n.id, n.hasID }

// SetInput stores a literal or an OutputRef under name, overwriting any
// previous value.
func (n *Node) SetInput(name string, v any) {
	if p, ok := v.(*OutputRef); ok && p != nil {
		v = *p
	}
	n.inputs[name] = v
}

// SetInputs applies SetInput to every entry of values.
func (n *Node) SetInputs(values map[string]any) {
	for name, v := range values {
		n.SetInput(name, v)
	}
}

// Input returns a handle to the named input. The input need not be set.
func (n *Node) Input(name string) InputRef {
	return InputRef{node: n, name: name}
}

// InputNames returns the names of all set inputs, sorted.
func (n *Node) InputNames() []string {
	names := make([]string, 0, len(n.inputs))
	for k := range n.inputs {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Output returns a reference to the node's output socket at index.
// It fails with ErrNoID until the node is inserted into a Graph.
func (n *Node) Output(index int) (OutputRef, error) {
	if !n.hasID {
		return OutputRef{}, fmt.Errorf("output %d of %s node: %w", index, n.classType, ErrNoID)
	}
	return OutputRef{NodeID: n.id, OutputIndex: index}, nil
}

func (n *Node) String() string {
	if n.hasID {
		return fmt.Sprintf("%s#%s", n.classType, n.id)
	}
	return n.classType + "#?"
}
