package graph

// OutputRef identifies one output socket of one node. It is a plain value:
// creating one never touches either endpoint.
type OutputRef struct {
	NodeID      string `json:"source_node_id"`
	OutputIndex int    `json:"source_node_output_index"`
}

// pair is the wire form of a reference inside a prompt's inputs.
func (r OutputRef) pair() []any {
	return []any{r.NodeID, r.OutputIndex}
}

// InputRef is a handle bound to one named input of one node. Set and
// ConnectTo write the same slot; the last write wins.
type InputRef struct {
	node *Node
	name string
}

// Name returns the input name the handle is bound to.
func (r InputRef) Name() string { return r.name }

// Value returns the literal or OutputRef stored in the slot. ok is false when
// the input has never been set.
func (r InputRef) Value() (v any, ok bool) {
	v, ok = r.node.inputs[r.name]
	return v, ok
}

// Set stores a literal value, replacing any previous value or connection.
func (r InputRef) Set(v any) {
	r.node.SetInput(r.name, v)
}

// ConnectTo wires the input to another node's output, replacing any
// previous value or connection.
func (r InputRef) ConnectTo(src OutputRef) {
	r.node.SetInput(r.name, src)
}

// Connected reports whether the slot currently holds an OutputRef.
func (r InputRef) Connected() (OutputRef, bool) {
	v, ok := r.node.inputs[r.name]
	if !ok {
		return OutputRef{}, false
	}
	ref, ok := v.(OutputRef)
	return ref, ok
}
