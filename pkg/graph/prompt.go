package graph

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/tidwall/gjson"
)

// PromptNode is the wire form of a single node in an API prompt.
type PromptNode struct {
	Inputs    map[string]any `json:"inputs"`
	ClassType string         `json:"class_type"`
	Meta      map[string]any `json:"_meta"`
}

// Prompt is the API submission format: node id to PromptNode. It remembers
// insertion order so that its JSON encoding is deterministic and follows the
// graph.
type Prompt struct {
	order []string
	nodes map[string]PromptNode
}

// IDs returns node ids in graph order.
func (p Prompt) IDs() []string {
	out := make([]string, len(p.order))
	copy(out, p.order)
	return out
}

// Get returns the entry for id.
func (p Prompt) Get(id string) (PromptNode, bool) {
	n, ok := p.nodes[id]
	return n, ok
}

// Len returns the number of nodes in the prompt.
func (p Prompt) Len() int { return len(p.order) }

// MarshalJSON writes the prompt as a JSON object keyed by node id, in graph order.
func (p Prompt) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, id := range p.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(id)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(p.nodes[id])
		if err != nil {
			return nil, fmt.Errorf("node %q: %w", id, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Prompt converts the graph to the API submission format. Literal inputs pass
// through unchanged; OutputRef inputs become [nodeID, outputIndex] pairs.
// The graph itself is not modified.
func (g *Graph) Prompt() (Prompt, error) {
	p := Prompt{
		order: make([]string, 0, len(g.nodes)),
		nodes: make(map[string]PromptNode, len(g.nodes)),
	}
	for i, n := range g.nodes {
		if !n.hasID {
			return Prompt{}, fmt.Errorf("node %d (%s): %w", i, n.classType, ErrNoID)
		}
		inputs := make(map[string]any, len(n.inputs))
		for name, v := range n.inputs {
			if ref, ok := v.(OutputRef); ok {
				inputs[name] = ref.pair()
				continue
			}
			inputs[name] = v
		}
		p.order = append(p.order, n.id)
		p.nodes[n.id] = PromptNode{
			Inputs:    inputs,
			ClassType: n.classType,
			Meta:      map[string]any{},
		}
	}
	return p, nil
}

// FromPrompt rebuilds a Graph from an API prompt document. Node order follows
// the document; two-element [string, integer] inputs become OutputRefs.
func FromPrompt(data []byte) (*Graph, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: invalid JSON", ErrMalformedPrompt)
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil, fmt.Errorf("%w: top level is not an object", ErrMalformedPrompt)
	}

	g := New()
	var err error
	root.ForEach(func(key, value gjson.Result) bool {
		id := key.String()
		class := value.Get("class_type")
		if !value.IsObject() || class.Type != gjson.String {
			err = fmt.Errorf("%w: node %q has no class_type", ErrMalformedPrompt, id)
			return false
		}
		n := NewNode(class.String())
		value.Get("inputs").ForEach(func(name, v gjson.Result) bool {
			n.SetInput(name.String(), decodeInput(v))
			return true
		})
		if err = g.AddNodeWithID(n, id); err != nil {
			return false
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	return g, nil
}

func decodeInput(v gjson.Result) any {
	if v.IsArray() {
		items := v.Array()
		if len(items) == 2 && items[0].Type == gjson.String && items[1].Type == gjson.Number {
			if idx, err := strconv.Atoi(items[1].Raw); err == nil {
				return OutputRef{NodeID: items[0].String(), OutputIndex: idx}
			}
		}
	}
	if v.Type == gjson.Number {
		return NormalizeNumber(v.Raw)
	}
	return v.Value()
}

// NormalizeNumber turns a JSON number literal into int64 when it is integral
// and fits, uint64 when it only fits unsigned, and float64 otherwise.
func NormalizeNumber(raw string) any {
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return i
	}
	if u, err := strconv.ParseUint(raw, 10, 64); err == nil {
		return u
	}
	f, _ := strconv.ParseFloat(raw, 64)
	return f
}
