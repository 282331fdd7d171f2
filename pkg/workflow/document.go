// Package workflow converts visual-editor workflow documents into graphs and
// lints graphs against node schemas.
package workflow

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ravi-parthasarathy/comfygraph/pkg/graph"
)

// ErrMalformedDocument is returned by Parse for input that is not a workflow
// document.
var ErrMalformedDocument = errors.New("malformed workflow document")

// Document is an editor workflow. Only the fields the importer reads are
// typed; the rest is kept raw so a document survives re-encoding.
type Document struct {
	Nodes   []NodeDef       `json:"nodes"`
	Links   []Link          `json:"links"`
	Groups  json.RawMessage `json:"groups,omitempty"`
	Config  json.RawMessage `json:"config,omitempty"`
	Extra   json.RawMessage `json:"extra,omitempty"`
	Version json.Number     `json:"version,omitempty"`
}

// NodeDef is one node of a workflow document.
type NodeDef struct {
	ID            int             `json:"id"`
	Type          string          `json:"type"`
	Pos           json.RawMessage `json:"pos,omitempty"`
	Size          json.RawMessage `json:"size,omitempty"`
	Flags         json.RawMessage `json:"flags,omitempty"`
	Order         int             `json:"order"`
	Mode          int             `json:"mode"`
	Inputs        []SocketDef     `json:"inputs,omitempty"`
	Outputs       []OutputDef     `json:"outputs,omitempty"`
	Properties    json.RawMessage `json:"properties,omitempty"`
	WidgetsValues json.RawMessage `json:"widgets_values,omitempty"`
}

// SocketDef is a declared input socket. Widget is set when the socket is a
// widget converted to an input; such sockets still own a widget value.
type SocketDef struct {
	Name      string     `json:"name"`
	Type      string     `json:"type"`
	Link      *int       `json:"link"`
	Widget    *WidgetRef `json:"widget,omitempty"`
	SlotIndex *int       `json:"slot_index,omitempty"`
}

// WidgetRef names the widget a converted socket stands for.
type WidgetRef struct {
	Name string `json:"name"`
}

// OutputDef is a declared output socket.
type OutputDef struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	Links     []int  `json:"links"`
	SlotIndex *int   `json:"slot_index,omitempty"`
}

// Linked reports whether the node declares a non-widget socket called name.
func (d *NodeDef) Linked(name string) bool {
	for _, in := range d.Inputs {
		if in.Name == name && in.Widget == nil {
			return true
		}
	}
	return false
}

// InputAt returns the name of the declared input socket at slot.
func (d *NodeDef) InputAt(slot int) (string, bool) {
	if slot < 0 || slot >= len(d.Inputs) || d.Inputs[slot].Name == "" {
		return "", false
	}
	return d.Inputs[slot].Name, true
}

// Widgets decodes the positional widget values. ok is false when the node
// carries none or carries them in the keyed object form.
func (d *NodeDef) Widgets() (values []any, ok bool, err error) {
	raw := bytes.TrimSpace(d.WidgetsValues)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) || raw[0] != '[' {
		return nil, false, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&values); err != nil {
		return nil, false, fmt.Errorf("node %d widgets_values: %w", d.ID, err)
	}
	for i, v := range values {
		values[i] = normalize(v)
	}
	return values, true, nil
}

// Link joins an output slot of one node to an input slot of another. It
// decodes from the legacy 6-tuple and from the keyed object form.
type Link struct {
	ID         int    `json:"id"`
	OriginID   int    `json:"origin_id"`
	OriginSlot int    `json:"origin_slot"`
	TargetID   int    `json:"target_id"`
	TargetSlot int    `json:"target_slot"`
	Type       string `json:"type"`
}

// UnmarshalJSON accepts `[id, origin, originSlot, target, targetSlot, type]`
// or the equivalent object.
func (l *Link) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var tuple []json.RawMessage
		if err := json.Unmarshal(data, &tuple); err != nil {
			return err
		}
		if len(tuple) < 5 {
			return fmt.Errorf("link tuple has %d fields, want 6", len(tuple))
		}
		ints := []*int{&l.ID, &l.OriginID, &l.OriginSlot, &l.TargetID, &l.TargetSlot}
		for i, dst := range ints {
			if err := json.Unmarshal(tuple[i], dst); err != nil {
				return fmt.Errorf("link field %d: %w", i, err)
			}
		}
		l.Type = ""
		if len(tuple) > 5 {
			l.Type = typeTag(tuple[5])
		}
		return nil
	}

	type plain Link
	var obj struct {
		plain
		Type json.RawMessage `json:"type"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*l = Link(obj.plain)
	l.Type = typeTag(obj.Type)
	return nil
}

// MarshalJSON writes the 6-tuple form.
func (l Link) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{l.ID, l.OriginID, l.OriginSlot, l.TargetID, l.TargetSlot, l.Type})
}

// typeTag reads a link value type, which is usually a string but may be any
// JSON value (e.g. 0 for untyped reroutes).
func typeTag(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(bytes.TrimSpace(raw))
}

// Parse decodes a workflow document.
func Parse(data []byte) (*Document, error) {
	var doc Document
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	if doc.Nodes == nil {
		return nil, fmt.Errorf("%w: no nodes array", ErrMalformedDocument)
	}
	return &doc, nil
}

// normalize turns json.Number into int64/uint64/float64, recursively.
func normalize(v any) any {
	switch t := v.(type) {
	case json.Number:
		return graph.NormalizeNumber(t.String())
	case []any:
		for i := range t {
			t[i] = normalize(t[i])
		}
		return t
	case map[string]any:
		for k := range t {
			t[k] = normalize(t[k])
		}
		return t
	}
	return v
}
