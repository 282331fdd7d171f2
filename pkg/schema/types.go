package schema

import "sort"

// Kind discriminates the variants of InputSlotSchema.
type Kind string

const (
	KindText         Kind = "TEXT"
	KindFloat        Kind = "FLOAT"
	KindInt          Kind = "INT"
	KindString       Kind = "STRING"
	KindBoolean      Kind = "BOOLEAN"
	KindModel        Kind = "MODEL"
	KindVAE          Kind = "VAE"
	KindConditioning Kind = "CONDITIONING"
	KindLatent       Kind = "LATENT"
	KindCLIP         Kind = "CLIP"
	KindImage        Kind = "IMAGE"
	KindMask         Kind = "MASK"
	KindChoice       Kind = "CHOICE"
	KindGeneric      Kind = "GENERIC"
)

// fixedKinds is the vocabulary matched case-sensitively against raw type strings.
var fixedKinds = map[string]Kind{
	"TEXT":         KindText,
	"FLOAT":        KindFloat,
	"INT":          KindInt,
	"STRING":       KindString,
	"BOOLEAN":      KindBoolean,
	"MODEL":        KindModel,
	"VAE":          KindVAE,
	"CONDITIONING": KindConditioning,
	"LATENT":       KindLatent,
	"CLIP":         KindCLIP,
	"IMAGE":        KindImage,
	"MASK":         KindMask,
}

// TextOptions holds the TEXT variant fields.
type TextOptions struct {
	Multiline bool
}

// FloatOptions holds the FLOAT variant fields. Round is nil when the server
// sends no rounding precision (or sends false).
type FloatOptions struct {
	Default float64
	Min     float64
	Max     float64
	Step    float64
	Round   *float64
}

// IntOptions holds the INT variant fields.
type IntOptions struct {
	Default int64
	Min     int64
	Max     int64
	Step    *int64
}

// StringOptions holds the STRING variant fields.
type StringOptions struct {
	Default   string
	Multiline bool
}

// BooleanOptions holds the BOOLEAN variant fields.
type BooleanOptions struct {
	Default bool
}

// InputSlotSchema describes one input of a node type. Exactly one of the
// option pointers is set for the scalar kinds; Choices is set for KindChoice
// and GenericType for KindGeneric. The resource kinds carry no options.
type InputSlotSchema struct {
	Kind        Kind
	Tooltip     string          `cbor:",omitempty"`
	Text        *TextOptions    `cbor:",omitempty"`
	Float       *FloatOptions   `cbor:",omitempty"`
	Int         *IntOptions     `cbor:",omitempty"`
	String      *StringOptions  `cbor:",omitempty"`
	Boolean     *BooleanOptions `cbor:",omitempty"`
	Choices     []string        `cbor:",omitempty"`
	GenericType string          `cbor:",omitempty"`
}

// TypeName returns the server-side type tag of the input.
func (s InputSlotSchema) TypeName() string {
	switch s.Kind {
	case KindGeneric:
		return s.GenericType
	case KindChoice:
		return "COMBO"
	default:
		return string(s.Kind)
	}
}

// IsWidget reports whether the editor renders the input as a widget (a
// literal value) rather than a socket.
func (s InputSlotSchema) IsWidget() bool {
	switch s.Kind {
	case KindText, KindFloat, KindInt, KindString, KindBoolean, KindChoice:
		return true
	}
	return false
}

// Group names the input group an input was declared in.
type Group string

const (
	GroupRequired Group = "required"
	GroupOptional Group = "optional"
	GroupHidden   Group = "hidden"
)

// InputDef is a named input in declaration order.
type InputDef struct {
	Name   string
	Group  Group
	Schema InputSlotSchema
}

// OutputSlotSchema describes one output socket.
type OutputSlotSchema struct {
	Type    string
	Name    string
	IsList  bool
	Tooltip string `cbor:",omitempty"`
}

// NodeTypeSchema describes one node class.
type NodeTypeSchema struct {
	Name        string
	DisplayName string
	Description string
	Category    string
	OutputNode  bool
	Required    []InputDef
	Optional    []InputDef `cbor:",omitempty"`
	Hidden      []InputDef `cbor:",omitempty"`
	Outputs     []OutputSlotSchema
}

// Inputs returns required, optional and hidden inputs, in that order.
func (s *NodeTypeSchema) Inputs() []InputDef {
	out := make([]InputDef, 0, len(s.Required)+len(s.Optional)+len(s.Hidden))
	out = append(out, s.Required...)
	out = append(out, s.Optional...)
	return append(out, s.Hidden...)
}

// Input looks up an input by name across all groups.
func (s *NodeTypeSchema) Input(name string) (InputDef, bool) {
	for _, in := range s.Inputs() {
		if in.Name == name {
			return in, true
		}
	}
	return InputDef{}, false
}

// RequiredNames returns the required input names in declaration order.
func (s *NodeTypeSchema) RequiredNames() []string {
	out := make([]string, len(s.Required))
	for i, in := range s.Required {
		out[i] = in.Name
	}
	return out
}

// Schemas maps a class type tag to its schema.
type Schemas map[string]*NodeTypeSchema

// Get returns the schema for class.
func (s Schemas) Get(class string) (*NodeTypeSchema, bool) {
	n, ok := s[class]
	return n, ok && n != nil
}

// Classes returns all class tags, sorted.
func (s Schemas) Classes() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Choices returns the allowed values of a choice-list input.
func (s Schemas) Choices(class, input string) ([]string, bool) {
	n, ok := s.Get(class)
	if !ok {
		return nil, false
	}
	in, ok := n.Input(input)
	if !ok || in.Schema.Kind != KindChoice {
		return nil, false
	}
	return in.Schema.Choices, true
}
