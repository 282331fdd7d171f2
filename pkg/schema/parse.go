// Package schema models the server's object-info response: for every node
// class, its typed inputs (grouped as required, optional and hidden, in
// declaration order) and its outputs.
package schema

import (
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

var (
	// ErrMalformedResponse is returned when the object-info document is not a
	// JSON object of node classes.
	ErrMalformedResponse = errors.New("malformed object info response")

	// ErrOutputMismatch is returned when the positional output arrays of a
	// node class do not line up.
	ErrOutputMismatch = errors.New("output arrays are not aligned")
)

var groupOrder = []Group{GroupRequired, GroupOptional, GroupHidden}

// Parse builds Schemas from a raw object-info response. Input groups keep the
// server's declaration order. A name repeated across groups is logged and the
// later occurrence dropped. Each unrecognized type string is logged once per
// call. A nil logger disables logging.
func Parse(data []byte, logger *zap.Logger) (Schemas, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: invalid JSON", ErrMalformedResponse)
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil, fmt.Errorf("%w: top level is not an object", ErrMalformedResponse)
	}

	out := make(Schemas)
	generic := make(map[string]bool)
	var err error
	root.ForEach(func(key, value gjson.Result) bool {
		class := key.String()
		var s *NodeTypeSchema
		s, err = parseNodeType(class, value, generic, logger)
		if err != nil {
			err = fmt.Errorf("node type %q: %w", class, err)
			return false
		}
		out[class] = s
		return true
	})
	if err != nil {
		return nil, err
	}
	logger.Debug("parsed object info", zap.Int("node_types", len(out)))
	return out, nil
}

func parseNodeType(class string, v gjson.Result, generic map[string]bool, logger *zap.Logger) (*NodeTypeSchema, error) {
	if !v.IsObject() {
		return nil, fmt.Errorf("%w: entry is not an object", ErrMalformedResponse)
	}
	s := &NodeTypeSchema{
		Name:        v.Get("name").String(),
		DisplayName: v.Get("display_name").String(),
		Description: v.Get("description").String(),
		Category:    v.Get("category").String(),
		OutputNode:  v.Get("output_node").Bool(),
	}
	if s.Name == "" {
		s.Name = class
	}

	seen := make(map[string]Group)
	for _, group := range groupOrder {
		var defs []InputDef
		v.Get("input." + string(group)).ForEach(func(name, raw gjson.Result) bool {
			n := name.String()
			if first, dup := seen[n]; dup {
				logger.Warn("duplicate input dropped",
					zap.String("node_type", class),
					zap.String("input", n),
					zap.String("group", string(group)),
					zap.String("first_group", string(first)))
				return true
			}
			seen[n] = group
			in := ClassifyInput(raw)
			if in.Kind == KindGeneric && !generic[in.GenericType] {
				generic[in.GenericType] = true
				logger.Warn("unknown input type kept as generic",
					zap.String("node_type", class),
					zap.String("input", n),
					zap.String("type", in.GenericType))
			}
			defs = append(defs, InputDef{Name: n, Group: group, Schema: in})
			return true
		})
		switch group {
		case GroupRequired:
			s.Required = defs
		case GroupOptional:
			s.Optional = defs
		case GroupHidden:
			s.Hidden = defs
		}
	}

	outputs, err := parseOutputs(v)
	if err != nil {
		return nil, err
	}
	s.Outputs = outputs
	return s, nil
}

// parseOutputs zips output, output_is_list, output_name and output_tooltips.
// output_name may be omitted, in which case the type tags double as names.
func parseOutputs(v gjson.Result) ([]OutputSlotSchema, error) {
	types := v.Get("output").Array()
	isList := v.Get("output_is_list").Array()
	names := v.Get("output_name")
	tips := v.Get("output_tooltips").Array()

	if len(isList) != len(types) {
		return nil, fmt.Errorf("%w: %d outputs, %d is-list flags", ErrOutputMismatch, len(types), len(isList))
	}
	nameList := names.Array()
	if names.Exists() && len(nameList) != len(types) {
		return nil, fmt.Errorf("%w: %d outputs, %d names", ErrOutputMismatch, len(types), len(nameList))
	}

	if len(types) == 0 {
		return nil, nil
	}
	out := make([]OutputSlotSchema, len(types))
	for i, t := range types {
		tag := t.String()
		if t.IsArray() {
			tag = "COMBO"
		}
		o := OutputSlotSchema{Type: tag, Name: tag, IsList: isList[i].Bool()}
		if names.Exists() {
			o.Name = nameList[i].String()
		}
		if i < len(tips) {
			o.Tooltip = tips[i].String()
		}
		out[i] = o
	}
	return out, nil
}
