package schema

import (
	"math"
	"strconv"

	"github.com/tidwall/gjson"
)

// ClassifyInput maps a raw input descriptor, `[typeStringOrList, metadata?]`,
// to its InputSlotSchema variant. It never fails: type strings outside the
// fixed vocabulary become KindGeneric carrying the raw string.
func ClassifyInput(raw gjson.Result) InputSlotSchema {
	var typ, meta gjson.Result
	items := raw.Array()
	if len(items) > 0 {
		typ = items[0]
	}
	if len(items) > 1 {
		meta = items[1]
	}

	s := classify(typ, meta)
	if tip := meta.Get("tooltip"); tip.Exists() {
		s.Tooltip = tip.String()
	}
	return s
}

// ClassifyInputJSON is ClassifyInput over a JSON-encoded descriptor.
func ClassifyInputJSON(descriptor []byte) InputSlotSchema {
	return ClassifyInput(gjson.ParseBytes(descriptor))
}

func classify(typ, meta gjson.Result) InputSlotSchema {
	if typ.IsArray() {
		return InputSlotSchema{Kind: KindChoice, Choices: stringList(typ)}
	}

	name := typ.String()
	if name == "COMBO" {
		if opts := meta.Get("options"); opts.IsArray() {
			return InputSlotSchema{Kind: KindChoice, Choices: stringList(opts)}
		}
	}

	kind, ok := fixedKinds[name]
	if !ok {
		return InputSlotSchema{Kind: KindGeneric, GenericType: name}
	}

	s := InputSlotSchema{Kind: kind}
	switch kind {
	case KindText:
		s.Text = &TextOptions{Multiline: meta.Get("multiline").Bool()}
	case KindFloat:
		s.Float = &FloatOptions{
			Default: meta.Get("default").Float(),
			Min:     meta.Get("min").Float(),
			Max:     meta.Get("max").Float(),
			Step:    meta.Get("step").Float(),
		}
		if r := meta.Get("round"); r.Type == gjson.Number {
			v := r.Float()
			s.Float.Round = &v
		}
	case KindInt:
		s.Int = &IntOptions{
			Default: intValue(meta.Get("default")),
			Min:     intValue(meta.Get("min")),
			Max:     intValue(meta.Get("max")),
		}
		if st := meta.Get("step"); st.Type == gjson.Number {
			v := intValue(st)
			s.Int.Step = &v
		}
	case KindString:
		s.String = &StringOptions{
			Default:   meta.Get("default").String(),
			Multiline: meta.Get("multiline").Bool(),
		}
	case KindBoolean:
		s.Boolean = &BooleanOptions{Default: meta.Get("default").Bool()}
	}
	return s
}

func stringList(r gjson.Result) []string {
	items := r.Array()
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.String()
	}
	return out
}

// intValue reads an integer, saturating values outside the int64 range.
// Seed inputs commonly declare a max of 2^64-1.
func intValue(r gjson.Result) int64 {
	if r.Type != gjson.Number {
		return 0
	}
	if v, err := strconv.ParseInt(r.Raw, 10, 64); err == nil {
		return v
	}
	f := r.Float()
	switch {
	case f >= math.MaxInt64:
		return math.MaxInt64
	case f <= math.MinInt64:
		return math.MinInt64
	default:
		return int64(f)
	}
}
