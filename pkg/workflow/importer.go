package workflow

import (
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/ravi-parthasarathy/comfygraph/pkg/graph"
	"github.com/ravi-parthasarathy/comfygraph/pkg/schema"
)

var (
	// ErrMissingNode is returned when a link names a node id the document
	// does not define.
	ErrMissingNode = errors.New("link references missing node")

	// ErrMissingInput is returned when a link targets an input slot the
	// target node does not declare.
	ErrMissingInput = errors.New("link targets undeclared input slot")

	// ErrWidgetOverrun is returned when a node has fewer widget values than
	// its unlinked required inputs.
	ErrWidgetOverrun = errors.New("not enough widget values")

	// ErrUnknownNodeType is returned when a node carries widget values but
	// no schema is known for its type.
	ErrUnknownNodeType = errors.New("unknown node type")
)

// ImportError locates an import failure inside the document.
type ImportError struct {
	NodeID int
	LinkID int    // zero unless the failure concerns a link
	Input  string // input name or slot, when known
	Err    error
}

func (e *ImportError) Error() string {
	msg := fmt.Sprintf("node %d", e.NodeID)
	if e.Input != "" {
		msg += fmt.Sprintf(" input %q", e.Input)
	}
	if e.LinkID != 0 {
		msg = fmt.Sprintf("link %d: %s", e.LinkID, msg)
	}
	return fmt.Sprintf("workflow import: %s: %v", msg, e.Err)
}

func (e *ImportError) Unwrap() error { return e.Err }

// controlAfterGenerate is the UI-only companion widget of seed inputs.
const controlAfterGenerate = "control_after_generate"

// controlWidgetIndex gives, per node type, the widget position holding the
// control_after_generate value.
var controlWidgetIndex = map[string]int{
	"KSampler":         1,
	"PrimitiveNode":    1,
	"KSamplerAdvanced": 2,
}

// Import builds a Graph from a workflow document. Nodes are inserted under
// their document ids with widget values mapped onto required inputs, then
// every link is resolved into an OutputRef connection. Declared sockets are
// skipped when consuming widget values, except sockets carrying a widget
// marker (converted widgets), which still consume one. A nil logger disables
// logging.
func Import(doc *Document, schemas schema.Schemas, logger *zap.Logger) (*graph.Graph, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	g := graph.New()
	defs := make(map[int]*NodeDef, len(doc.Nodes))

	for i := range doc.Nodes {
		def := &doc.Nodes[i]
		node := graph.NewNode(def.Type)
		if err := g.AddNodeWithID(node, strconv.Itoa(def.ID)); err != nil {
			return nil, &ImportError{NodeID: def.ID, Err: err}
		}
		defs[def.ID] = def
		if err := applyWidgets(node, def, schemas, logger); err != nil {
			return nil, err
		}
	}

	for _, l := range doc.Links {
		if err := resolveLink(g, defs, l); err != nil {
			return nil, err
		}
	}

	logger.Debug("workflow imported",
		zap.Int("nodes", g.Len()),
		zap.Int("links", len(doc.Links)))
	return g, nil
}

// applyWidgets walks the required inputs of def's type in declaration order,
// assigning widget values to the inputs that are not linked.
func applyWidgets(node *graph.Node, def *NodeDef, schemas schema.Schemas, logger *zap.Logger) error {
	values, ok, err := def.Widgets()
	if err != nil {
		return &ImportError{NodeID: def.ID, Err: err}
	}
	if !ok {
		if len(def.WidgetsValues) > 0 && string(def.WidgetsValues) != "null" {
			logger.Warn("keyed widgets_values ignored",
				zap.Int("node", def.ID),
				zap.String("type", def.Type))
		}
		return nil
	}

	s, known := schemas.Get(def.Type)
	if !known {
		return &ImportError{NodeID: def.ID, Err: fmt.Errorf("%w: %q", ErrUnknownNodeType, def.Type)}
	}

	controlAt, hasControl := controlWidgetIndex[def.Type]
	cursor := 0
	for _, in := range s.Required {
		if def.Linked(in.Name) {
			continue
		}

		skipped := false
		if hasControl && cursor == controlAt {
			cursor++
			hasControl = false
			skipped = true
		}
		if in.Name == controlAfterGenerate && skipped {
			continue
		}

		if cursor >= len(values) {
			return &ImportError{
				NodeID: def.ID,
				Input:  in.Name,
				Err:    fmt.Errorf("%w: %s wants position %d of %d", ErrWidgetOverrun, def.Type, cursor, len(values)),
			}
		}
		v := values[cursor]
		cursor++
		if in.Name == controlAfterGenerate {
			continue
		}
		node.SetInput(in.Name, v)
	}

	if cursor < len(values) {
		logger.Debug("unused widget values",
			zap.Int("node", def.ID),
			zap.String("type", def.Type),
			zap.Int("used", cursor),
			zap.Int("total", len(values)))
	}
	return nil
}

func resolveLink(g *graph.Graph, defs map[int]*NodeDef, l Link) error {
	src, ok := g.Node(strconv.Itoa(l.OriginID))
	if !ok {
		return &ImportError{NodeID: l.OriginID, LinkID: l.ID, Err: fmt.Errorf("%w: source %d", ErrMissingNode, l.OriginID)}
	}
	dst, ok := g.Node(strconv.Itoa(l.TargetID))
	if !ok {
		return &ImportError{NodeID: l.TargetID, LinkID: l.ID, Err: fmt.Errorf("%w: target %d", ErrMissingNode, l.TargetID)}
	}

	ref, err := src.Output(l.OriginSlot)
	if err != nil {
		return &ImportError{NodeID: l.OriginID, LinkID: l.ID, Err: err}
	}

	name, ok := defs[l.TargetID].InputAt(l.TargetSlot)
	if !ok {
		return &ImportError{
			NodeID: l.TargetID,
			LinkID: l.ID,
			Input:  strconv.Itoa(l.TargetSlot),
			Err:    ErrMissingInput,
		}
	}
	dst.Input(name).ConnectTo(ref)
	return nil
}
