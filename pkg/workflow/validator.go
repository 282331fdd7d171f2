package workflow

import (
	"fmt"
	"slices"
	"strings"

	"github.com/ravi-parthasarathy/comfygraph/pkg/graph"
	"github.com/ravi-parthasarathy/comfygraph/pkg/schema"
)

// LintError describes a problem with a graph that the server would reject.
type LintError struct {
	NodeID  string
	Message string
}

func (e LintError) Error() string {
	if e.NodeID != "" {
		return fmt.Sprintf("node %q: %s", e.NodeID, e.Message)
	}
	return e.Message
}

// Validate checks a graph against the node schemas.
// Returns all discovered errors (not just the first).
func Validate(g *graph.Graph, schemas schema.Schemas) []LintError {
	var errs []LintError

	for _, n := range g.Nodes() {
		id, _ := n.ID()
		s, ok := schemas.Get(n.ClassType())
		if !ok {
			errs = append(errs, LintError{NodeID: id, Message: fmt.Sprintf("unknown node type %q", n.ClassType())})
			continue
		}
		errs = append(errs, ValidateNode(n, s)...)
	}

	// Every reference must point at an existing node and a declared output.
	for _, e := range g.Edges() {
		src, ok := g.Node(e.From)
		if !ok {
			errs = append(errs, LintError{NodeID: e.To, Message: fmt.Sprintf("input %q references unknown node %q", e.Input, e.From)})
			continue
		}
		s, ok := schemas.Get(src.ClassType())
		if !ok {
			continue
		}
		if e.OutputIndex < 0 || e.OutputIndex >= len(s.Outputs) {
			errs = append(errs, LintError{
				NodeID:  e.To,
				Message: fmt.Sprintf("input %q references output %d of %q, which has %d outputs", e.Input, e.OutputIndex, e.From, len(s.Outputs)),
			})
		}
	}

	for _, id := range cycleMembers(g) {
		errs = append(errs, LintError{NodeID: id, Message: "node is part of a cycle"})
	}

	return errs
}

// ValidateNode checks one node's inputs against its schema: every required
// input is set, and choice inputs hold one of the allowed values.
func ValidateNode(n *graph.Node, s *schema.NodeTypeSchema) []LintError {
	var errs []LintError
	id, _ := n.ID()
	for _, in := range s.Required {
		if in.Name == controlAfterGenerate {
			continue
		}
		if _, ok := n.Input(in.Name).Value(); !ok {
			errs = append(errs, LintError{
				NodeID:  id,
				Message: fmt.Sprintf("missing required input %q for node type %q", in.Name, n.ClassType()),
			})
		}
	}
	for _, in := range s.Inputs() {
		if in.Schema.Kind != schema.KindChoice {
			continue
		}
		v, ok := n.Input(in.Name).Value()
		if !ok {
			continue
		}
		str, isStr := v.(string)
		if isStr && !slices.Contains(in.Schema.Choices, str) {
			errs = append(errs, LintError{
				NodeID:  id,
				Message: fmt.Sprintf("input %q: %q is not one of %d allowed values", in.Name, str, len(in.Schema.Choices)),
			})
		}
	}
	return errs
}

// ValidateErr calls Validate and returns nil if there are no errors, or a
// combined error message listing all lint errors.
func ValidateErr(g *graph.Graph, schemas schema.Schemas) error {
	errs := Validate(g, schemas)
	if len(errs) == 0 {
		return nil
	}
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return fmt.Errorf("prompt validation failed:\n  %s", strings.Join(msgs, "\n  "))
}

// cycleMembers returns, in insertion order, the ids of nodes that can reach
// themselves through input connections.
func cycleMembers(g *graph.Graph) []string {
	deps := map[string][]string{}
	for _, e := range g.Edges() {
		deps[e.To] = append(deps[e.To], e.From)
	}
	var out []string
	for _, n := range g.Nodes() {
		id, _ := n.ID()
		if reaches(deps, id, id) {
			out = append(out, id)
		}
	}
	return out
}

// reaches reports whether target is reachable from start via at least one edge.
func reaches(deps map[string][]string, start, target string) bool {
	visited := map[string]bool{}
	queue := append([]string(nil), deps[start]...)
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == target {
			return true
		}
		if visited[cur] {
			continue
		}
		visited[cur] = true
		queue = append(queue, deps[cur]...)
	}
	return false
}
