package graph

import (
	"fmt"
	"strings"

	gographviz "github.com/awalterschulze/gographviz"
)

const dotGraphName = "prompt"

// DOT renders g as a Graphviz digraph. Nodes are labelled with their id and
// class type; each edge runs from the source node to the consuming node and
// is labelled with the input name and source output index.
func DOT(g *Graph) (string, error) {
	out := gographviz.NewGraph()
	if err := out.SetName(dotGraphName); err != nil {
		return "", fmt.Errorf("dot: %w", err)
	}
	if err := out.SetDir(true); err != nil {
		return "", fmt.Errorf("dot: %w", err)
	}
	if err := out.AddAttr(dotGraphName, "rankdir", "LR"); err != nil {
		return "", fmt.Errorf("dot: %w", err)
	}

	for _, n := range g.nodes {
		attrs := map[string]string{
			"label": dotQuote(n.id + "\n" + n.classType),
			"shape": "box",
		}
		if err := out.AddNode(dotGraphName, dotQuote(n.id), attrs); err != nil {
			return "", fmt.Errorf("dot: node %q: %w", n.id, err)
		}
	}

	for _, e := range g.Edges() {
		if _, ok := g.byID[e.From]; !ok {
			continue
		}
		attrs := map[string]string{
			"label": dotQuote(fmt.Sprintf("%s [%d]", e.Input, e.OutputIndex)),
		}
		if err := out.AddEdge(dotQuote(e.From), dotQuote(e.To), true, attrs); err != nil {
			return "", fmt.Errorf("dot: edge %q -> %q: %w", e.From, e.To, err)
		}
	}
	return out.String(), nil
}

// dotQuote returns s as a quoted DOT string.
func dotQuote(s string) string {
	escaped := strings.ReplaceAll(s, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	escaped = strings.ReplaceAll(escaped, "\n", `\n`)
	return `"` + escaped + `"`
}
