package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ravi-parthasarathy/comfygraph/pkg/graph"
)

func graphCmd(a *app) *cobra.Command {
	var (
		format string
		src    schemaSource
	)

	cmd := &cobra.Command{
		Use:   "graph <prompt.json|workflow.json>",
		Short: "Print a human-readable summary of a prompt or workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()
			g, err := a.loadGraph(ctx, data, src)
			if err != nil {
				return err
			}

			switch strings.ToLower(format) {
			case "dot":
				out, err := graph.DOT(g)
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), out)
			case "text", "":
				fmt.Fprint(cmd.OutOrStdout(), renderText(g))
			default:
				return fmt.Errorf("unknown format %q: use text or dot", format)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "text", "output format: text or dot")
	src.bind(cmd)
	return cmd
}

// truncate shortens s to maxLen chars, appending "…" if needed.
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "…"
}

// literal renders a literal input value compactly.
func literal(v any) string {
	if s, ok := v.(string); ok {
		return truncate(fmt.Sprintf("%q", s), 60)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return truncate(string(b), 60)
}

// renderText produces the human-readable text summary: one line per node in
// graph order with its literal inputs, then one line per connection.
func renderText(g *graph.Graph) string {
	var sb strings.Builder

	edges := g.Edges()
	fmt.Fprintf(&sb, "Prompt: %d nodes, %d edges\n", g.Len(), len(edges))

	maxIDLen, maxClassLen := 4, 5
	for _, n := range g.Nodes() {
		id, _ := n.ID()
		maxIDLen = max(maxIDLen, len(id))
		maxClassLen = max(maxClassLen, len(n.ClassType()))
	}

	fmt.Fprintf(&sb, "\nNodes:\n")
	for _, n := range g.Nodes() {
		id, _ := n.ID()
		var parts []string
		for _, name := range n.InputNames() {
			in := n.Input(name)
			if _, linked := in.Connected(); linked {
				continue
			}
			v, _ := in.Value()
			parts = append(parts, name+"="+literal(v))
		}
		line := fmt.Sprintf("  %-*s  %-*s  %s", maxIDLen, id, maxClassLen, n.ClassType(), strings.Join(parts, " "))
		sb.WriteString(strings.TrimRight(line, " "))
		sb.WriteByte('\n')
	}

	fmt.Fprintf(&sb, "\nEdges:\n")
	maxFromLen := 4
	for _, e := range edges {
		maxFromLen = max(maxFromLen, len(e.From)+len(fmt.Sprint(e.OutputIndex))+2)
	}
	for _, e := range edges {
		from := fmt.Sprintf("%s[%d]", e.From, e.OutputIndex)
		fmt.Fprintf(&sb, "  %-*s  →  %s.%s\n", maxFromLen, from, e.To, e.Input)
	}

	return sb.String()
}
