package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ravi-parthasarathy/comfygraph/pkg/nodes"
	"github.com/ravi-parthasarathy/comfygraph/pkg/schema"
)

// ─── nodes ────────────────────────────────────────────────────────────────────

func nodesCmd(a *app) *cobra.Command {
	var (
		category string
		src      schemaSource
	)

	cmd := &cobra.Command{
		Use:   "nodes",
		Short: "List the node classes the server offers",
		Long: `List the node classes the server offers, sorted by class name.

Classes with a typed wrapper in this tool are marked with "*".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()
			s, err := a.schemas(ctx, src)
			if err != nil {
				return err
			}
			typed := map[string]bool{}
			for _, c := range nodes.Classes() {
				typed[c] = true
			}

			out := cmd.OutOrStdout()
			for _, class := range s.Classes() {
				n, _ := s.Get(class)
				if category != "" && !strings.HasPrefix(n.Category, category) {
					continue
				}
				mark := " "
				if typed[class] {
					mark = "*"
				}
				fmt.Fprintf(out, "%s %-32s  %s\n", mark, class, n.Category)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "only list classes whose category starts with this prefix")
	src.bind(cmd)
	return cmd
}

// ─── schema ───────────────────────────────────────────────────────────────────

func schemaCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Fetch or inspect node schemas",
	}
	cmd.AddCommand(schemaFetchCmd(a))
	cmd.AddCommand(schemaShowCmd(a))
	return cmd
}

func schemaFetchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "fetch",
		Short: "Fetch object info from the server and refresh the schema cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.cfg.Schema.CacheFile == "" {
				return fmt.Errorf("schema.cache_file is not configured")
			}
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()
			s, err := a.client().ObjectInfo(ctx)
			if err != nil {
				return err
			}
			if err := schema.SaveCache(a.cfg.Schema.CacheFile, a.cfg.Server.Host, s); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cached %d node classes from %s in %s\n",
				len(s), a.cfg.Server.Host, a.cfg.Schema.CacheFile)
			return nil
		},
	}
}

func schemaShowCmd(a *app) *cobra.Command {
	var src schemaSource

	cmd := &cobra.Command{
		Use:   "show <class>",
		Short: "Print the inputs and outputs of one node class",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()
			s, err := a.schemas(ctx, src)
			if err != nil {
				return err
			}
			n, ok := s.Get(args[0])
			if !ok {
				return fmt.Errorf("unknown node class %q", args[0])
			}
			fmt.Fprint(cmd.OutOrStdout(), renderSchema(n))
			return nil
		},
	}

	src.bind(cmd)
	return cmd
}

// renderSchema prints a node class in declaration order.
func renderSchema(n *schema.NodeTypeSchema) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s", n.Name)
	if n.DisplayName != "" && n.DisplayName != n.Name {
		fmt.Fprintf(&sb, " (%s)", n.DisplayName)
	}
	sb.WriteByte('\n')
	if n.Category != "" {
		fmt.Fprintf(&sb, "  category: %s\n", n.Category)
	}
	if n.OutputNode {
		fmt.Fprintf(&sb, "  output node\n")
	}
	if n.Description != "" {
		fmt.Fprintf(&sb, "  %s\n", truncate(n.Description, 100))
	}

	width := 4
	for _, in := range n.Inputs() {
		width = max(width, len(in.Name))
	}

	fmt.Fprintf(&sb, "\nInputs:\n")
	for _, in := range n.Inputs() {
		fmt.Fprintf(&sb, "  %-8s  %-*s  %s\n", in.Group, width, in.Name, describeSlot(in.Schema))
	}

	fmt.Fprintf(&sb, "\nOutputs:\n")
	for i, out := range n.Outputs {
		list := ""
		if out.IsList {
			list = " (list)"
		}
		fmt.Fprintf(&sb, "  %d  %-*s  %s%s\n", i, width, out.Name, out.Type, list)
	}
	return sb.String()
}

// describeSlot summarizes an input kind and its options.
func describeSlot(s schema.InputSlotSchema) string {
	switch {
	case s.Int != nil:
		return fmt.Sprintf("INT default=%d min=%d max=%d", s.Int.Default, s.Int.Min, s.Int.Max)
	case s.Float != nil:
		return fmt.Sprintf("FLOAT default=%g min=%g max=%g step=%g", s.Float.Default, s.Float.Min, s.Float.Max, s.Float.Step)
	case s.String != nil:
		return fmt.Sprintf("STRING default=%q multiline=%t", truncate(s.String.Default, 40), s.String.Multiline)
	case s.Boolean != nil:
		return fmt.Sprintf("BOOLEAN default=%t", s.Boolean.Default)
	case s.Kind == schema.KindChoice:
		return fmt.Sprintf("CHOICE [%s]", truncate(strings.Join(s.Choices, ", "), 80))
	default:
		return s.TypeName()
	}
}
