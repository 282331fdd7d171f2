package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"sort"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ravi-parthasarathy/comfygraph/pkg/client"
	"github.com/ravi-parthasarathy/comfygraph/pkg/graph"
	"github.com/ravi-parthasarathy/comfygraph/pkg/nodes"
	"github.com/ravi-parthasarathy/comfygraph/pkg/workflow"
)

// ─── convert ──────────────────────────────────────────────────────────────────

func convertCmd(a *app) *cobra.Command {
	var (
		output  string
		compact bool
		src     schemaSource
	)

	cmd := &cobra.Command{
		Use:   "convert <workflow.json>",
		Short: "Convert an editor workflow into an API prompt",
		Long: `Convert an editor workflow into an API prompt.

Widget values are mapped onto input names using the node schemas, which are
read from --object-info, the schema cache, or the server, in that order.
An API prompt given as input is re-encoded unchanged.`,
		Args: cobra.ExactArgs(1),
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
			out, err := encodePrompt(g, !compact)
			if err != nil {
				return err
			}
			return writeOutput(cmd.OutOrStdout(), output, out)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write the prompt to a file instead of stdout")
	cmd.Flags().BoolVar(&compact, "compact", false, "emit compact JSON")
	src.bind(cmd)
	return cmd
}

// encodePrompt serializes g as an API prompt, keeping node order.
func encodePrompt(g *graph.Graph, indent bool) ([]byte, error) {
	p, err := g.Prompt()
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode prompt: %w", err)
	}
	if !indent {
		return append(raw, '\n'), nil
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return nil, fmt.Errorf("encode prompt: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// ─── lint ─────────────────────────────────────────────────────────────────────

func lintCmd(a *app) *cobra.Command {
	var src schemaSource

	cmd := &cobra.Command{
		Use:   "lint <prompt.json|workflow.json>",
		Short: "Check a prompt against the server's node schemas",
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
			s, err := a.schemas(ctx, src)
			if err != nil {
				return err
			}
			if err := workflow.ValidateErr(g, s); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "OK: prompt is valid (%d nodes, %d edges)\n", g.Len(), len(g.Edges()))
			return nil
		},
	}

	src.bind(cmd)
	return cmd
}

// ─── submit ───────────────────────────────────────────────────────────────────

func submitCmd(a *app) *cobra.Command {
	var (
		imageNode string
		output    string
		src       schemaSource
	)

	cmd := &cobra.Command{
		Use:   "submit <prompt.json|workflow.json>",
		Short: "Queue a prompt on the server",
		Long: `Queue a prompt on the server and print its prompt id.

With --image-node the command stays connected to the event channel until
that node streams an image back, then writes it to --output.`,
		Args: cobra.ExactArgs(1),
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
			p, err := g.Prompt()
			if err != nil {
				return err
			}

			if imageNode == "" {
				resp, err := a.client().QueuePrompt(ctx, p)
				if err != nil {
					printNodeErrors(cmd.ErrOrStderr(), err)
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "queued prompt %s (#%d)\n", resp.PromptID, resp.Number)
				return nil
			}
			if _, ok := p.Get(imageNode); !ok {
				return fmt.Errorf("image node %q is not in the prompt", imageNode)
			}
			return a.runForImage(ctx, cmd, p, imageNode, output)
		},
	}

	cmd.Flags().StringVar(&imageNode, "image-node", "", "wait for the image streamed by this node id")
	cmd.Flags().StringVarP(&output, "output", "o", "output.png", "where to write the image (with --image-node)")
	src.bind(cmd)
	return cmd
}

// ─── generate ─────────────────────────────────────────────────────────────────

func generateCmd(a *app) *cobra.Command {
	var (
		params nodes.TextToImage
		output string
		dryRun bool
		src    schemaSource
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Build and run a basic text-to-image prompt",
		Long: `Build the basic checkpoint, sampler and decode graph, queue it, and write
the image it streams back.

Without --checkpoint the first checkpoint the server offers is used.
With --dry-run the prompt is printed instead of submitted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			if params.Checkpoint == "" {
				s, err := a.schemas(ctx, src)
				if err != nil {
					return err
				}
				names, err := client.Checkpoints(s)
				if err != nil {
					return err
				}
				if len(names) == 0 {
					return client.ErrNoCheckpoints
				}
				params.Checkpoint = names[0]
			}
			if !cmd.Flags().Changed("seed") {
				params.Seed = rand.Int63n(1 << 50)
			}

			g, err := params.Build()
			if err != nil {
				return err
			}
			if dryRun {
				out, err := encodePrompt(g, true)
				if err != nil {
					return err
				}
				return writeOutput(cmd.OutOrStdout(), "", out)
			}
			p, err := g.Prompt()
			if err != nil {
				return err
			}
			a.logger.Info("generating",
				zap.String("checkpoint", params.Checkpoint),
				zap.Int64("seed", params.Seed))
			return a.runForImage(ctx, cmd, p, nodes.ImageNodeID, output)
		},
	}

	f := cmd.Flags()
	f.StringVar(&params.Checkpoint, "checkpoint", "", "checkpoint name (default: first offered by the server)")
	f.StringVarP(&params.Positive, "positive", "p", "", "positive prompt text")
	f.StringVarP(&params.Negative, "negative", "n", "", "negative prompt text")
	f.IntVar(&params.Width, "width", 512, "image width")
	f.IntVar(&params.Height, "height", 512, "image height")
	f.Int64Var(&params.Seed, "seed", 0, "sampler seed (default: random)")
	f.IntVar(&params.Steps, "steps", 20, "sampler steps")
	f.Float64Var(&params.CFG, "cfg", 8, "classifier-free guidance scale")
	f.StringVar(&params.Sampler, "sampler", "euler", "sampler name")
	f.StringVar(&params.Scheduler, "scheduler", "normal", "scheduler name")
	f.StringVarP(&output, "output", "o", "output.png", "where to write the image")
	f.BoolVar(&dryRun, "dry-run", false, "print the prompt instead of submitting it")
	src.bind(cmd)
	return cmd
}

// ─── helpers ──────────────────────────────────────────────────────────────────

// runForImage connects the event channel, queues p and writes the image that
// nodeID streams back to output.
func (a *app) runForImage(ctx context.Context, cmd *cobra.Command, p graph.Prompt, nodeID, output string) error {
	c, err := a.connect(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	img, err := client.PromptForImage(ctx, c, p, nodeID)
	if err != nil {
		printNodeErrors(cmd.ErrOrStderr(), err)
		if errors.Is(err, context.Canceled) {
			fmt.Fprintln(cmd.ErrOrStderr(), "\n[comfygraph] interrupted, prompt left on the server queue")
		}
		return err
	}
	if err := writeOutput(cmd.OutOrStdout(), output, img); err != nil {
		return err
	}
	if output != "" && output != "-" {
		fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d bytes to %s\n", len(img), output)
	}
	return nil
}

// connect opens the event channel and waits until the server has announced
// the session, bounded by the configured timeout.
func (a *app) connect(ctx context.Context) (*client.Client, error) {
	c := a.client()
	if err := c.Connect(ctx); err != nil {
		return nil, err
	}
	wait, cancel := context.WithTimeout(ctx, a.cfg.Server.Timeout)
	defer cancel()
	select {
	case <-c.Ready():
		return c, nil
	case <-c.Done():
		if err := c.Err(); err != nil {
			return nil, fmt.Errorf("event channel closed before ready: %w", err)
		}
		return nil, errors.New("event channel closed before ready")
	case <-wait.Done():
		_ = c.Close()
		return nil, fmt.Errorf("waiting for session: %w", wait.Err())
	}
}

// printNodeErrors lists per-node validation failures from an API error.
func printNodeErrors(w io.Writer, err error) {
	var apiErr *client.APIError
	if !errors.As(err, &apiErr) || len(apiErr.NodeErrors) == 0 {
		return
	}
	ids := make([]string, 0, len(apiErr.NodeErrors))
	for id := range apiErr.NodeErrors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		fmt.Fprintf(w, "  node %s: %s\n", id, apiErr.NodeErrors[id])
	}
}
