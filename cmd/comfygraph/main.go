package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ravi-parthasarathy/comfygraph/pkg/client"
	"github.com/ravi-parthasarathy/comfygraph/pkg/config"
	"github.com/ravi-parthasarathy/comfygraph/pkg/observability"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// app carries what every subcommand needs once the root pre-run has loaded
// configuration.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	closers []io.Closer

	configPath string
	host       string
	logLevel   string
}

func (a *app) client() *client.Client {
	return client.New(client.Config{
		Host:     a.cfg.Server.Host,
		Secure:   a.cfg.Server.Secure,
		ClientID: a.cfg.Server.ClientID,
		Timeout:  a.cfg.Server.Timeout,
	}, a.logger)
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("host") {
		cfg.Server.Host = a.host
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Log.Level = a.logLevel
	}
	logger, closers, err := observability.SetupLogger(cfg.Log)
	if err != nil {
		return err
	}
	a.cfg, a.logger, a.closers = cfg, logger, closers
	return nil
}

func (a *app) teardown() {
	if a.logger != nil {
		_ = a.logger.Sync()
	}
	for _, c := range a.closers {
		_ = c.Close()
	}
}

func rootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "comfygraph",
		Short: "comfygraph — build, convert and submit node-graph prompts",
		Long: `comfygraph works with the two graph formats of a generative-media job server:
the API prompt submitted over HTTP and the editor workflow saved by the UI.

It converts workflows into prompts using the server's object info, lints
prompts against node schemas, renders them as text or Graphviz DOT, and
submits them, optionally waiting for the image a node streams back.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			a.teardown()
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default: $COMFYGRAPH_CONFIG or ./comfygraph.yaml)")
	root.PersistentFlags().StringVar(&a.host, "host", "", "server host:port (overrides config)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(convertCmd(a))
	root.AddCommand(graphCmd(a))
	root.AddCommand(lintCmd(a))
	root.AddCommand(nodesCmd(a))
	root.AddCommand(schemaCmd(a))
	root.AddCommand(submitCmd(a))
	root.AddCommand(generateCmd(a))
	return root
}

// signalContext returns a context that is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

// writeOutput writes data to path, or to w when path is empty or "-".
func writeOutput(w io.Writer, path string, data []byte) error {
	if path == "" || path == "-" {
		_, err := w.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
