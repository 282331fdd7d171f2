package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/ravi-parthasarathy/comfygraph/pkg/graph"
	"github.com/ravi-parthasarathy/comfygraph/pkg/schema"
	"github.com/ravi-parthasarathy/comfygraph/pkg/workflow"
)

// schemaSource selects where node schemas come from: an object-info dump on
// disk, the local cache, or the server.
type schemaSource struct {
	objectInfo string
	refresh    bool
}

func (s *schemaSource) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&s.objectInfo, "object-info", "", "read node schemas from an object_info JSON dump instead of the server")
	cmd.Flags().BoolVar(&s.refresh, "refresh", false, "ignore the schema cache and fetch from the server")
}

// schemas resolves node schemas. A cache written for a different host is
// ignored. Fetched schemas are written back to the cache; a failed write is
// only logged.
func (a *app) schemas(ctx context.Context, src schemaSource) (schema.Schemas, error) {
	if src.objectInfo != "" {
		data, err := os.ReadFile(src.objectInfo)
		if err != nil {
			return nil, fmt.Errorf("read object info: %w", err)
		}
		return schema.Parse(data, a.logger)
	}

	cache := a.cfg.Schema.CacheFile
	if cache != "" && !src.refresh {
		s, server, err := schema.LoadCache(cache)
		switch {
		case err == nil && server == a.cfg.Server.Host:
			a.logger.Debug("schemas loaded from cache", zap.String("path", cache), zap.Int("classes", len(s)))
			return s, nil
		case err == nil:
			a.logger.Info("schema cache belongs to another server, refetching",
				zap.String("cached", server), zap.String("host", a.cfg.Server.Host))
		case !errors.Is(err, fs.ErrNotExist):
			a.logger.Warn("schema cache unreadable, refetching", zap.Error(err))
		}
	}

	s, err := a.client().ObjectInfo(ctx)
	if err != nil {
		return nil, err
	}
	if cache != "" {
		if err := schema.SaveCache(cache, a.cfg.Server.Host, s); err != nil {
			a.logger.Warn("schema cache not written", zap.Error(err))
		}
	}
	return s, nil
}

// readInput reads path, or stdin when path is "-".
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return data, nil
}

// isWorkflow reports whether data looks like an editor workflow rather than
// an API prompt.
func isWorkflow(data []byte) bool {
	return gjson.GetBytes(data, "nodes").IsArray() && gjson.GetBytes(data, "links").Exists()
}

// loadGraph reads an API prompt or an editor workflow. Schemas are only
// resolved for workflows.
func (a *app) loadGraph(ctx context.Context, data []byte, src schemaSource) (*graph.Graph, error) {
	if !isWorkflow(data) {
		g, err := graph.FromPrompt(data)
		if err != nil {
			return nil, fmt.Errorf("parse prompt: %w", err)
		}
		return g, nil
	}
	doc, err := workflow.Parse(data)
	if err != nil {
		return nil, err
	}
	s, err := a.schemas(ctx, src)
	if err != nil {
		return nil, err
	}
	return workflow.Import(doc, s, a.logger)
}
