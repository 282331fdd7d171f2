package client

import (
	"context"
	"fmt"
	"sync"

	"github.com/ravi-parthasarathy/comfygraph/pkg/graph"
	"github.com/ravi-parthasarathy/comfygraph/pkg/schema"
)

// Session is the part of Client that PromptForImage needs.
type Session interface {
	On(t EventType, fn func(Event)) (remove func())
	QueuePrompt(ctx context.Context, p graph.Prompt) (PromptResponse, error)
}

var _ Session = (*Client)(nil)

// PromptForImage queues p and returns the first image emitted while the node
// nodeID of that prompt is executing. It fails when the prompt errors, is
// interrupted, or finishes without such an image.
func PromptForImage(ctx context.Context, s Session, p graph.Prompt, nodeID string) ([]byte, error) {
	events := make(chan Event, 16)
	quit := make(chan struct{})
	defer close(quit)

	push := func(ev Event) {
		select {
		case events <- ev:
		case <-quit:
		}
	}

	// The image frame carries no ids; attribute it to the executing node.
	var mu sync.Mutex
	var curPrompt, curNode string
	listeners := []func(){
		s.On(EventExecuting, func(ev Event) {
			mu.Lock()
			curPrompt, curNode = ev.PromptID, ev.Node
			mu.Unlock()
			push(ev)
		}),
		s.On(EventImageData, func(ev Event) {
			mu.Lock()
			prompt, node := curPrompt, curNode
			mu.Unlock()
			if node != nodeID {
				return
			}
			ev.PromptID, ev.Node = prompt, node
			push(ev)
		}),
		s.On(EventExecutionError, push),
		s.On(EventExecutionInterrupted, push),
		s.On(EventExecutionSuccess, push),
	}
	defer func() {
		for _, remove := range listeners {
			remove()
		}
	}()

	resp, err := s.QueuePrompt(ctx, p)
	if err != nil {
		return nil, err
	}

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case ev := <-events:
			if ev.PromptID != resp.PromptID {
				continue
			}
			switch ev.Type {
			case EventImageData:
				if ev.Image != nil {
					return ev.Image.Data, nil
				}
			case EventExecutionError:
				if ev.Error != nil {
					return nil, ev.Error
				}
				return nil, fmt.Errorf("prompt %s: execution error", resp.PromptID)
			case EventExecutionInterrupted:
				return nil, fmt.Errorf("prompt %s: %w", resp.PromptID, ErrInterrupted)
			case EventExecutionSuccess:
				return nil, fmt.Errorf("prompt %s: %w", resp.PromptID, ErrNoImage)
			case EventExecuting:
				if ev.Node == "" {
					return nil, fmt.Errorf("prompt %s: %w", resp.PromptID, ErrNoImage)
				}
			}
		}
	}
}

// Checkpoints returns the checkpoint names the server offers.
func Checkpoints(s schema.Schemas) ([]string, error) {
	names, ok := s.Choices("CheckpointLoaderSimple", "ckpt_name")
	if !ok {
		return nil, ErrNoCheckpoints
	}
	return names, nil
}
