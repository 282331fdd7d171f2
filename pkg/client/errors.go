package client

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownEvent is returned by ParseEvent for event types this client
	// does not model. The read loop logs and drops such events.
	ErrUnknownEvent = errors.New("unknown event type")

	// ErrShortFrame is returned for binary frames without the 8-byte header.
	ErrShortFrame = errors.New("binary frame shorter than header")

	// ErrNotConnected is returned by operations that need the event channel.
	ErrNotConnected = errors.New("event channel not connected")

	// ErrInterrupted is returned by PromptForImage when the prompt is
	// interrupted on the server.
	ErrInterrupted = errors.New("execution interrupted")

	// ErrNoImage is returned by PromptForImage when the prompt completes
	// without the image node emitting an image.
	ErrNoImage = errors.New("prompt finished without an image")

	// ErrNoCheckpoints is returned by Checkpoints when the schema has no
	// checkpoint loader.
	ErrNoCheckpoints = errors.New("no checkpoint loader in object info")
)

// APIError is returned for non-2xx HTTP responses.
type APIError struct {
	StatusCode int
	Type       string // error.type of the response, when present
	Message    string
	NodeErrors map[string]string // node id to raw JSON error report
	Body       string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = strings.TrimSpace(e.Body)
	}
	if len(e.NodeErrors) > 0 {
		return fmt.Sprintf("server error %d: %s (%d node errors)", e.StatusCode, msg, len(e.NodeErrors))
	}
	return fmt.Sprintf("server error %d: %s", e.StatusCode, msg)
}

// ExecutionError is the payload of an execution_error event.
type ExecutionError struct {
	PromptID      string
	NodeID        string
	NodeType      string
	ExceptionType string
	Message       string
	Traceback     []string
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("prompt %s: node %s (%s): %s: %s", e.PromptID, e.NodeID, e.NodeType, e.ExceptionType, e.Message)
}
