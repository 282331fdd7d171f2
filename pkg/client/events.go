package client

import (
	"encoding/binary"
	"fmt"

	"github.com/tidwall/gjson"
)

// EventType identifies the kind of server event.
type EventType string

const (
	EventStatus               EventType = "status"
	EventProgress             EventType = "progress"
	EventExecutionStart       EventType = "execution_start"
	EventExecutionCached      EventType = "execution_cached"
	EventExecuting            EventType = "executing"
	EventExecuted             EventType = "executed"
	EventExecutionSuccess     EventType = "execution_success"
	EventExecutionError       EventType = "execution_error"
	EventExecutionInterrupted EventType = "execution_interrupted"
	EventImageData            EventType = "imagedata"
)

// ImageFormat is the format code carried in a binary frame header.
type ImageFormat uint32

const (
	ImageJPEG ImageFormat = 1
	ImagePNG  ImageFormat = 2
	ImageWEBP ImageFormat = 3
)

func (f ImageFormat) String() string {
	switch f {
	case ImageJPEG:
		return "jpeg"
	case ImagePNG:
		return "png"
	case ImageWEBP:
		return "webp"
	}
	return fmt.Sprintf("format(%d)", uint32(f))
}

// Image is the payload of an imagedata event.
type Image struct {
	Kind   uint32 // binary event type from the frame header
	Format ImageFormat
	Data   []byte
}

// Event is one message from the event channel. Only the fields relevant to
// Type are set.
type Event struct {
	Type     EventType
	PromptID string

	// status
	QueueRemaining int
	SessionID      string

	// progress, executing, executed. Node is empty when an executing event
	// reports that the prompt has finished.
	Node  string
	Value int
	Max   int

	// execution_cached
	Nodes []string

	// executed
	Output gjson.Result

	// execution_error, execution_interrupted
	Error *ExecutionError

	// imagedata
	Image *Image
}

// ParseEvent decodes a text frame.
func ParseEvent(data []byte) (Event, error) {
	if !gjson.ValidBytes(data) {
		return Event{}, fmt.Errorf("event: invalid JSON")
	}
	msg := gjson.ParseBytes(data)
	d := msg.Get("data")
	ev := Event{
		Type:     EventType(msg.Get("type").String()),
		PromptID: d.Get("prompt_id").String(),
	}

	switch ev.Type {
	case EventStatus:
		ev.QueueRemaining = int(d.Get("status.exec_info.queue_remaining").Int())
		ev.SessionID = d.Get("sid").String()
	case EventProgress:
		ev.Value = int(d.Get("value").Int())
		ev.Max = int(d.Get("max").Int())
		ev.Node = d.Get("node").String()
	case EventExecutionStart, EventExecutionSuccess:
	case EventExecutionCached:
		for _, n := range d.Get("nodes").Array() {
			ev.Nodes = append(ev.Nodes, n.String())
		}
	case EventExecuting:
		ev.Node = d.Get("node").String()
	case EventExecuted:
		ev.Node = d.Get("node").String()
		ev.Output = d.Get("output")
	case EventExecutionError, EventExecutionInterrupted:
		ev.Node = d.Get("node_id").String()
		ev.Error = &ExecutionError{
			PromptID:      ev.PromptID,
			NodeID:        ev.Node,
			NodeType:      d.Get("node_type").String(),
			ExceptionType: d.Get("exception_type").String(),
			Message:       d.Get("exception_message").String(),
		}
		for _, line := range d.Get("traceback").Array() {
			ev.Error.Traceback = append(ev.Error.Traceback, line.String())
		}
	default:
		return ev, fmt.Errorf("%w: %q", ErrUnknownEvent, ev.Type)
	}
	return ev, nil
}

// ParseImageFrame decodes a binary frame: a big-endian uint32 event type, a
// big-endian uint32 image format, then the image bytes.
func ParseImageFrame(frame []byte) (Event, error) {
	if len(frame) < 8 {
		return Event{}, fmt.Errorf("%w: %d bytes", ErrShortFrame, len(frame))
	}
	img := &Image{
		Kind:   binary.BigEndian.Uint32(frame[0:4]),
		Format: ImageFormat(binary.BigEndian.Uint32(frame[4:8])),
		Data:   append([]byte(nil), frame[8:]...),
	}
	return Event{Type: EventImageData, Image: img}, nil
}
