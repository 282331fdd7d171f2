package client_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ravi-parthasarathy/comfygraph/pkg/client"
)

func TestParseEvent(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want client.Event
	}{
		{
			name: "status",
			in:   `{"type":"status","data":{"status":{"exec_info":{"queue_remaining":2}},"sid":"abc123"}}`,
			want: client.Event{Type: client.EventStatus, QueueRemaining: 2, SessionID: "abc123"},
		},
		{
			name: "progress",
			in:   `{"type":"progress","data":{"value":3,"max":20,"prompt_id":"p1","node":"3"}}`,
			want: client.Event{Type: client.EventProgress, PromptID: "p1", Node: "3", Value: 3, Max: 20},
		},
		{
			name: "executing",
			in:   `{"type":"executing","data":{"node":"9","display_node":"9","prompt_id":"p1"}}`,
			want: client.Event{Type: client.EventExecuting, PromptID: "p1", Node: "9"},
		},
		{
			name: "executing finished",
			in:   `{"type":"executing","data":{"node":null,"prompt_id":"p1"}}`,
			want: client.Event{Type: client.EventExecuting, PromptID: "p1"},
		},
		{
			name: "cached",
			in:   `{"type":"execution_cached","data":{"nodes":["4","5"],"prompt_id":"p1","timestamp":1}}`,
			want: client.Event{Type: client.EventExecutionCached, PromptID: "p1", Nodes: []string{"4", "5"}},
		},
		{
			name: "start",
			in:   `{"type":"execution_start","data":{"prompt_id":"p1"}}`,
			want: client.Event{Type: client.EventExecutionStart, PromptID: "p1"},
		},
		{
			name: "success",
			in:   `{"type":"execution_success","data":{"prompt_id":"p1"}}`,
			want: client.Event{Type: client.EventExecutionSuccess, PromptID: "p1"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := client.ParseEvent([]byte(tc.in))
			require.NoError(t, err)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("event mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseEvent_Executed(t *testing.T) {
	ev, err := client.ParseEvent([]byte(`{"type":"executed","data":{"node":"9","output":{"images":[{"filename":"a.png"}]},"prompt_id":"p1"}}`))
	require.NoError(t, err)
	assert.Equal(t, "9", ev.Node)
	assert.Equal(t, "a.png", ev.Output.Get("images.0.filename").String())
}

func TestParseEvent_ExecutionError(t *testing.T) {
	ev, err := client.ParseEvent([]byte(`{"type":"execution_error","data":{"prompt_id":"p1","node_id":"3","node_type":"KSampler",
		"exception_message":"CUDA out of memory","exception_type":"torch.OutOfMemoryError","traceback":["line 1","line 2"]}}`))
	require.NoError(t, err)
	require.NotNil(t, ev.Error)
	assert.Equal(t, &client.ExecutionError{
		PromptID:      "p1",
		NodeID:        "3",
		NodeType:      "KSampler",
		ExceptionType: "torch.OutOfMemoryError",
		Message:       "CUDA out of memory",
		Traceback:     []string{"line 1", "line 2"},
	}, ev.Error)
	assert.Contains(t, ev.Error.Error(), "CUDA out of memory")
}

func TestParseEvent_Unknown(t *testing.T) {
	_, err := client.ParseEvent([]byte(`{"type":"crystools.monitor","data":{}}`))
	require.ErrorIs(t, err, client.ErrUnknownEvent)

	_, err = client.ParseEvent([]byte(`not json`))
	require.Error(t, err)
}

func TestParseImageFrame(t *testing.T) {
	frame := []byte{0, 0, 0, 1, 0, 0, 0, 2, 0x89, 'P', 'N', 'G'}
	ev, err := client.ParseImageFrame(frame)
	require.NoError(t, err)
	assert.Equal(t, client.EventImageData, ev.Type)
	require.NotNil(t, ev.Image)
	assert.Equal(t, uint32(1), ev.Image.Kind)
	assert.Equal(t, client.ImagePNG, ev.Image.Format)
	assert.Equal(t, "png", ev.Image.Format.String())
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, ev.Image.Data)

	frame[8] = 0
	assert.Equal(t, byte(0x89), ev.Image.Data[0], "payload is copied")

	_, err = client.ParseImageFrame([]byte{0, 0, 0, 1})
	require.ErrorIs(t, err, client.ErrShortFrame)
}
