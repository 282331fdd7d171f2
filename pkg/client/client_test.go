package client_test

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"go.uber.org/zap/zaptest"

	"github.com/ravi-parthasarathy/comfygraph/pkg/client"
	"github.com/ravi-parthasarathy/comfygraph/pkg/graph"
	"github.com/ravi-parthasarathy/comfygraph/pkg/schema"
)

const objectInfo = `{"CheckpointLoaderSimple":{"input":{"required":{"ckpt_name":[["a.safetensors","b.safetensors"]]}},
	"output":["MODEL","CLIP","VAE"],"output_is_list":[false,false,false],"output_name":["MODEL","CLIP","VAE"],
	"name":"CheckpointLoaderSimple","display_name":"Load Checkpoint","description":"","category":"loaders","output_node":false}}`

func hostOf(srv *httptest.Server) string {
	return strings.TrimPrefix(srv.URL, "http://")
}

func samplePrompt(t *testing.T) graph.Prompt {
	t.Helper()
	g := graph.New()
	ckpt := graph.NewNode("CheckpointLoaderSimple")
	ckpt.SetInput("ckpt_name", "a.safetensors")
	_, err := g.AddNode(ckpt)
	require.NoError(t, err)
	save := graph.NewNode("SaveImageWebsocket")
	require.NoError(t, g.AddNodeWithID(save, "IMAGE"))
	p, err := g.Prompt()
	require.NoError(t, err)
	return p
}

func imageFrame(data []byte) []byte {
	frame := make([]byte, 8, 8+len(data))
	binary.BigEndian.PutUint32(frame[0:4], 1)
	binary.BigEndian.PutUint32(frame[4:8], uint32(client.ImagePNG))
	return append(frame, data...)
}

// ─── HTTP ─────────────────────────────────────────────────────────────────────

func TestQueuePrompt(t *testing.T) {
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/prompt", r.URL.Path)
		body, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"prompt_id":"p-1","number":7,"node_errors":{}}`)
	}))
	defer srv.Close()

	c := client.New(client.Config{Host: hostOf(srv), ClientID: "me"}, zaptest.NewLogger(t))
	resp, err := c.QueuePrompt(testContext(t), samplePrompt(t))
	require.NoError(t, err)
	assert.Equal(t, client.PromptResponse{PromptID: "p-1", Number: 7}, resp)

	req := gjson.ParseBytes(body)
	assert.Equal(t, "me", req.Get("client_id").String())
	assert.Equal(t, "CheckpointLoaderSimple", req.Get("prompt.0.class_type").String())
	assert.Equal(t, "SaveImageWebsocket", req.Get("prompt.IMAGE.class_type").String())
	var ids []string
	req.Get("prompt").ForEach(func(k, _ gjson.Result) bool {
		ids = append(ids, k.String())
		return true
	})
	assert.Equal(t, []string{"0", "IMAGE"}, ids)
}

func TestQueuePrompt_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":{"type":"prompt_outputs_failed_validation","message":"Prompt outputs failed validation","details":""},
			"node_errors":{"3":{"errors":[{"type":"value_not_in_list"}],"class_type":"KSampler"}}}`)
	}))
	defer srv.Close()

	c := client.New(client.Config{Host: hostOf(srv)}, nil)
	_, err := c.QueuePrompt(testContext(t), samplePrompt(t))

	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "prompt_outputs_failed_validation", apiErr.Type)
	assert.Equal(t, "Prompt outputs failed validation", apiErr.Message)
	require.Contains(t, apiErr.NodeErrors, "3")
	assert.Contains(t, apiErr.NodeErrors["3"], "value_not_in_list")
	assert.Contains(t, err.Error(), "1 node errors")
}

func TestObjectInfo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/object_info", r.URL.Path)
		_, _ = io.WriteString(w, objectInfo)
	}))
	defer srv.Close()

	c := client.New(client.Config{Host: hostOf(srv)}, nil)
	s, err := c.ObjectInfo(testContext(t))
	require.NoError(t, err)

	ckpts, err := client.Checkpoints(s)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.safetensors", "b.safetensors"}, ckpts)
}

func TestObjectInfo_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := client.New(client.Config{Host: hostOf(srv)}, nil)
	_, err := c.ObjectInfo(testContext(t))
	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Contains(t, err.Error(), "boom")
}

func TestCheckpoints_Missing(t *testing.T) {
	_, err := client.Checkpoints(schema.Schemas{})
	require.ErrorIs(t, err, client.ErrNoCheckpoints)
}

// ─── Events ───────────────────────────────────────────────────────────────────

// fakeServer serves /prompt and /ws. Each queued prompt triggers script on
// the socket.
type fakeServer struct {
	*httptest.Server
	clientIDs chan string
	queued    chan string
	script    func(conn *websocket.Conn, promptID string)
}

func newFakeServer(t *testing.T, script func(conn *websocket.Conn, promptID string)) *fakeServer {
	t.Helper()
	fs := &fakeServer{
		clientIDs: make(chan string, 1),
		queued:    make(chan string, 1),
		script:    script,
	}
	upgrader := websocket.Upgrader{}
	mux := http.NewServeMux()
	mux.HandleFunc("/prompt", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"prompt_id":"p-1","number":1,"node_errors":{}}`)
		fs.queued <- "p-1"
	})
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		fs.clientIDs <- r.URL.Query().Get("clientId")
		_ = conn.WriteMessage(websocket.TextMessage,
			[]byte(`{"type":"status","data":{"status":{"exec_info":{"queue_remaining":0}},"sid":"server-sid"}}`))

		go func() {
			for pid := range fs.queued {
				fs.script(conn, pid)
			}
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	fs.Server = httptest.NewServer(mux)
	t.Cleanup(fs.Close)
	return fs
}

func connect(t *testing.T, host string) *client.Client {
	t.Helper()
	c := client.New(client.Config{Host: host, ClientID: "local-id", Timeout: 5 * time.Second}, zaptest.NewLogger(t))
	require.NoError(t, c.Connect(testContext(t)))
	t.Cleanup(func() { _ = c.Close() })
	select {
	case <-c.Ready():
	case <-time.After(5 * time.Second):
		t.Fatal("client never became ready")
	}
	return c
}

func TestConnect_ReadyAdoptsSessionID(t *testing.T) {
	fs := newFakeServer(t, func(*websocket.Conn, string) {})
	c := connect(t, hostOf(fs.Server))

	assert.Equal(t, "local-id", <-fs.clientIDs)
	assert.Equal(t, "server-sid", c.ClientID())
}

func TestEvents_DeliveredInOrderAndUnknownDropped(t *testing.T) {
	fs := newFakeServer(t, func(conn *websocket.Conn, pid string) {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"execution_start","data":{"prompt_id":"`+pid+`"}}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"crystools.monitor","data":{}}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"executing","data":{"node":"3","prompt_id":"`+pid+`"}}`))
		_ = conn.WriteMessage(websocket.BinaryMessage, imageFrame([]byte("img")))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"execution_success","data":{"prompt_id":"`+pid+`"}}`))
	})
	c := connect(t, hostOf(fs.Server))

	var mu sync.Mutex
	var got []client.EventType
	done := make(chan struct{})
	record := func(ev client.Event) {
		mu.Lock()
		got = append(got, ev.Type)
		mu.Unlock()
		if ev.Type == client.EventExecutionSuccess {
			close(done)
		}
	}
	for _, typ := range []client.EventType{client.EventExecutionStart, client.EventExecuting, client.EventImageData, client.EventExecutionSuccess} {
		defer c.On(typ, record)()
	}

	_, err := c.QueuePrompt(testContext(t), samplePrompt(t))
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for events")
	}
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []client.EventType{
		client.EventExecutionStart,
		client.EventExecuting,
		client.EventImageData,
		client.EventExecutionSuccess,
	}, got)
}

func TestOn_RemoveStopsDelivery(t *testing.T) {
	fs := newFakeServer(t, func(conn *websocket.Conn, pid string) {
		for i := 0; i < 2; i++ {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"execution_start","data":{"prompt_id":"`+pid+`"}}`))
		}
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"execution_success","data":{"prompt_id":"`+pid+`"}}`))
	})
	c := connect(t, hostOf(fs.Server))

	var mu sync.Mutex
	calls := 0
	var remove func()
	mu.Lock()
	remove = c.On(client.EventExecutionStart, func(client.Event) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		remove()
	})
	mu.Unlock()
	done := make(chan struct{})
	defer c.On(client.EventExecutionSuccess, func(client.Event) { close(done) })()

	_, err := c.QueuePrompt(testContext(t), samplePrompt(t))
	require.NoError(t, err)
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for events")
	}
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, calls)
}

func TestClose_StartedFromListener(t *testing.T) {
	fs := newFakeServer(t, func(conn *websocket.Conn, pid string) {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"execution_start","data":{"prompt_id":"`+pid+`"}}`))
	})
	c := connect(t, hostOf(fs.Server))

	closed := make(chan error, 1)
	defer c.On(client.EventExecutionStart, func(client.Event) {
		go func() { closed <- c.Close() }()
	})()

	_, err := c.QueuePrompt(testContext(t), samplePrompt(t))
	require.NoError(t, err)
	select {
	case err := <-closed:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Close from a listener never returned")
	}
	select {
	case <-c.Done():
	default:
		t.Fatal("read loop still running after Close")
	}
	assert.NoError(t, c.Err())
}

func TestPromptForImage_OverWebsocket(t *testing.T) {
	fs := newFakeServer(t, func(conn *websocket.Conn, pid string) {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"executing","data":{"node":"0","prompt_id":"`+pid+`"}}`))
		_ = conn.WriteMessage(websocket.BinaryMessage, imageFrame([]byte("preview")))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"executing","data":{"node":"IMAGE","prompt_id":"`+pid+`"}}`))
		_ = conn.WriteMessage(websocket.BinaryMessage, imageFrame([]byte("final")))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"executing","data":{"node":null,"prompt_id":"`+pid+`"}}`))
	})
	c := connect(t, hostOf(fs.Server))

	ctx, cancel := context.WithTimeout(testContext(t), 5*time.Second)
	defer cancel()
	img, err := client.PromptForImage(ctx, c, samplePrompt(t), "IMAGE")
	require.NoError(t, err)
	assert.Equal(t, []byte("final"), img)
}

// ─── PromptForImage with a scripted session ───────────────────────────────────

type scriptedSession struct {
	listeners map[client.EventType][]func(client.Event)
	events    []client.Event
	queueErr  error
}

func (s *scriptedSession) On(t client.EventType, fn func(client.Event)) func() {
	if s.listeners == nil {
		s.listeners = map[client.EventType][]func(client.Event){}
	}
	s.listeners[t] = append(s.listeners[t], fn)
	return func() {}
}

func (s *scriptedSession) QueuePrompt(context.Context, graph.Prompt) (client.PromptResponse, error) {
	if s.queueErr != nil {
		return client.PromptResponse{}, s.queueErr
	}
	for _, ev := range s.events {
		for _, fn := range s.listeners[ev.Type] {
			fn(ev)
		}
	}
	return client.PromptResponse{PromptID: "mine"}, nil
}

func TestPromptForImage_IgnoresOtherPrompts(t *testing.T) {
	s := &scriptedSession{events: []client.Event{
		{Type: client.EventExecuting, PromptID: "other", Node: "IMAGE"},
		{Type: client.EventImageData, Image: &client.Image{Data: []byte("theirs")}},
		{Type: client.EventExecuting, PromptID: "mine", Node: "IMAGE"},
		{Type: client.EventImageData, Image: &client.Image{Data: []byte("ours")}},
	}}
	img, err := client.PromptForImage(testContext(t), s, graph.Prompt{}, "IMAGE")
	require.NoError(t, err)
	assert.Equal(t, []byte("ours"), img)
}

func TestPromptForImage_ExecutionError(t *testing.T) {
	execErr := &client.ExecutionError{PromptID: "mine", NodeID: "3", Message: "bad"}
	s := &scriptedSession{events: []client.Event{
		{Type: client.EventExecutionError, PromptID: "mine", Error: execErr},
	}}
	_, err := client.PromptForImage(testContext(t), s, graph.Prompt{}, "IMAGE")
	var got *client.ExecutionError
	require.ErrorAs(t, err, &got)
	assert.Equal(t, "3", got.NodeID)
}

func TestPromptForImage_FinishedWithoutImage(t *testing.T) {
	s := &scriptedSession{events: []client.Event{
		{Type: client.EventExecuting, PromptID: "mine", Node: "3"},
		{Type: client.EventImageData, Image: &client.Image{Data: []byte("preview")}},
		{Type: client.EventExecutionSuccess, PromptID: "mine"},
	}}
	_, err := client.PromptForImage(testContext(t), s, graph.Prompt{}, "IMAGE")
	require.ErrorIs(t, err, client.ErrNoImage)
}

func TestPromptForImage_Interrupted(t *testing.T) {
	s := &scriptedSession{events: []client.Event{
		{Type: client.EventExecutionInterrupted, PromptID: "mine"},
	}}
	_, err := client.PromptForImage(testContext(t), s, graph.Prompt{}, "IMAGE")
	require.ErrorIs(t, err, client.ErrInterrupted)
}

func TestPromptForImage_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(testContext(t))
	cancel()
	_, err := client.PromptForImage(ctx, &scriptedSession{}, graph.Prompt{}, "IMAGE")
	require.ErrorIs(t, err, context.Canceled)
}

func TestPromptForImage_QueueFailure(t *testing.T) {
	boom := errors.New("boom")
	_, err := client.PromptForImage(testContext(t), &scriptedSession{queueErr: boom}, graph.Prompt{}, "IMAGE")
	require.ErrorIs(t, err, boom)
}
