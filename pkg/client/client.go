// Package client talks to a job server: prompt submission and object info
// over HTTP, progress and image events over a WebSocket.
package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"resty.dev/v3"

	"github.com/ravi-parthasarathy/comfygraph/pkg/graph"
	"github.com/ravi-parthasarathy/comfygraph/pkg/schema"
)

const defaultTimeout = 30 * time.Second

// Config selects the server and per-request limits.
type Config struct {
	Host     string        // host:port, without scheme
	Secure   bool          // use https/wss
	ClientID string        // generated when empty
	Timeout  time.Duration // HTTP and handshake timeout; 30s when zero
}

// Client is a connection to one server. HTTP calls may be made without
// Connect; events need Connect.
type Client struct {
	cfg    Config
	http   *resty.Client
	logger *zap.Logger

	mu       sync.Mutex
	clientID string
	conn     *websocket.Conn

	lmu       sync.Mutex
	listeners map[EventType][]*listener
	nextID    uint64

	ready     chan struct{}
	readyOnce sync.Once
	done      chan struct{}
	readErr   error
}

type listener struct {
	id uint64
	fn func(Event)
}

// PromptResponse is the server's reply to a queued prompt.
type PromptResponse struct {
	PromptID   string
	Number     int
	NodeErrors map[string]string
}

// New creates a Client. A nil logger disables logging.
func New(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.ClientID == "" {
		cfg.ClientID = uuid.NewString()
	}
	scheme := "http"
	if cfg.Secure {
		scheme = "https"
	}
	hc := resty.New().
		SetBaseURL(scheme+"://"+cfg.Host).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json").
		SetLogger(logger.Sugar())

	return &Client{
		cfg:       cfg,
		http:      hc,
		logger:    logger.With(zap.String("host", cfg.Host)),
		clientID:  cfg.ClientID,
		listeners: make(map[EventType][]*listener),
		ready:     make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// ClientID returns the id sent with queued prompts. After Connect it is the
// session id the server assigned.
func (c *Client) ClientID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clientID
}

// ─── HTTP ─────────────────────────────────────────────────────────────────────

type promptRequest struct {
	Prompt   graph.Prompt `json:"prompt"`
	ClientID string       `json:"client_id"`
}

// QueuePrompt submits a prompt for execution.
func (c *Client) QueuePrompt(ctx context.Context, p graph.Prompt) (PromptResponse, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(promptRequest{Prompt: p, ClientID: c.ClientID()}).
		Post("/prompt")
	if err != nil {
		return PromptResponse{}, fmt.Errorf("queue prompt: %w", err)
	}
	body := resp.Bytes()
	if resp.IsError() {
		return PromptResponse{}, apiError(resp.StatusCode(), body)
	}

	r := gjson.ParseBytes(body)
	out := PromptResponse{
		PromptID:   r.Get("prompt_id").String(),
		Number:     int(r.Get("number").Int()),
		NodeErrors: nodeErrors(r.Get("node_errors")),
	}
	c.logger.Debug("prompt queued",
		zap.String("prompt_id", out.PromptID),
		zap.Int("number", out.Number),
		zap.Int("nodes", p.Len()))
	return out, nil
}

// ObjectInfo fetches and parses the schema of every node class.
func (c *Client) ObjectInfo(ctx context.Context) (schema.Schemas, error) {
	resp, err := c.http.R().SetContext(ctx).Get("/object_info")
	if err != nil {
		return nil, fmt.Errorf("object info: %w", err)
	}
	if resp.IsError() {
		return nil, apiError(resp.StatusCode(), resp.Bytes())
	}
	s, err := schema.Parse(resp.Bytes(), c.logger)
	if err != nil {
		return nil, fmt.Errorf("object info: %w", err)
	}
	return s, nil
}

func apiError(status int, body []byte) *APIError {
	e := &APIError{StatusCode: status, Body: string(body)}
	if gjson.ValidBytes(body) {
		r := gjson.ParseBytes(body)
		e.Type = r.Get("error.type").String()
		e.Message = r.Get("error.message").String()
		if e.Message == "" {
			e.Message = r.Get("error").String()
		}
		e.NodeErrors = nodeErrors(r.Get("node_errors"))
	}
	return e
}

func nodeErrors(r gjson.Result) map[string]string {
	if !r.IsObject() {
		return nil
	}
	out := map[string]string{}
	r.ForEach(func(k, v gjson.Result) bool {
		out[k.String()] = v.Raw
		return true
	})
	if len(out) == 0 {
		return nil
	}
	return out
}

// ─── Events ───────────────────────────────────────────────────────────────────

// Connect dials the event channel and starts the read loop. Ready closes
// once the server has announced the session.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return errors.New("connect: already connected")
	}

	scheme := "ws"
	if c.cfg.Secure {
		scheme = "wss"
	}
	u := url.URL{Scheme: scheme, Host: c.cfg.Host, Path: "/ws", RawQuery: url.Values{"clientId": {c.clientID}}.Encode()}
	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.Timeout}
	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("connect %s: %w", u.Redacted(), err)
	}
	c.conn = conn
	c.logger.Info("event channel connected", zap.String("client_id", c.clientID))
	go c.readLoop(conn)
	return nil
}

// Ready is closed when the first status event carrying a session id arrives.
func (c *Client) Ready() <-chan struct{} { return c.ready }

// Done is closed when the read loop stops.
func (c *Client) Done() <-chan struct{} { return c.done }

// Err returns why the read loop stopped. It is nil before Done closes and
// after a Close initiated by this side.
func (c *Client) Err() error {
	select {
	case <-c.done:
		return c.readErr
	default:
		return nil
	}
}

// Close shuts the event channel down. It is the only way to stop the read
// loop; pending PromptForImage calls observe it through their context or
// through Done.
func (c *Client) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return nil
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	err := conn.Close()
	<-c.done
	return err
}

// On registers fn for events of type t and returns a function removing it.
// Listeners run on the read loop goroutine in arrival order and must not block.
// Close waits for the read loop, so a listener must not call it directly;
// start it in a new goroutine instead.
func (c *Client) On(t EventType, fn func(Event)) (remove func()) {
	c.lmu.Lock()
	c.nextID++
	l := &listener{id: c.nextID, fn: fn}
	c.listeners[t] = append(c.listeners[t], l)
	c.lmu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.lmu.Lock()
			defer c.lmu.Unlock()
			ls := c.listeners[t]
			for i, x := range ls {
				if x.id == l.id {
					c.listeners[t] = append(ls[:i:i], ls[i+1:]...)
					break
				}
			}
		})
	}
}

func (c *Client) dispatch(ev Event) {
	c.lmu.Lock()
	snapshot := append([]*listener(nil), c.listeners[ev.Type]...)
	c.lmu.Unlock()
	for _, l := range snapshot {
		l.fn(ev)
	}
}

func (c *Client) readLoop(conn *websocket.Conn) {
	defer close(c.done)
	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) && !errors.Is(err, net.ErrClosed) {
				c.readErr = err
				c.logger.Warn("event channel closed", zap.Error(err))
			}
			return
		}

		var ev Event
		switch mt {
		case websocket.BinaryMessage:
			ev, err = ParseImageFrame(data)
		case websocket.TextMessage:
			ev, err = ParseEvent(data)
		default:
			continue
		}
		if err != nil {
			c.logger.Warn("event dropped", zap.Error(err))
			continue
		}

		if ev.Type == EventStatus && ev.SessionID != "" {
			c.mu.Lock()
			c.clientID = ev.SessionID
			c.mu.Unlock()
			c.readyOnce.Do(func() { close(c.ready) })
		}
		c.dispatch(ev)
	}
}
