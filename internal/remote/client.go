package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// ErrClosed is returned by requests issued on, or pending when, the
// connection closes.
var ErrClosed = errors.New("remote: connection closed")

// RequestError is an error response from the server.
type RequestError struct {
	Type    MessageType
	Kind    string
	Message string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("remote %s failed (%s): %s", e.Type, e.Kind, e.Message)
}

// Client issues requests to a Server and receives its pushed events.
type Client struct {
	conn   *websocket.Conn
	logger zerolog.Logger

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan Envelope
	err     error

	events chan Envelope
	done   chan struct{}
}

type clientOptions struct {
	token       string
	logger      zerolog.Logger
	eventBuffer int
}

// ClientOption configures Dial.
type ClientOption func(*clientOptions)

// WithBearerToken sends token in the Authorization header.
func WithBearerToken(token string) ClientOption {
	return func(o *clientOptions) { o.token = token }
}

func WithClientLogger(logger zerolog.Logger) ClientOption {
	return func(o *clientOptions) { o.logger = logger }
}

// WithEventBuffer sets how many pushed events are buffered before new ones
// are dropped.
func WithEventBuffer(n int) ClientOption {
	return func(o *clientOptions) {
		if n > 0 {
			o.eventBuffer = n
		}
	}
}

// Dial connects to the server websocket at url (ws:// or wss://).
func Dial(ctx context.Context, url string, opts ...ClientOption) (*Client, error) {
	o := clientOptions{logger: zerolog.Nop(), eventBuffer: 256}
	for _, opt := range opts {
		opt(&o)
	}

	header := http.Header{}
	if o.token != "" {
		header.Set("Authorization", "Bearer "+o.token)
	}
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, fmt.Errorf("dial %s: unauthorized", url)
		}
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	c := &Client{
		conn:    conn,
		logger:  o.logger.With().Str("component", "remote").Logger(),
		pending: make(map[string]chan Envelope),
		events:  make(chan Envelope, o.eventBuffer),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// Events returns pushed ipc_message and application_event envelopes. The
// channel is closed when the connection ends.
func (c *Client) Events() <-chan Envelope {
	return c.events
}

// Done is closed when the connection ends.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err returns why the connection ended, nil while it is open.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Close sends a close frame and releases the connection.
func (c *Client) Close() error {
	c.writeMu.Lock()
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()
	err := c.conn.Close()
	<-c.done
	return err
}

func (c *Client) readLoop() {
	var readErr error
	defer func() {
		c.mu.Lock()
		c.err = errors.Join(ErrClosed, readErr)
		pending := c.pending
		c.pending = nil
		c.mu.Unlock()
		for _, ch := range pending {
			close(ch)
		}
		close(c.events)
		close(c.done)
	}()

	for {
		var env Envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				readErr = err
			}
			return
		}

		if env.ID == "" {
			select {
			case c.events <- env:
			default:
				c.logger.Warn().Str("type", string(env.Type)).Msg("event buffer full, dropping event")
			}
			continue
		}

		c.mu.Lock()
		ch, ok := c.pending[env.ID]
		delete(c.pending, env.ID)
		c.mu.Unlock()
		if !ok {
			c.logger.Debug().Str("request_id", env.ID).Msg("response for unknown request")
			continue
		}
		ch <- env
	}
}

// Do sends req with a fresh request id and waits for its response. An error
// response is returned as a *RequestError.
func (c *Client) Do(ctx context.Context, req Envelope) (Envelope, error) {
	req.ID = uuid.NewString()
	ch := make(chan Envelope, 1)

	c.mu.Lock()
	if c.pending == nil {
		c.mu.Unlock()
		return Envelope{}, ErrClosed
	}
	c.pending[req.ID] = ch
	c.mu.Unlock()

	c.writeMu.Lock()
	err := c.conn.WriteJSON(req)
	c.writeMu.Unlock()
	if err != nil {
		c.forget(req.ID)
		return Envelope{}, fmt.Errorf("send %s: %w", req.Type, err)
	}

	select {
	case resp, ok := <-ch:
		if !ok {
			return Envelope{}, ErrClosed
		}
		if resp.Type == TypeError {
			var p ErrorPayload
			if err := resp.decode(&p); err != nil {
				return resp, err
			}
			return resp, &RequestError{Type: req.Type, Kind: p.Kind, Message: p.Message}
		}
		return resp, nil
	case <-ctx.Done():
		c.forget(req.ID)
		return Envelope{}, fmt.Errorf("%s: %w", req.Type, ctx.Err())
	}
}

func (c *Client) forget(id string) {
	c.mu.Lock()
	if c.pending != nil {
		delete(c.pending, id)
	}
	c.mu.Unlock()
}

// call builds a request, sends it and decodes the success data into out
// when out is non-nil.
func (c *Client) call(ctx context.Context, typ MessageType, windowID, webviewID uint64, payload, out any) error {
	req, err := newEnvelope("", typ, payload)
	if err != nil {
		return err
	}
	req.WindowID = windowID
	req.WebViewID = webviewID

	resp, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	var success SuccessPayload
	if err := resp.decode(&success); err != nil {
		return err
	}
	if len(success.Data) == 0 {
		return fmt.Errorf("%s: empty response data", typ)
	}
	if err := json.Unmarshal(success.Data, out); err != nil {
		return fmt.Errorf("decode %s response: %w", typ, err)
	}
	return nil
}

// Ping checks the connection.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.Do(ctx, Envelope{Type: TypePing})
	if err != nil {
		return err
	}
	if resp.Type != TypePong {
		return fmt.Errorf("ping: unexpected response %q", resp.Type)
	}
	return nil
}

// CreateWindow builds a window and returns its id.
func (c *Client) CreateWindow(ctx context.Context, p CreateWindowPayload) (uint64, error) {
	var out WindowCreated
	if err := c.call(ctx, TypeCreateWindow, 0, 0, p, &out); err != nil {
		return 0, err
	}
	return out.WindowID, nil
}

func (c *Client) CloseWindow(ctx context.Context, windowID uint64) error {
	return c.call(ctx, TypeCloseWindow, windowID, 0, nil, nil)
}

// CreateWebView builds a webview on windowID, or a standalone one when
// windowID is zero.
func (c *Client) CreateWebView(ctx context.Context, windowID uint64, p CreateWebViewPayload) (WebViewCreated, error) {
	var out WebViewCreated
	err := c.call(ctx, TypeCreateWebView, windowID, 0, p, &out)
	return out, err
}

// EvaluateScript returns the JSON text of the script's value.
func (c *Client) EvaluateScript(ctx context.Context, webviewID uint64, script string) (string, error) {
	var out ScriptResult
	if err := c.call(ctx, TypeEvaluateScript, 0, webviewID, ScriptPayload{Script: script}, &out); err != nil {
		return "", err
	}
	return out.Result, nil
}

func (c *Client) LoadURL(ctx context.Context, webviewID uint64, url string) error {
	return c.call(ctx, TypeLoadURL, 0, webviewID, URLPayload{URL: url}, nil)
}

func (c *Client) LoadHTML(ctx context.Context, webviewID uint64, html string) error {
	return c.call(ctx, TypeLoadHTML, 0, webviewID, HTMLPayload{HTML: html}, nil)
}

func (c *Client) SetWindowVisible(ctx context.Context, windowID uint64, visible bool) error {
	return c.call(ctx, TypeSetWindowVisible, windowID, 0, VisiblePayload{Visible: visible}, nil)
}

func (c *Client) SetWindowTitle(ctx context.Context, windowID uint64, title string) error {
	return c.call(ctx, TypeSetWindowTitle, windowID, 0, TitlePayload{Title: title}, nil)
}

// Send delivers msg to the page of webviewID.
func (c *Client) Send(ctx context.Context, webviewID uint64, msg string) error {
	return c.call(ctx, TypeSend, 0, webviewID, SendPayload{Message: msg}, nil)
}

// Exit asks the server's event loop to exit with code.
func (c *Client) Exit(ctx context.Context, code int) error {
	return c.call(ctx, TypeExit, 0, 0, ExitPayload{Code: code}, nil)
}
