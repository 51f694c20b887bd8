package remote

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/bnema/webloop/internal/logging"
	"github.com/bnema/webloop/pkg/webview"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	defaultRequestTimeout = 30 * time.Second
	clientSendBuffer      = 256
	writeWait             = 10 * time.Second
	shutdownTimeout       = 5 * time.Second
)

// WebViewDefaults are applied to every webview created through the server
// before the request's own fields.
type WebViewDefaults struct {
	UserAgent       string
	Devtools        bool
	BackgroundColor string
}

// Server executes remote requests against an event loop.
type Server struct {
	loop     *webview.EventLoop
	logger   zerolog.Logger
	token    string
	timeout  time.Duration
	defaults WebViewDefaults
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithToken requires "Authorization: Bearer <token>" on every connection.
func WithToken(token string) ServerOption {
	return func(s *Server) { s.token = token }
}

// WithRequestTimeout bounds the execution of a single request.
func WithRequestTimeout(d time.Duration) ServerOption {
	return func(s *Server) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func WithServerLogger(logger zerolog.Logger) ServerOption {
	return func(s *Server) { s.logger = logger }
}

func WithWebViewDefaults(d WebViewDefaults) ServerOption {
	return func(s *Server) { s.defaults = d }
}

// NewServer creates a server for loop. Application events of the loop are
// pushed to every connected client.
func NewServer(loop *webview.EventLoop, opts ...ServerOption) *Server {
	s := &Server{
		loop:     loop,
		logger:   zerolog.Nop(),
		timeout:  defaultRequestTimeout,
		defaults: WebViewDefaults{Devtools: true},
		clients:  make(map[*client]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With().Str("component", "remote").Logger()
	loop.OnEvent(s.onEvent)
	return s
}

// Serve accepts connections on ln until ctx is canceled or the loop stops.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	s.logger.Info().Str("addr", ln.Addr().String()).Msg("remote server listening")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	case <-s.loop.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.closeClients()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown remote server: %w", err)
	}
	return nil
}

// ListenAndServe listens on addr and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// ServeHTTP upgrades the request to a websocket and serves it until the
// peer disconnects.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	ctx := logging.WithContext(r.Context(), s.logger.With().Str("peer", r.RemoteAddr).Logger())
	ctx = logging.WithConnID(ctx, uuid.NewString())
	c := newClient(conn, *logging.FromContext(ctx))
	s.addClient(c)
	defer s.removeClient(c)

	go c.writePump()
	s.readPump(ctx, c)
}

func (s *Server) authorized(r *http.Request) bool {
	if s.token == "" {
		return true
	}
	got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	return ok && subtle.ConstantTimeCompare([]byte(got), []byte(s.token)) == 1
}

func (s *Server) readPump(ctx context.Context, c *client) {
	defer c.close()
	for {
		var env Envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Debug().Err(err).Msg("remote client read failed")
			}
			return
		}
		resp := s.handle(ctx, env)
		c.reply(resp)
		if env.Type == TypeExit && resp.Type == TypeSuccess {
			// Exit after the response is queued so it is flushed on shutdown.
			var p ExitPayload
			_ = env.decode(&p)
			s.loop.ExitWithCode(p.Code)
		}
	}
}

func (s *Server) addClient(c *client) {
	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()
	c.logger.Debug().Msg("remote client connected")
}

func (s *Server) removeClient(c *client) {
	s.mu.Lock()
	delete(s.clients, c)
	s.mu.Unlock()
	c.logger.Debug().Msg("remote client disconnected")
}

func (s *Server) closeClients() {
	s.mu.Lock()
	clients := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()
	for _, c := range clients {
		c.close()
	}
}

// broadcast pushes env to every client without blocking the caller.
func (s *Server) broadcast(env Envelope) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		c.push(env)
	}
}

func (s *Server) onEvent(ev webview.Event) {
	payload := ApplicationEventPayload{Event: ev.Type.String(), URL: ev.URL}
	if ev.Err != nil {
		payload.Error = ev.Err.Error()
	}
	env, err := newEnvelope("", TypeApplicationEvent, payload)
	if err != nil {
		return
	}
	env.WindowID = ev.WindowID
	env.WebViewID = ev.WebViewID
	s.broadcast(env)
}

func (s *Server) forwardIPC(msg webview.Message) error {
	env, err := newEnvelope("", TypeIPCMessage, IPCMessagePayload{
		Label: msg.Label,
		Body:  msg.Body,
		URL:   msg.URL,
	})
	if err != nil {
		return err
	}
	env.WebViewID = msg.WebViewID
	s.broadcast(env)
	return nil
}

// handle executes one request and returns its response.
func (s *Server) handle(ctx context.Context, req Envelope) Envelope {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	ctx = logging.WithRequest(ctx, req.ID, string(req.Type))
	logger := logging.FromContext(ctx)
	start := time.Now()

	if req.Type == TypePing {
		return Envelope{ID: req.ID, Type: TypePong}
	}

	data, err := s.execute(ctx, req)
	if err != nil {
		logger.Debug().Err(err).Dur("elapsed", time.Since(start)).Msg("request failed")
		return errorEnvelope(req.ID, err)
	}
	logger.Debug().Dur("elapsed", time.Since(start)).Msg("request done")

	var success SuccessPayload
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return errorEnvelope(req.ID, err)
		}
		success.Data = raw
	}
	resp, err := newEnvelope(req.ID, TypeSuccess, success)
	if err != nil {
		return errorEnvelope(req.ID, err)
	}
	resp.WindowID = req.WindowID
	resp.WebViewID = req.WebViewID
	return resp
}

func (s *Server) execute(ctx context.Context, req Envelope) (any, error) {
	switch req.Type {
	case TypeCreateWindow:
		return s.createWindow(ctx, req)
	case TypeCloseWindow:
		w, err := s.window(req.WindowID)
		if err != nil {
			return nil, err
		}
		return nil, w.Destroy(ctx)
	case TypeCreateWebView:
		return s.createWebView(ctx, req)
	case TypeEvaluateScript:
		var p ScriptPayload
		v, err := s.webViewWithPayload(req, &p)
		if err != nil {
			return nil, err
		}
		result, err := v.EvaluateScript(ctx, p.Script)
		if err != nil {
			return nil, err
		}
		return ScriptResult{Result: result}, nil
	case TypeLoadURL:
		var p URLPayload
		v, err := s.webViewWithPayload(req, &p)
		if err != nil {
			return nil, err
		}
		return nil, v.LoadURL(ctx, p.URL)
	case TypeLoadHTML:
		var p HTMLPayload
		v, err := s.webViewWithPayload(req, &p)
		if err != nil {
			return nil, err
		}
		return nil, v.LoadHTML(ctx, p.HTML)
	case TypeSetWindowVisible:
		var p VisiblePayload
		if err := req.decode(&p); err != nil {
			return nil, err
		}
		w, err := s.window(req.WindowID)
		if err != nil {
			return nil, err
		}
		return nil, w.SetVisible(ctx, p.Visible)
	case TypeSetWindowTitle:
		var p TitlePayload
		if err := req.decode(&p); err != nil {
			return nil, err
		}
		w, err := s.window(req.WindowID)
		if err != nil {
			return nil, err
		}
		return nil, w.SetTitle(ctx, p.Title)
	case TypeSend:
		var p SendPayload
		v, err := s.webViewWithPayload(req, &p)
		if err != nil {
			return nil, err
		}
		return nil, v.Send(p.Message)
	case TypeExit:
		var p ExitPayload
		return nil, req.decode(&p)
	default:
		return nil, fmt.Errorf("%w: %q", errUnknownRequest, req.Type)
	}
}

var (
	errUnknownRequest = errors.New("unknown request type")
	errNotFound       = errors.New("not found")
)

func (s *Server) createWindow(ctx context.Context, req Envelope) (any, error) {
	var p CreateWindowPayload
	if err := req.decode(&p); err != nil {
		return nil, err
	}
	b := webview.NewWindowBuilder()
	if p.Title != "" {
		b.WithTitle(p.Title)
	}
	if p.Width > 0 || p.Height > 0 {
		size := b.Config().Size
		if p.Width > 0 {
			size.Width = p.Width
		}
		if p.Height > 0 {
			size.Height = p.Height
		}
		b.WithInnerSize(size.Width, size.Height)
	}
	if p.Visible != nil {
		b.WithVisible(*p.Visible)
	}
	w, err := b.Build(ctx, s.loop)
	if err != nil {
		return nil, err
	}
	return WindowCreated{WindowID: w.ID()}, nil
}

func (s *Server) createWebView(ctx context.Context, req Envelope) (any, error) {
	var p CreateWebViewPayload
	if err := req.decode(&p); err != nil {
		return nil, err
	}

	b := webview.NewWebViewBuilder().
		WithUserAgent(s.defaults.UserAgent).
		WithDevtools(s.defaults.Devtools).
		WithBackgroundColor(s.defaults.BackgroundColor).
		WithIPCHandler(s.forwardIPC)
	switch {
	case p.URL != "":
		b.WithURL(p.URL)
	case p.HTML != "":
		b.WithHTML(p.HTML)
	}
	if p.Title != "" {
		b.WithTitle(p.Title)
	}
	if p.UserAgent != "" {
		b.WithUserAgent(p.UserAgent)
	}
	if p.Devtools != nil {
		b.WithDevtools(*p.Devtools)
	}
	if p.Width > 0 && p.Height > 0 {
		b.WithInnerSize(p.Width, p.Height)
	}
	b.WithPosition(p.X, p.Y)
	for _, script := range p.InitScripts {
		b.WithInitializationScript(script.Code, script.Once)
	}

	var (
		v   *webview.WebView
		err error
	)
	if req.WindowID != 0 {
		w, werr := s.window(req.WindowID)
		if werr != nil {
			return nil, werr
		}
		v, err = b.BuildOnWindow(ctx, w, p.Label)
	} else {
		v, err = b.Build(ctx, s.loop, p.Label)
	}
	if err != nil {
		return nil, err
	}

	created := WebViewCreated{WebViewID: v.ID(), Label: v.Label()}
	if w := v.Window(); w != nil {
		created.WindowID = w.ID()
	}
	return created, nil
}

func (s *Server) window(id uint64) (*webview.Window, error) {
	for _, w := range s.loop.Windows() {
		if w.ID() == id {
			return w, nil
		}
	}
	return nil, fmt.Errorf("window %d: %w", id, errNotFound)
}

func (s *Server) webView(id uint64) (*webview.WebView, error) {
	for _, v := range s.loop.WebViews() {
		if v.ID() == id {
			return v, nil
		}
	}
	return nil, fmt.Errorf("webview %d: %w", id, errNotFound)
}

func (s *Server) webViewWithPayload(req Envelope, payload any) (*webview.WebView, error) {
	if err := req.decode(payload); err != nil {
		return nil, err
	}
	return s.webView(req.WebViewID)
}

func errorEnvelope(id string, err error) Envelope {
	env, _ := newEnvelope(id, TypeError, ErrorPayload{Message: err.Error(), Kind: errorKind(err)})
	return env
}

func errorKind(err error) string {
	var (
		navErr    *webview.NavigationError
		scriptErr *webview.ScriptEvaluationError
	)
	switch {
	case errors.Is(err, webview.ErrValidation):
		return "validation"
	case errors.Is(err, webview.ErrResourceGone), errors.Is(err, errNotFound):
		return "gone"
	case errors.As(err, &navErr):
		return "navigation"
	case errors.As(err, &scriptErr):
		return "script"
	case errors.Is(err, webview.ErrDevtoolsDisabled):
		return "devtools"
	default:
		return "request"
	}
}
