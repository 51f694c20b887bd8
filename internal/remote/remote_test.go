package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bnema/webloop/internal/infrastructure/headless"
	"github.com/bnema/webloop/pkg/webview"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitFor = 3 * time.Second

type fixture struct {
	loop   *webview.EventLoop
	server *Server
	url    string
	done   chan error
}

func newFixture(t *testing.T, opts ...ServerOption) *fixture {
	t.Helper()
	driver := headless.New(zerolog.Nop(), headless.WithScriptTimeout(time.Second))
	loop, err := webview.NewEventLoop(webview.WithDriver(driver), webview.WithKeepAlive(true))
	require.NoError(t, err)

	f := &fixture{loop: loop, server: NewServer(loop, opts...), done: make(chan error, 1)}
	go func() { f.done <- loop.Run(context.Background()) }()

	ts := httptest.NewServer(f.server)
	f.url = "ws" + strings.TrimPrefix(ts.URL, "http")
	t.Cleanup(func() {
		loop.Exit()
		select {
		case <-f.done:
		case <-time.After(waitFor):
			t.Error("event loop did not stop")
		}
		f.server.closeClients()
		ts.Close()
	})
	return f
}

func (f *fixture) dial(t *testing.T, opts ...ClientOption) *Client {
	t.Helper()
	c, err := Dial(testContext(t), f.url, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	t.Cleanup(cancel)
	return ctx
}

// nextEvent returns the first pushed envelope of type typ.
func nextEvent(t *testing.T, c *Client, typ MessageType) Envelope {
	t.Helper()
	deadline := time.After(waitFor)
	for {
		select {
		case env, ok := <-c.Events():
			require.True(t, ok, "event channel closed")
			if env.Type == typ {
				return env
			}
		case <-deadline:
			t.Fatalf("no %s event received", typ)
			return Envelope{}
		}
	}
}

func TestPing(t *testing.T) {
	f := newFixture(t)
	c := f.dial(t)
	require.NoError(t, c.Ping(testContext(t)))
}

func TestWindowLifecycle(t *testing.T) {
	f := newFixture(t)
	c := f.dial(t)
	ctx := testContext(t)

	id, err := c.CreateWindow(ctx, CreateWindowPayload{Title: "remote", Width: 640})
	require.NoError(t, err)
	require.NotZero(t, id)

	require.Len(t, f.loop.Windows(), 1)
	w := f.loop.Windows()[0]
	assert.Equal(t, "remote", w.Title())
	assert.Equal(t, 640, w.Config().Size.Width)
	assert.Equal(t, 600, w.Config().Size.Height)

	require.NoError(t, c.SetWindowTitle(ctx, id, "renamed"))
	assert.Equal(t, "renamed", w.Title())
	require.NoError(t, c.SetWindowVisible(ctx, id, false))
	assert.False(t, w.IsVisible())

	require.NoError(t, c.CloseWindow(ctx, id))
	assert.True(t, w.IsDestroyed())

	err = c.CloseWindow(ctx, id)
	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, "gone", reqErr.Kind)
	assert.Equal(t, TypeCloseWindow, reqErr.Type)
}

func TestWebViewRequests(t *testing.T) {
	f := newFixture(t, WithWebViewDefaults(WebViewDefaults{UserAgent: "WebviewJS", Devtools: false}))
	c := f.dial(t)
	ctx := testContext(t)

	windowID, err := c.CreateWindow(ctx, CreateWindowPayload{Title: "host"})
	require.NoError(t, err)

	created, err := c.CreateWebView(ctx, windowID, CreateWebViewPayload{
		Label: "main",
		HTML:  "<title>first</title><p>hi</p>",
		InitScripts: []InitScriptPayload{
			{Code: "window.__marker = 'set';"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "main", created.Label)
	assert.Equal(t, windowID, created.WindowID)

	views := f.loop.WebViews()
	require.Len(t, views, 1)
	assert.Equal(t, "WebviewJS", views[0].Config().UserAgent)
	assert.False(t, views[0].Config().Devtools)

	result, err := c.EvaluateScript(ctx, created.WebViewID, "window.__marker")
	require.NoError(t, err)
	assert.Equal(t, `"set"`, result)

	require.NoError(t, c.LoadHTML(ctx, created.WebViewID, "<title>second</title>"))
	result, err = c.EvaluateScript(ctx, created.WebViewID, "document.title")
	require.NoError(t, err)
	assert.Equal(t, `"second"`, result)

	require.NoError(t, c.LoadURL(ctx, created.WebViewID, "data:text/html,<title>third</title>"))
	assert.Equal(t, "third", views[0].Title())

	_, err = c.EvaluateScript(ctx, created.WebViewID, "throw new Error('boom')")
	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, "script", reqErr.Kind)
	assert.Contains(t, reqErr.Message, "boom")
}

func TestCreateWebView_Standalone(t *testing.T) {
	f := newFixture(t)
	c := f.dial(t)

	created, err := c.CreateWebView(testContext(t), 0, CreateWebViewPayload{Label: "solo", URL: "about:blank"})
	require.NoError(t, err)
	assert.Zero(t, created.WindowID)
	assert.Empty(t, f.loop.Windows())
	require.Len(t, f.loop.WebViews(), 1)
}

func TestCreateWebView_Errors(t *testing.T) {
	f := newFixture(t)
	c := f.dial(t)
	ctx := testContext(t)

	_, err := c.CreateWebView(ctx, 0, CreateWebViewPayload{Label: "empty"})
	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, "validation", reqErr.Kind)

	_, err = c.CreateWebView(ctx, 99, CreateWebViewPayload{Label: "orphan", HTML: "<p>x</p>"})
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, "gone", reqErr.Kind)

	err = c.LoadURL(ctx, 12345, "about:blank")
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, "gone", reqErr.Kind)
}

func TestIPCMessagesArePushed(t *testing.T) {
	f := newFixture(t)
	c := f.dial(t)
	ctx := testContext(t)

	created, err := c.CreateWebView(ctx, 0, CreateWebViewPayload{
		Label: "chat",
		HTML: `<script>
			window.__webloop_receive = function (msg) { window.ipc.postMessage("echo:" + msg); };
		</script>`,
	})
	require.NoError(t, err)

	_, err = c.EvaluateScript(ctx, created.WebViewID, `window.ipc.postMessage("hello")`)
	require.NoError(t, err)

	env := nextEvent(t, c, TypeIPCMessage)
	assert.Equal(t, created.WebViewID, env.WebViewID)
	var p IPCMessagePayload
	require.NoError(t, json.Unmarshal(env.Payload, &p))
	assert.Equal(t, "chat", p.Label)
	assert.Equal(t, "hello", p.Body)

	require.NoError(t, c.Send(ctx, created.WebViewID, "ping"))
	env = nextEvent(t, c, TypeIPCMessage)
	require.NoError(t, json.Unmarshal(env.Payload, &p))
	assert.Equal(t, "echo:ping", p.Body)
}

func TestApplicationEventsArePushed(t *testing.T) {
	f := newFixture(t)
	c := f.dial(t)
	ctx := testContext(t)

	created, err := c.CreateWebView(ctx, 0, CreateWebViewPayload{Label: "loaded", HTML: "<p>x</p>"})
	require.NoError(t, err)

	env := nextEvent(t, c, TypeApplicationEvent)
	var p ApplicationEventPayload
	require.NoError(t, json.Unmarshal(env.Payload, &p))
	assert.Equal(t, webview.EventPageLoaded.String(), p.Event)
	assert.Equal(t, created.WebViewID, env.WebViewID)
}

func TestUnknownRequest(t *testing.T) {
	f := newFixture(t)
	c := f.dial(t)

	_, err := c.Do(testContext(t), Envelope{Type: "teleport"})
	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, "request", reqErr.Kind)
	assert.Contains(t, reqErr.Message, "teleport")
}

func TestExit(t *testing.T) {
	f := newFixture(t)
	c := f.dial(t)

	require.NoError(t, c.Exit(testContext(t), 3))
	select {
	case err := <-f.done:
		require.NoError(t, err)
		f.done <- err
	case <-time.After(waitFor):
		t.Fatal("event loop did not exit")
	}
	assert.Equal(t, 3, f.loop.ExitCode())
}

func TestToken(t *testing.T) {
	f := newFixture(t, WithToken("s3cret"))

	_, err := Dial(testContext(t), f.url)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unauthorized")

	_, err = Dial(testContext(t), f.url, WithBearerToken("wrong"))
	require.Error(t, err)

	c := f.dial(t, WithBearerToken("s3cret"))
	require.NoError(t, c.Ping(testContext(t)))
}

func TestServe_StopsWithContext(t *testing.T) {
	driver := headless.New(zerolog.Nop())
	loop, err := webview.NewEventLoop(webview.WithDriver(driver), webview.WithKeepAlive(true))
	require.NoError(t, err)
	t.Cleanup(loop.Exit)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- NewServer(loop).Serve(ctx, ln) }()

	cancel()
	select {
	case err := <-served:
		assert.NoError(t, err)
	case <-time.After(waitFor):
		t.Fatal("server did not stop")
	}
}

func TestClient_ClosedConnectionFailsRequests(t *testing.T) {
	f := newFixture(t)
	c, err := Dial(testContext(t), f.url)
	require.NoError(t, err)
	require.NoError(t, c.Close())

	select {
	case <-c.Done():
	case <-time.After(waitFor):
		t.Fatal("client did not close")
	}
	assert.True(t, errors.Is(c.Err(), ErrClosed))
	err = c.Ping(testContext(t))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestErrorKind(t *testing.T) {
	assert.Equal(t, "devtools", errorKind(webview.ErrDevtoolsDisabled))
	assert.Equal(t, "navigation", errorKind(&webview.NavigationError{URL: "x", Err: errors.New("boom")}))
	assert.Equal(t, "gone", errorKind(errNotFound))
	assert.Equal(t, "request", errorKind(errors.New("other")))
}
