package webview

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bnema/webloop/internal/infrastructure/headless"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const (
	waitFor = 3 * time.Second
	tick    = 5 * time.Millisecond
)

type harness struct {
	loop   *EventLoop
	driver *headless.Driver
	done   chan error
}

// newLoop creates a headless loop without running it.
func newLoop(t *testing.T, opts ...Option) (*EventLoop, *headless.Driver) {
	t.Helper()
	driver := headless.New(zerolog.Nop(), headless.WithScriptTimeout(time.Second))
	loop, err := NewEventLoop(append([]Option{WithDriver(driver)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(loop.Exit)
	return loop, driver
}

// runLoop creates a headless loop and runs it on its own goroutine until the test ends.
func runLoop(t *testing.T, opts ...Option) *harness {
	t.Helper()
	loop, driver := newLoop(t, opts...)
	h := &harness{loop: loop, driver: driver, done: make(chan error, 1)}
	go func() { h.done <- loop.Run(context.Background()) }()
	require.Eventually(t, func() bool { return loop.State() == LoopRunning }, waitFor, time.Millisecond)
	t.Cleanup(func() {
		loop.Exit()
		select {
		case <-h.done:
		case <-time.After(waitFor):
			t.Error("event loop did not stop")
		}
	})
	return h
}

// wait returns the result of Run once the loop stopped.
func (h *harness) wait(t *testing.T) error {
	t.Helper()
	select {
	case err := <-h.done:
		h.done <- err
		return err
	case <-time.After(waitFor):
		t.Fatal("event loop did not stop")
		return nil
	}
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	t.Cleanup(cancel)
	return ctx
}

func buildWindow(t *testing.T, loop *EventLoop, title string) *Window {
	t.Helper()
	w, err := NewWindowBuilder().WithTitle(title).Build(testContext(t), loop)
	require.NoError(t, err)
	return w
}

func buildHTMLView(t *testing.T, loop *EventLoop, html string) *WebView {
	t.Helper()
	v, err := NewWebViewBuilder().WithHTML(html).Build(testContext(t), loop, "")
	require.NoError(t, err)
	waitLoaded(t, v)
	return v
}

// waitLoaded waits for the initial navigation of v to finish.
func waitLoaded(t *testing.T, v *WebView) {
	t.Helper()
	require.Eventually(t, func() bool { return v.URL() != "" }, waitFor, tick)
}

// recorder collects values from listeners and event handlers.
type recorder[T any] struct {
	mu    sync.Mutex
	items []T
}

func (r *recorder[T]) add(v T) {
	r.mu.Lock()
	r.items = append(r.items, v)
	r.mu.Unlock()
}

func (r *recorder[T]) all() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]T(nil), r.items...)
}

func (r *recorder[T]) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

func bodies(msgs []Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Body
	}
	return out
}

func eventTypes(events []Event) []EventType {
	out := make([]EventType, len(events))
	for i, e := range events {
		out[i] = e.Type
	}
	return out
}
