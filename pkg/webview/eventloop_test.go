package webview

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bnema/webloop/internal/infrastructure/headless"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseControlFlow(t *testing.T) {
	tests := []struct {
		in   string
		want ControlFlow
		err  bool
	}{
		{"", ControlWait, false},
		{"wait", ControlWait, false},
		{"poll", ControlPoll, false},
		{"wait-until", ControlWaitUntil, false},
		{"wait_until", ControlWaitUntil, false},
		{"spin", ControlWait, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseControlFlow(tt.in)
			if tt.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			if tt.in != "" && tt.in != "wait_until" {
				assert.Equal(t, tt.in, got.String())
			}
		})
	}
}

func TestNewEventLoop_UnknownDriver(t *testing.T) {
	_, err := NewEventLoop(WithDriverName("cocoa"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cocoa")
}

func TestEventLoop_ExitBeforeRunNeverPumps(t *testing.T) {
	loop, _ := newLoop(t)

	var ran atomic.Bool
	require.NoError(t, loop.post(task{run: func() { ran.Store(true) }, abort: func(error) {}}))

	loop.Exit()
	loop.Exit()

	require.NoError(t, loop.Run(context.Background()))
	assert.False(t, ran.Load(), "queued work must not run after an exit requested before Run")
	assert.Equal(t, LoopExited, loop.State())

	select {
	case <-loop.Done():
	default:
		t.Fatal("Done not closed after exit")
	}

	_, err := loop.RunIteration()
	assert.ErrorIs(t, err, ErrResourceGone)

	err = loop.post(task{run: func() {}, abort: func(error) {}})
	assert.ErrorIs(t, err, ErrAborted)
}

func TestEventLoop_RunIterationDrainsSnapshot(t *testing.T) {
	loop, _ := newLoop(t)

	var order []string
	require.NoError(t, loop.post(task{
		run: func() {
			order = append(order, "first")
			_ = loop.post(task{run: func() { order = append(order, "queued-during") }, abort: func(error) {}})
		},
		abort: func(error) {},
	}))
	require.NoError(t, loop.post(task{run: func() { order = append(order, "second") }, abort: func(error) {}}))

	n, err := loop.RunIteration()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"first", "second"}, order)
	assert.Equal(t, LoopRunning, loop.State())

	n, err = loop.RunIteration()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"first", "second", "queued-during"}, order)

	n, err = loop.RunIteration()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestEventLoop_RunIterationHonorsMaxBatch(t *testing.T) {
	loop, _ := newLoop(t, WithMaxBatch(2))

	var count int
	for range 5 {
		require.NoError(t, loop.post(task{run: func() { count++ }, abort: func(error) {}}))
	}

	n, err := loop.RunIteration()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, count)

	_, _ = loop.RunIteration()
	_, _ = loop.RunIteration()
	assert.Equal(t, 5, count)
}

func TestEventLoop_ConcurrentPumpRejected(t *testing.T) {
	loop, _ := newLoop(t)

	loop.pumping.Store(true)
	_, err := loop.RunIteration()
	assert.ErrorIs(t, err, ErrConcurrentPump)
	loop.pumping.Store(false)

	loop.running.Store(true)
	assert.ErrorIs(t, loop.Run(context.Background()), ErrConcurrentPump)
	loop.running.Store(false)
}

func TestEventLoop_RunIterationInsideTaskIsRejected(t *testing.T) {
	loop, _ := newLoop(t)

	var nested error
	require.NoError(t, loop.post(task{
		run:   func() { _, nested = loop.RunIteration() },
		abort: func(error) {},
	}))
	_, err := loop.RunIteration()
	require.NoError(t, err)
	assert.ErrorIs(t, nested, ErrConcurrentPump)
}

func TestEventLoop_ExitWithCode(t *testing.T) {
	h := runLoop(t)
	events := &recorder[Event]{}
	h.loop.OnEvent(events.add)
	h.loop.ExitWithCode(3)

	require.NoError(t, h.wait(t))
	assert.Equal(t, 3, h.loop.ExitCode())
	assert.Equal(t, LoopExited, h.loop.State())
	assert.Equal(t, []EventType{EventApplicationCloseRequested}, eventTypes(events.all()))
}

func TestEventLoop_RunAfterExitFlushesHandlers(t *testing.T) {
	loop, _ := newLoop(t)
	events := &recorder[Event]{}
	loop.OnEvent(func(ev Event) {
		time.Sleep(20 * time.Millisecond)
		events.add(ev)
	})

	loop.Exit()
	require.NoError(t, loop.Run(context.Background()))
	assert.Equal(t, []EventType{EventApplicationCloseRequested}, eventTypes(events.all()),
		"handlers queued before the exit must have run when Run returns")
}

func TestEventLoop_RunReturnsContextError(t *testing.T) {
	loop, _ := newLoop(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(waitFor):
		t.Fatal("Run did not return after cancellation")
	}
	assert.Equal(t, LoopExited, loop.State())
}

func TestEventLoop_ControlFlows(t *testing.T) {
	for _, flow := range []ControlFlow{ControlWait, ControlPoll, ControlWaitUntil} {
		t.Run(flow.String(), func(t *testing.T) {
			h := runLoop(t, WithControlFlow(flow), WithWaitInterval(5*time.Millisecond))
			v := buildHTMLView(t, h.loop, "<title>flow</title>")

			got, err := v.EvaluateScript(testContext(t), "document.title")
			require.NoError(t, err)
			assert.Equal(t, `"flow"`, got)
		})
	}
}

func TestEventLoop_SingleGoroutineHostMakesProgress(t *testing.T) {
	// Nobody calls Run: the requesting goroutine pumps while it waits.
	loop, _ := newLoop(t)
	ctx := testContext(t)

	w := buildWindow(t, loop, "cooperative")
	v, err := NewWebViewBuilder().WithHTML("<p>x</p>").BuildOnWindow(ctx, w, "main")
	require.NoError(t, err)

	got, err := v.EvaluateScript(ctx, "1 + 2")
	require.NoError(t, err)
	assert.Equal(t, "3", got)
}

func TestEventLoop_LastSurfaceClosedExits(t *testing.T) {
	h := runLoop(t)
	events := &recorder[Event]{}
	h.loop.OnEvent(events.add)

	w := buildWindow(t, h.loop, "only")
	require.NoError(t, h.driver.SimulateCloseRequest(w.ID()))

	require.NoError(t, h.wait(t))
	assert.True(t, w.IsDestroyed())
	assert.Equal(t, []EventType{
		EventWindowCloseRequested,
		EventWindowDestroyed,
		EventApplicationCloseRequested,
	}, eventTypes(events.all()))
}

func TestEventLoop_StandaloneCloseExits(t *testing.T) {
	h := runLoop(t)
	v := buildHTMLView(t, h.loop, "<p>standalone</p>")

	require.NoError(t, h.driver.SimulateViewCloseRequest(v.ID()))

	require.NoError(t, h.wait(t))
	assert.True(t, v.IsDestroyed())
}

func TestEventLoop_KeepAliveSurvivesLastClose(t *testing.T) {
	h := runLoop(t, WithKeepAlive(true))
	events := &recorder[Event]{}
	h.loop.OnEvent(events.add)

	w := buildWindow(t, h.loop, "only")
	require.NoError(t, h.driver.SimulateCloseRequest(w.ID()))

	require.Eventually(t, w.IsDestroyed, waitFor, tick)
	require.Eventually(t, func() bool { return events.len() >= 2 }, waitFor, tick)
	assert.Equal(t, LoopRunning, h.loop.State())
	assert.Empty(t, h.loop.Windows())

	// The loop still serves new surfaces.
	buildWindow(t, h.loop, "again")
	assert.Len(t, h.loop.Windows(), 1)
}

func TestEventLoop_ExplicitDestroyDoesNotExit(t *testing.T) {
	h := runLoop(t)
	w := buildWindow(t, h.loop, "only")

	require.NoError(t, w.Destroy(testContext(t)))
	buildWindow(t, h.loop, "second")
	assert.Equal(t, LoopRunning, h.loop.State())
}

func TestEventLoop_ExitAbortsPendingEvaluation(t *testing.T) {
	h := runLoop(t)
	v := buildHTMLView(t, h.loop, "<p>pending</p>")

	errc := make(chan error, 1)
	go func() {
		_, err := v.EvaluateScript(context.Background(), "new Promise(function () {})")
		errc <- err
	}()

	// Give the evaluation time to reach the page.
	time.Sleep(50 * time.Millisecond)
	h.loop.Exit()

	select {
	case err := <-errc:
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrAborted)
		assert.ErrorIs(t, err, ErrResourceGone)
		var gone *ResourceGoneError
		require.ErrorAs(t, err, &gone)
		assert.True(t, gone.Aborted)
	case <-time.After(waitFor):
		t.Fatal("pending evaluation was not aborted")
	}
	require.NoError(t, h.wait(t))

	_, err := v.EvaluateScript(context.Background(), "1")
	assert.ErrorIs(t, err, ErrResourceGone)
}

func TestEventLoop_ExitDestroysEverything(t *testing.T) {
	h := runLoop(t)
	w := buildWindow(t, h.loop, "w")
	attached, err := NewWebViewBuilder().WithHTML("<p>a</p>").BuildOnWindow(testContext(t), w, "a")
	require.NoError(t, err)
	standalone := buildHTMLView(t, h.loop, "<p>s</p>")

	h.loop.Exit()
	require.NoError(t, h.wait(t))

	assert.True(t, w.IsDestroyed())
	assert.True(t, attached.IsDestroyed())
	assert.True(t, standalone.IsDestroyed())
	assert.Empty(t, h.loop.Windows())
	assert.Empty(t, h.loop.WebViews())

	_, err = NewWindowBuilder().WithTitle("late").Build(testContext(t), h.loop)
	assert.ErrorIs(t, err, ErrAborted)
}

func TestEventLoop_EventHandlerPanicIsContained(t *testing.T) {
	h := runLoop(t)
	events := &recorder[Event]{}
	h.loop.OnEvent(func(Event) { panic("boom") })
	h.loop.OnEvent(events.add)

	w := buildWindow(t, h.loop, "w")
	require.NoError(t, w.Destroy(testContext(t)))

	require.Eventually(t, func() bool { return events.len() == 1 }, waitFor, tick)
	assert.Equal(t, EventWindowDestroyed, events.all()[0].Type)
}

func TestRunAll_IndependentLoops(t *testing.T) {
	a, _ := newLoop(t)
	b, _ := newLoop(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- RunAll(ctx, a, b) }()

	va := buildHTMLView(t, a, "<title>a</title>")
	vb := buildHTMLView(t, b, "<title>b</title>")

	got, err := va.EvaluateScript(testContext(t), "document.title")
	require.NoError(t, err)
	assert.Equal(t, `"a"`, got)
	got, err = vb.EvaluateScript(testContext(t), "document.title")
	require.NoError(t, err)
	assert.Equal(t, `"b"`, got)

	a.Exit()
	// b keeps running after a exited.
	got, err = vb.EvaluateScript(testContext(t), "40 + 2")
	require.NoError(t, err)
	assert.Equal(t, "42", got)

	b.Exit()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(waitFor):
		t.Fatal("RunAll did not return")
	}
}

func TestRunAll_CancelStopsAll(t *testing.T) {
	a, _ := newLoop(t)
	b, _ := newLoop(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- RunAll(ctx, a, b) }()
	cancel()

	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(waitFor):
		t.Fatal("RunAll did not return")
	}
	assert.Equal(t, LoopExited, a.State())
	assert.Equal(t, LoopExited, b.State())
}

func TestEventLoop_Monitors(t *testing.T) {
	h := runLoop(t)
	ctx := testContext(t)

	monitors, err := h.loop.Monitors(ctx)
	require.NoError(t, err)
	require.Len(t, monitors, 1)

	primary, ok, err := h.loop.PrimaryMonitor(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, monitors[0], primary)
	assert.Positive(t, primary.Bounds.Width)
}

func TestEventLoop_MonitorsFromDriver(t *testing.T) {
	driver := headless.New(zerolog.Nop(), headless.WithMonitors(
		Monitor{Name: "left", Bounds: Rect{Width: 1280, Height: 1024}},
		Monitor{Name: "right", Bounds: Rect{X: 1280, Width: 2560, Height: 1440}, ScaleFactor: 2, Primary: true},
	))
	loop, err := NewEventLoop(WithDriver(driver))
	require.NoError(t, err)
	t.Cleanup(loop.Exit)
	ctx := testContext(t)

	monitors, err := loop.Monitors(ctx)
	require.NoError(t, err)
	require.Len(t, monitors, 2)
	assert.Equal(t, []string{"left", "right"}, []string{monitors[0].Name, monitors[1].Name})
	assert.InDelta(t, 1.0, monitors[0].ScaleFactor, 0.001)

	primary, ok, err := loop.PrimaryMonitor(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "right", primary.Name)

	loop.Exit()
	_, err = loop.Monitors(ctx)
	assert.ErrorIs(t, err, ErrResourceGone)
}
