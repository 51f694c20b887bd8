package headless

import (
	"testing"
	"time"

	"github.com/bnema/webloop/internal/application/port"
	"github.com/bnema/webloop/internal/application/port/mocks"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// newTestQueue returns a queue wired to a strict mock sink.
func newTestQueue(t *testing.T, opts ...Option) (*Driver, *Queue, *mocks.MockEventSink) {
	t.Helper()
	ctrl := gomock.NewController(t)
	sink := mocks.NewMockEventSink(ctrl)
	d := New(zerolog.Nop(), append([]Option{WithScriptTimeout(time.Second)}, opts...)...)
	q, err := d.NewQueue(sink)
	require.NoError(t, err)
	t.Cleanup(func() { _ = q.Close() })
	return d, q.(*Queue), sink
}

// pump iterates q until done holds.
func pump(t *testing.T, q *Queue, done func() bool) {
	t.Helper()
	require.Eventually(t, func() bool {
		q.Iterate(64)
		return done()
	}, 3*time.Second, time.Millisecond)
}

// drain iterates q until no event is left.
func drain(q *Queue) {
	for q.Iterate(64) > 0 {
	}
}

func windowSpec(title string) port.WindowSpec {
	return port.WindowSpec{
		Title:   title,
		Bounds:  port.Rect{X: 10, Y: 20, Width: 640, Height: 480},
		Visible: true,
		Focused: true,
	}
}

func TestNewQueue_RequiresSink(t *testing.T) {
	d := New(zerolog.Nop())
	assert.Equal(t, Name, d.Name())

	_, err := d.NewQueue(nil)
	assert.Error(t, err)
}

func TestQueue_CreateWindow(t *testing.T) {
	_, q, _ := newTestQueue(t)

	nw, err := q.CreateWindow(1, windowSpec("one"))
	require.NoError(t, err)

	st := nw.State()
	assert.Equal(t, "one", st.Title)
	assert.Equal(t, 640, st.Width)
	assert.Equal(t, 480, st.Height)
	assert.Equal(t, 10, st.X)
	assert.Equal(t, 20, st.Y)
	assert.True(t, st.Visible)
	assert.True(t, st.Focused)
}

func TestQueue_HiddenWindowIsNotFocused(t *testing.T) {
	_, q, _ := newTestQueue(t)
	spec := windowSpec("hidden")
	spec.Visible = false

	nw, err := q.CreateWindow(1, spec)
	require.NoError(t, err)
	assert.False(t, nw.State().Focused)
}

func TestWindow_ResizeClampsToConstraints(t *testing.T) {
	_, q, _ := newTestQueue(t)
	spec := windowSpec("clamped")
	spec.MinWidth, spec.MinHeight = 200, 100
	spec.MaxWidth, spec.MaxHeight = 1000, 800

	nw, err := q.CreateWindow(1, spec)
	require.NoError(t, err)

	nw.Resize(50, 5000)
	assert.Equal(t, 200, nw.State().Width)
	assert.Equal(t, 800, nw.State().Height)

	nw.Resize(300, 300)
	assert.Equal(t, 300, nw.State().Width)
	assert.Equal(t, 300, nw.State().Height)
}

func TestWindow_PresentTakesFocusFromOthers(t *testing.T) {
	_, q, sink := newTestQueue(t)

	a, err := q.CreateWindow(1, windowSpec("a"))
	require.NoError(t, err)
	b, err := q.CreateWindow(2, windowSpec("b"))
	require.NoError(t, err)
	a.SetMinimized(true)
	require.False(t, a.State().Focused)

	sink.EXPECT().WindowChanged(port.WindowID(2), gomock.Cond(func(st port.WindowState) bool {
		return !st.Focused
	})).Times(1)

	a.Present()
	drain(q)

	assert.True(t, a.State().Focused)
	assert.False(t, a.State().Minimized)
	assert.False(t, b.State().Focused)
}

func TestWindow_DestroyCascades(t *testing.T) {
	d, q, _ := newTestQueue(t)

	w, err := q.CreateWindow(1, windowSpec("host"))
	require.NoError(t, err)
	v, err := q.CreateView(5, port.ViewSpec{Bounds: port.Rect{Width: 100, Height: 100}}, w)
	require.NoError(t, err)

	w.Destroy()
	w.Destroy()

	assert.True(t, v.(*View).destroyed)
	assert.Empty(t, q.windows)
	assert.Empty(t, q.views)
	assert.Error(t, d.SimulateCloseRequest(1))
	assert.Error(t, d.SimulateScriptMessage(5, "x"))

	_, err = q.CreateView(6, port.ViewSpec{Bounds: port.Rect{Width: 1, Height: 1}}, w)
	assert.Error(t, err, "destroyed parent")
}

func TestQueue_CreateViewRejectsForeignParent(t *testing.T) {
	_, q1, _ := newTestQueue(t)
	_, q2, _ := newTestQueue(t)

	w, err := q1.CreateWindow(1, windowSpec("other queue"))
	require.NoError(t, err)
	_, err = q2.CreateView(2, port.ViewSpec{Bounds: port.Rect{Width: 1, Height: 1}}, w)
	assert.Error(t, err)
}

func TestView_StandaloneHasOwnSurface(t *testing.T) {
	_, q, _ := newTestQueue(t)

	v, err := q.CreateView(1, port.ViewSpec{
		Title:   "standalone",
		Bounds:  port.Rect{Width: 300, Height: 200},
		Visible: true,
	}, nil)
	require.NoError(t, err)

	surface := v.Window()
	require.NotNil(t, surface)
	assert.Equal(t, "standalone", surface.State().Title)

	v.SetBounds(port.Rect{X: 4, Y: 5, Width: 320, Height: 240})
	assert.Equal(t, 320, surface.State().Width)
	assert.Equal(t, 4, surface.State().X)

	v.SetVisible(false)
	assert.False(t, surface.State().Visible)

	attachedHost, err := q.CreateWindow(2, windowSpec("host"))
	require.NoError(t, err)
	attached, err := q.CreateView(3, port.ViewSpec{Bounds: port.Rect{Width: 1, Height: 1}}, attachedHost)
	require.NoError(t, err)
	assert.Nil(t, attached.Window())
}

func TestQueue_CloseDestroysEverything(t *testing.T) {
	d, q, _ := newTestQueue(t)

	_, err := q.CreateWindow(1, windowSpec("w"))
	require.NoError(t, err)
	_, err = q.CreateView(2, port.ViewSpec{Bounds: port.Rect{Width: 1, Height: 1}}, nil)
	require.NoError(t, err)
	require.NoError(t, d.SimulateResize(1, 10, 10))

	require.NoError(t, q.Close())
	require.NoError(t, q.Close())

	assert.Zero(t, q.Iterate(10), "pending events were dropped")
	assert.Empty(t, q.windows)
	assert.Empty(t, q.views)
	assert.False(t, q.enqueue(func() {}))

	_, err = q.CreateWindow(3, windowSpec("late"))
	assert.ErrorIs(t, err, errQueueClosed)
	_, err = q.CreateView(4, port.ViewSpec{}, nil)
	assert.ErrorIs(t, err, errQueueClosed)
}

func TestQueue_IterateRespectsMax(t *testing.T) {
	_, q, _ := newTestQueue(t)
	ran := 0
	for range 5 {
		q.enqueue(func() { ran++ })
	}

	assert.Zero(t, q.Iterate(0))
	assert.Equal(t, 2, q.Iterate(2))
	assert.Equal(t, 2, ran)

	select {
	case <-q.Woken():
	default:
		t.Fatal("queue with leftover events must stay woken")
	}
	assert.Equal(t, 3, q.Iterate(10))
	assert.Equal(t, 5, ran)
}

func TestQueue_PanickingEventIsContained(t *testing.T) {
	_, q, _ := newTestQueue(t)
	ran := false
	q.enqueue(func() { panic("native boom") })
	q.enqueue(func() { ran = true })

	assert.Equal(t, 2, q.Iterate(10))
	assert.True(t, ran)
}

func TestSimulate_Window(t *testing.T) {
	d, q, sink := newTestQueue(t)
	_, err := q.CreateWindow(1, windowSpec("a"))
	require.NoError(t, err)
	_, err = q.CreateWindow(2, windowSpec("b"))
	require.NoError(t, err)

	gomock.InOrder(
		sink.EXPECT().WindowChanged(port.WindowID(1), gomock.Cond(func(st port.WindowState) bool {
			return st.Width == 1024 && st.Height == 768
		})),
		sink.EXPECT().WindowChanged(port.WindowID(1), gomock.Cond(func(st port.WindowState) bool {
			return st.X == 7 && st.Y == 8
		})),
	)
	sink.EXPECT().WindowChanged(port.WindowID(1), gomock.Cond(func(st port.WindowState) bool {
		return !st.Focused
	}))
	sink.EXPECT().CloseRequested(port.WindowID(2), port.ViewID(0))

	require.NoError(t, d.SimulateResize(1, 1024, 768))
	require.NoError(t, d.SimulateMove(1, 7, 8))
	drain(q)

	// Window 2 takes focus; window 1 was focused and loses it.
	require.NoError(t, d.SimulateFocus(2))
	drain(q)

	require.NoError(t, d.SimulateCloseRequest(2))
	drain(q)

	assert.Error(t, d.SimulateResize(99, 1, 1))
	assert.Error(t, d.SimulateFocus(99))
	assert.Error(t, d.SimulateViewCloseRequest(99))
}

func TestSimulate_ViewCloseRequest(t *testing.T) {
	d, q, sink := newTestQueue(t)
	_, err := q.CreateView(3, port.ViewSpec{Bounds: port.Rect{Width: 1, Height: 1}}, nil)
	require.NoError(t, err)

	sink.EXPECT().CloseRequested(port.WindowID(0), port.ViewID(3)).Times(1)

	require.NoError(t, d.SimulateViewCloseRequest(3))
	drain(q)
}

func TestQueue_Monitors(t *testing.T) {
	_, q, _ := newTestQueue(t)
	monitors := q.Monitors()
	require.Len(t, monitors, 1)
	assert.True(t, monitors[0].Primary)
	assert.Equal(t, 1920, monitors[0].Bounds.Width)

	_, q, _ = newTestQueue(t, WithMonitors(
		port.Monitor{Name: "a", Primary: true},
		port.Monitor{Name: "b", Primary: true, ScaleFactor: 2},
	))
	monitors = q.Monitors()
	require.Len(t, monitors, 2)
	assert.True(t, monitors[0].Primary)
	assert.False(t, monitors[1].Primary, "only one monitor stays primary")
	assert.InDelta(t, 1.0, monitors[0].ScaleFactor, 0.001)
	assert.InDelta(t, 2.0, monitors[1].ScaleFactor, 0.001)

	monitors[0].Name = "changed"
	assert.Equal(t, "a", q.Monitors()[0].Name, "callers get a copy")
}

func TestWindow_RuntimeAttributes(t *testing.T) {
	_, q, _ := newTestQueue(t)
	spec := windowSpec("attrs")
	spec.Resizable = true
	spec.Icon = []byte("png")
	nw, err := q.CreateWindow(1, spec)
	require.NoError(t, err)
	assert.True(t, nw.State().HasIcon)

	nw.SetResizable(false)
	nw.SetTheme(port.ThemeLight)
	nw.SetIcon(nil)

	st := nw.State()
	assert.False(t, st.Resizable)
	assert.Equal(t, port.ThemeLight, st.Theme)
	assert.False(t, st.HasIcon)
}
