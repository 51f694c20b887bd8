package headless

import (
	"github.com/bnema/webloop/internal/application/port"
)

// Window is a simulated top-level surface. It only keeps state.
type Window struct {
	id        port.WindowID
	queue     *Queue
	spec      port.WindowSpec
	state     port.WindowState
	destroyed bool
}

var _ port.NativeWindow = (*Window)(nil)

func newWindow(q *Queue, id port.WindowID, spec port.WindowSpec) *Window {
	return &Window{
		id:    id,
		queue: q,
		spec:  spec,
		state: port.WindowState{
			Title:       spec.Title,
			Width:       spec.Bounds.Width,
			Height:      spec.Bounds.Height,
			X:           spec.Bounds.X,
			Y:           spec.Bounds.Y,
			Visible:     spec.Visible,
			Resizable:   spec.Resizable,
			Decorated:   spec.Decorated,
			Maximized:   spec.Maximized,
			Focused:     spec.Focused && spec.Visible,
			AlwaysOnTop: spec.AlwaysOnTop,
			Theme:       spec.Theme,
			HasIcon:     len(spec.Icon) > 0,
		},
	}
}

func (w *Window) State() port.WindowState {
	return w.state
}

func (w *Window) SetTitle(title string) {
	w.state.Title = title
}

func (w *Window) SetVisible(visible bool) {
	w.state.Visible = visible
	if !visible {
		w.state.Focused = false
	}
}

// Resize clamps to the size constraints the window was created with.
func (w *Window) Resize(width, height int) {
	w.state.Width = clamp(width, w.spec.MinWidth, w.spec.MaxWidth)
	w.state.Height = clamp(height, w.spec.MinHeight, w.spec.MaxHeight)
}

func (w *Window) Move(x, y int) {
	w.state.X = x
	w.state.Y = y
}

func (w *Window) SetMaximized(maximized bool) {
	w.state.Maximized = maximized
	if maximized {
		w.state.Minimized = false
	}
}

func (w *Window) SetMinimized(minimized bool) {
	w.state.Minimized = minimized
	if minimized {
		w.state.Focused = false
	}
}

func (w *Window) SetAlwaysOnTop(onTop bool) {
	w.state.AlwaysOnTop = onTop
}

func (w *Window) SetResizable(resizable bool) {
	w.state.Resizable = resizable
}

func (w *Window) SetTheme(theme port.Theme) {
	w.state.Theme = theme
}

func (w *Window) SetIcon(icon []byte) {
	w.state.HasIcon = len(icon) > 0
}

// Present shows, restores and focuses the window; the other windows of the queue lose focus.
func (w *Window) Present() {
	for _, other := range w.queue.windows {
		if other != w && other.state.Focused {
			other.state.Focused = false
			id, st := other.id, other.state
			w.queue.enqueue(func() { w.queue.sink.WindowChanged(id, st) })
		}
	}
	w.state.Visible = true
	w.state.Minimized = false
	w.state.Focused = true
}

func (w *Window) Destroy() {
	if w.destroyed {
		return
	}
	w.destroyed = true
	for _, v := range w.queue.views {
		if v.parent == w {
			v.Destroy()
		}
	}
	if w.id != 0 {
		delete(w.queue.windows, w.id)
		w.queue.driver.forgetWindow(w.id)
	}
}

func clamp(v, lo, hi int) int {
	if lo > 0 && v < lo {
		v = lo
	}
	if hi > 0 && v > hi {
		v = hi
	}
	return v
}
