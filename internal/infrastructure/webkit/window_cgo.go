//go:build webkit_cgo

package webkit

import (
	"sync"

	"github.com/bnema/webloop/internal/application/port"
	"github.com/diamondburned/gotk4/pkg/gtk/v4"
)

// Window is a gtk.Window. Attached views are placed on a gtk.Fixed by their
// bounds; the surface of a standalone view holds the view directly and has id 0.
//
// GTK4 cannot position top-level windows, keep them above others on every
// backend or take icon data; position, always-on-top and the icon are
// recorded in the state only.
type Window struct {
	id    port.WindowID
	queue *Queue
	spec  port.WindowSpec
	win   *gtk.Window
	fixed *gtk.Fixed

	// owner is the standalone view this window is the surface of.
	owner *View

	mu        sync.Mutex
	state     port.WindowState
	destroyed bool
}

var _ port.NativeWindow = (*Window)(nil)

// newWindow runs on the GTK thread.
func newWindow(q *Queue, id port.WindowID, spec port.WindowSpec) *Window {
	w := &Window{
		id:    id,
		queue: q,
		spec:  spec,
		win:   gtk.NewWindow(),
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
			AlwaysOnTop: spec.AlwaysOnTop,
			Theme:       spec.Theme,
			HasIcon:     len(spec.Icon) > 0,
		},
	}
	w.win.SetTitle(spec.Title)
	w.win.SetDefaultSize(spec.Bounds.Width, spec.Bounds.Height)
	w.win.SetResizable(spec.Resizable)
	w.win.SetDecorated(spec.Decorated)
	if spec.MinWidth > 0 || spec.MinHeight > 0 {
		w.win.SetSizeRequest(spec.MinWidth, spec.MinHeight)
	}
	applyTheme(spec.Theme)

	if id != 0 {
		w.fixed = gtk.NewFixed()
		w.win.SetChild(w.fixed)
	}
	w.connectSignals()

	if spec.Maximized {
		w.win.Maximize()
	}
	if spec.Visible {
		if spec.Focused {
			w.win.Present()
		} else {
			w.win.SetVisible(true)
		}
	}
	return w
}

func (w *Window) connectSignals() {
	w.win.ConnectCloseRequest(func() bool {
		w.queue.enqueue(func() {
			if w.owner != nil {
				w.queue.sink.CloseRequested(0, w.owner.id)
				return
			}
			w.queue.sink.CloseRequested(w.id, 0)
		})
		// The loop decides; the window is destroyed through Destroy.
		return true
	})

	changed := func() { w.syncState() }
	for _, prop := range []string{"default-width", "default-height", "maximized", "is-active", "visible", "title"} {
		w.win.NotifyProperty(prop, changed)
	}
}

// syncState refreshes the mirror from GTK and reports it. GTK thread.
func (w *Window) syncState() {
	if w.isDestroyed() {
		return
	}
	width, height := w.win.DefaultSize()
	w.mu.Lock()
	w.state.Title = w.win.Title()
	w.state.Width = width
	w.state.Height = height
	w.state.Maximized = w.win.IsMaximized()
	w.state.Focused = w.win.IsActive()
	w.state.Visible = w.win.IsVisible()
	st := w.state
	w.mu.Unlock()

	if w.id == 0 {
		return
	}
	id := w.id
	w.queue.enqueue(func() { w.queue.sink.WindowChanged(id, st) })
}

func (w *Window) State() port.WindowState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

func (w *Window) SetTitle(title string) {
	w.update(func(st *port.WindowState) { st.Title = title })
	w.queue.driver.invoke(func() { w.win.SetTitle(title) })
}

func (w *Window) SetVisible(visible bool) {
	w.update(func(st *port.WindowState) {
		st.Visible = visible
		if !visible {
			st.Focused = false
		}
	})
	w.queue.driver.invoke(func() { w.win.SetVisible(visible) })
}

func (w *Window) Resize(width, height int) {
	width = clamp(width, w.spec.MinWidth, w.spec.MaxWidth)
	height = clamp(height, w.spec.MinHeight, w.spec.MaxHeight)
	w.update(func(st *port.WindowState) {
		st.Width = width
		st.Height = height
	})
	w.queue.driver.invoke(func() { w.win.SetDefaultSize(width, height) })
}

func (w *Window) Move(x, y int) {
	w.update(func(st *port.WindowState) {
		st.X = x
		st.Y = y
	})
}

func (w *Window) SetMaximized(maximized bool) {
	w.update(func(st *port.WindowState) {
		st.Maximized = maximized
		if maximized {
			st.Minimized = false
		}
	})
	w.queue.driver.invoke(func() {
		if maximized {
			w.win.Maximize()
		} else {
			w.win.Unmaximize()
		}
	})
}

func (w *Window) SetMinimized(minimized bool) {
	w.update(func(st *port.WindowState) {
		st.Minimized = minimized
		if minimized {
			st.Focused = false
		}
	})
	w.queue.driver.invoke(func() {
		if minimized {
			w.win.Minimize()
		} else {
			w.win.Unminimize()
		}
	})
}

func (w *Window) SetAlwaysOnTop(onTop bool) {
	w.update(func(st *port.WindowState) { st.AlwaysOnTop = onTop })
}

func (w *Window) SetResizable(resizable bool) {
	w.update(func(st *port.WindowState) { st.Resizable = resizable })
	w.queue.driver.invoke(func() { w.win.SetResizable(resizable) })
}

// SetTheme changes the dark preference of the whole process, as GTK has no
// per-window theme.
func (w *Window) SetTheme(theme port.Theme) {
	w.update(func(st *port.WindowState) { st.Theme = theme })
	w.queue.driver.invoke(func() { applyTheme(theme) })
}

func (w *Window) SetIcon(icon []byte) {
	w.update(func(st *port.WindowState) { st.HasIcon = len(icon) > 0 })
}

func (w *Window) Present() {
	w.update(func(st *port.WindowState) {
		st.Visible = true
		st.Minimized = false
		st.Focused = true
	})
	w.queue.driver.invoke(func() { w.win.Present() })
}

func (w *Window) Destroy() {
	if w.isDestroyed() {
		return
	}
	for _, v := range w.queue.views {
		if v.parent == w {
			v.Destroy()
		}
	}
	w.queue.driver.invoke(w.destroyOnThread)
	if w.id != 0 {
		delete(w.queue.windows, w.id)
	}
}

// destroyOnThread releases the gtk.Window. GTK thread.
func (w *Window) destroyOnThread() {
	w.mu.Lock()
	if w.destroyed {
		w.mu.Unlock()
		return
	}
	w.destroyed = true
	w.mu.Unlock()
	w.win.Destroy()
}

// place puts an attached view widget on the fixed container. GTK thread.
func (w *Window) place(widget gtk.Widgetter, r port.Rect) {
	w.fixed.Put(widget, float64(r.X), float64(r.Y))
}

func (w *Window) update(fn func(*port.WindowState)) {
	w.mu.Lock()
	fn(&w.state)
	w.mu.Unlock()
}

func (w *Window) isDestroyed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.destroyed
}

// applyTheme sets the process-wide dark preference. GTK thread.
func applyTheme(theme port.Theme) {
	if theme == port.ThemeSystem {
		return
	}
	settings := gtk.SettingsGetDefault()
	if settings == nil {
		return
	}
	settings.SetObjectProperty("gtk-application-prefer-dark-theme", theme == port.ThemeDark)
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
