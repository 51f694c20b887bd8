package headless

import (
	"context"
	"errors"
	"fmt"

	"github.com/bnema/webloop/internal/application/port"
	"github.com/rs/zerolog"
)

var (
	errViewDestroyed    = errors.New("headless: webview destroyed")
	errNoDocument       = errors.New("headless: no document loaded")
	errDevtoolsDisabled = errors.New("headless: devtools disabled")
)

// View is a simulated webview. Each navigation replaces its page.
type View struct {
	id      port.ViewID
	queue   *Queue
	spec    port.ViewSpec
	parent  *Window
	surface *Window
	logger  zerolog.Logger

	page      *page
	navID     uint64
	cancelNav context.CancelFunc

	bounds    port.Rect
	visible   bool
	zoom      float64
	devtools  bool
	prints    int
	destroyed bool
}

var _ port.NativeView = (*View)(nil)

func newView(q *Queue, id port.ViewID, spec port.ViewSpec, parent *Window) *View {
	v := &View{
		id:      id,
		queue:   q,
		spec:    spec,
		parent:  parent,
		bounds:  spec.Bounds,
		visible: spec.Visible,
		zoom:    1,
		logger:  q.logger.With().Uint64("webview_id", uint64(id)).Logger(),
	}
	if parent == nil {
		// Standalone views get their own surface; it is not a registered window.
		v.surface = newWindow(q, 0, port.WindowSpec{
			Title:       spec.Title,
			Bounds:      spec.Bounds,
			Resizable:   spec.Resizable,
			Decorated:   spec.Decorated,
			Visible:     spec.Visible,
			Focused:     spec.Focused,
			Menubar:     spec.Menubar,
			AlwaysOnTop: spec.AlwaysOnTop,
			Transparent: spec.Transparent,
			Maximized:   spec.Maximized,
			Theme:       spec.Theme,
		})
		v.surface.state.Minimized = spec.Minimized
	}
	return v
}

// Navigate starts loading nav. The document is built by a later event, so
// completion always reaches the sink from Iterate.
func (v *View) Navigate(nav port.Navigation) error {
	if v.destroyed {
		return errViewDestroyed
	}
	if v.cancelNav != nil {
		v.cancelNav()
		v.cancelNav = nil
	}
	v.navID = nav.ID

	if nav.HTML != "" || nav.URL == "" {
		doc := &resource{url: "about:blank", body: []byte(nav.HTML)}
		v.queue.enqueue(func() { v.commit(nav, doc, nil) })
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), v.queue.driver.fetchTimeout)
	v.cancelNav = cancel
	go func() {
		defer cancel()
		doc, err := v.queue.driver.load(ctx, nav.URL, v.userAgent())
		v.queue.enqueue(func() { v.commit(nav, doc, err) })
	}()
	return nil
}

// commit installs the loaded document. Stale loads are dropped.
func (v *View) commit(nav port.Navigation, doc *resource, loadErr error) {
	if v.destroyed || v.navID != nav.ID {
		return
	}
	if loadErr != nil {
		v.logger.Debug().Err(loadErr).Str("url", nav.URL).Msg("load failed")
		v.queue.sink.LoadFailed(v.id, nav.ID, nav.URL, loadErr)
		return
	}

	if v.page != nil {
		v.page.close()
	}
	p, err := newPage(v, doc)
	if err != nil {
		v.queue.sink.LoadFailed(v.id, nav.ID, doc.url, err)
		return
	}
	v.page = p
	p.run(nav.Scripts)

	if v.surface != nil && p.title != "" {
		v.surface.state.Title = p.title
	}
	v.queue.sink.LoadFinished(v.id, nav.ID, doc.url, p.title)
}

func (v *View) Evaluate(code string, done func(result string, err error)) {
	if v.destroyed {
		v.queue.enqueue(func() { done("", errViewDestroyed) })
		return
	}
	v.queue.enqueue(func() {
		if v.destroyed {
			done("", errViewDestroyed)
			return
		}
		if v.page == nil {
			done("", errNoDocument)
			return
		}
		v.page.evaluate(code, done)
	})
}

func (v *View) SetDevtools(open bool, done func(err error)) {
	v.queue.enqueue(func() {
		switch {
		case v.destroyed:
			done(errViewDestroyed)
		case open && !v.spec.Devtools:
			done(errDevtoolsDisabled)
		default:
			v.devtools = open
			done(nil)
		}
	})
}

// Print completes without output once a document is loaded.
func (v *View) Print(done func(err error)) {
	v.queue.enqueue(func() {
		switch {
		case v.destroyed:
			done(errViewDestroyed)
		case v.page == nil:
			done(errNoDocument)
		default:
			v.prints++
			done(nil)
		}
	})
}

// Prints reports how many print jobs completed.
func (v *View) Prints() int {
	return v.prints
}

func (v *View) DevtoolsOpen() bool {
	return v.devtools
}

func (v *View) SetBounds(r port.Rect) {
	v.bounds = r
	if v.surface != nil {
		v.surface.Move(r.X, r.Y)
		v.surface.Resize(r.Width, r.Height)
	}
}

// Bounds returns the region last applied to the view.
func (v *View) Bounds() port.Rect {
	return v.bounds
}

func (v *View) SetVisible(visible bool) {
	v.visible = visible
	if v.surface != nil {
		v.surface.SetVisible(visible)
	}
}

func (v *View) SetZoom(level float64) {
	v.zoom = level
}

// Zoom returns the zoom factor last applied to the view.
func (v *View) Zoom() float64 {
	return v.zoom
}

func (v *View) Window() port.NativeWindow {
	if v.surface == nil {
		return nil
	}
	return v.surface
}

func (v *View) Destroy() {
	if v.destroyed {
		return
	}
	v.destroyed = true
	if v.cancelNav != nil {
		v.cancelNav()
		v.cancelNav = nil
	}
	if v.page != nil {
		v.page.close()
		v.page = nil
	}
	if v.surface != nil {
		v.surface.Destroy()
	}
	delete(v.queue.views, v.id)
	v.queue.driver.forgetView(v.id)
}

func (v *View) userAgent() string {
	if v.spec.UserAgent != "" {
		return v.spec.UserAgent
	}
	return defaultUserAgent
}

func (v *View) String() string {
	return fmt.Sprintf("headless webview %d", v.id)
}
