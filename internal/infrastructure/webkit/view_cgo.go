//go:build webkit_cgo

package webkit

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bnema/webloop/internal/application/port"
	javascriptcore "github.com/diamondburned/gotk4-webkitgtk/pkg/javascriptcore/v6"
	webkit "github.com/diamondburned/gotk4-webkitgtk/pkg/webkit/v6"
	coreglib "github.com/diamondburned/gotk4/pkg/core/glib"
	"github.com/diamondburned/gotk4/pkg/gdk/v4"
	"github.com/diamondburned/gotk4/pkg/gio/v2"
	"github.com/rs/zerolog"
)

var (
	errViewDestroyed    = errors.New("webkit: webview destroyed")
	errDevtoolsDisabled = errors.New("webkit: devtools disabled")
)

// View is a WebKit web view, placed on its parent's gtk.Fixed or filling the
// surface of a standalone view.
type View struct {
	id      port.ViewID
	queue   *Queue
	spec    port.ViewSpec
	parent  *Window
	surface *Window
	logger  zerolog.Logger

	wv  *webkit.WebView
	ucm *webkit.UserContentManager
	bg  *bgColor

	// Touched on the GTK thread only.
	navID  uint64
	failed bool

	bounds    port.Rect
	devtools  bool
	destroyed bool
}

var _ port.NativeView = (*View)(nil)

// newView runs on the GTK thread.
func newView(q *Queue, id port.ViewID, spec port.ViewSpec, parent *Window) (*View, error) {
	v := &View{
		id:     id,
		queue:  q,
		spec:   spec,
		parent: parent,
		bounds: spec.Bounds,
		bg:     newBgColor(spec.Background),
		logger: q.logger.With().Uint64("webview_id", uint64(id)).Logger(),
	}
	v.wv = createWebView(spec.Incognito)
	if v.wv == nil {
		return nil, errors.New("webkit: failed to create web view")
	}
	v.ucm = v.wv.UserContentManager()
	if !v.ucm.RegisterScriptMessageHandler(MessageHandlerName, "") {
		v.logger.Warn().Str("handler", MessageHandlerName).Msg("failed to register script message handler")
	}
	v.applySettings()
	v.connectSignals()

	if parent == nil {
		v.surface = newWindow(q, 0, surfaceSpec(spec))
		v.surface.owner = v
		v.surface.win.SetChild(v.wv)
		if spec.Minimized {
			v.surface.win.Minimize()
			v.surface.update(func(st *port.WindowState) { st.Minimized = true })
		}
	} else {
		v.wv.SetSizeRequest(spec.Bounds.Width, spec.Bounds.Height)
		parent.place(v.wv, spec.Bounds)
	}
	v.wv.SetVisible(spec.Visible)
	return v, nil
}

func createWebView(incognito bool) *webkit.WebView {
	if !incognito {
		return webkit.NewWebView()
	}
	obj := coreglib.NewObjectWithProperties(webkit.GTypeWebView, map[string]any{
		"network-session": webkit.NewNetworkSessionEphemeral(),
	})
	if wv, ok := obj.Cast().(*webkit.WebView); ok {
		return wv
	}
	return webkit.NewWebView()
}

func (v *View) applySettings() {
	settings := v.wv.Settings()
	if settings != nil {
		if v.spec.UserAgent != "" {
			settings.SetUserAgent(v.spec.UserAgent)
		}
		settings.SetEnableDeveloperExtras(v.spec.Devtools)
		settings.SetMediaPlaybackRequiresUserGesture(!v.spec.Autoplay)
		settings.SetJavascriptCanAccessClipboard(v.spec.Clipboard)
	}
	if v.bg.configured() {
		r, g, b, a := v.bg.get()
		rgba := gdk.NewRGBA(r, g, b, a)
		v.wv.SetBackgroundColor(&rgba)
	}
}

func (v *View) connectSignals() {
	v.ucm.ConnectScriptMessageReceived(func(value *javascriptcore.Value) {
		body := value.ToString()
		url := v.wv.URI()
		v.queue.enqueue(func() {
			if !v.destroyed {
				v.queue.sink.ScriptMessage(v.id, body, url)
			}
		})
	})

	v.wv.ConnectLoadChanged(func(event webkit.LoadEvent) {
		if event != webkit.LoadFinished {
			return
		}
		nav := v.navID
		if v.failed {
			return
		}
		url, title := v.wv.URI(), v.wv.Title()
		v.queue.enqueue(func() {
			if !v.destroyed {
				v.queue.sink.LoadFinished(v.id, nav, url, title)
			}
		})
	})

	v.wv.ConnectLoadFailed(func(_ webkit.LoadEvent, failingURI string, err error) bool {
		if isCancellation(err) {
			return false
		}
		v.failed = true
		nav := v.navID
		v.queue.enqueue(func() {
			if !v.destroyed {
				v.queue.sink.LoadFailed(v.id, nav, failingURI, err)
			}
		})
		return false
	})

	v.wv.NotifyProperty("title", func() {
		title := v.wv.Title()
		v.queue.enqueue(func() {
			if !v.destroyed {
				v.queue.sink.TitleChanged(v.id, title)
			}
		})
	})

	v.wv.ConnectClose(func() {
		v.queue.enqueue(func() {
			if v.parent != nil {
				v.queue.sink.CloseRequested(v.parent.id, v.id)
				return
			}
			v.queue.sink.CloseRequested(0, v.id)
		})
	})
}

// Navigate replaces the user scripts and starts the load.
func (v *View) Navigate(nav port.Navigation) error {
	if v.destroyed {
		return errViewDestroyed
	}
	v.queue.driver.invoke(func() {
		v.navID = nav.ID
		v.failed = false
		v.ucm.RemoveAllScripts()
		for _, src := range navigationScripts(nav) {
			v.ucm.AddScript(webkit.NewUserScript(
				src,
				webkit.UserContentInjectTopFrame,
				webkit.UserScriptInjectAtDocumentStart,
				nil,
				nil,
			))
		}
		content, inline := loadTarget(nav)
		if inline {
			v.wv.LoadHTML(content, "about:blank")
			return
		}
		v.wv.LoadURI(content)
	})
	return nil
}

// Evaluate runs code in the main world. done runs from a later Iterate.
func (v *View) Evaluate(code string, done func(result string, err error)) {
	if v.destroyed {
		v.queue.enqueue(func() { done("", errViewDestroyed) })
		return
	}
	v.queue.driver.invoke(func() {
		v.wv.EvaluateJavascript(context.Background(), code, -1, "", "", func(res gio.AsyncResulter) {
			value, err := v.wv.EvaluateJavascriptFinish(res)
			result := ""
			if err == nil {
				result = jsonOf(value)
			}
			v.queue.enqueue(func() { done(result, err) })
		})
	})
}

func jsonOf(value *javascriptcore.Value) string {
	if value == nil || value.IsUndefined() {
		return "null"
	}
	out := value.ToJSON(0)
	if out == "" {
		return "null"
	}
	return out
}

func (v *View) SetDevtools(open bool, done func(err error)) {
	switch {
	case v.destroyed:
		v.queue.enqueue(func() { done(errViewDestroyed) })
		return
	case open && !v.spec.Devtools:
		v.queue.enqueue(func() { done(errDevtoolsDisabled) })
		return
	}
	v.queue.driver.invoke(func() {
		inspector := v.wv.Inspector()
		if inspector == nil {
			return
		}
		if open {
			inspector.Show()
		} else {
			inspector.Close()
		}
	})
	v.devtools = open
	v.queue.enqueue(func() { done(nil) })
}

// Print sends the document to the default printer without a dialog. done
// runs once WebKit reports the job finished or failed.
func (v *View) Print(done func(err error)) {
	if v.destroyed {
		v.queue.enqueue(func() { done(errViewDestroyed) })
		return
	}
	v.queue.driver.invoke(func() {
		op := webkit.NewPrintOperation(v.wv)
		var once sync.Once
		finish := func(err error) {
			once.Do(func() { v.queue.enqueue(func() { done(err) }) })
		}
		op.ConnectFailed(func(err error) { finish(fmt.Errorf("print: %w", err)) })
		op.ConnectFinished(func() { finish(nil) })
		op.Print()
	})
}

func (v *View) DevtoolsOpen() bool {
	return v.devtools
}

func (v *View) SetBounds(r port.Rect) {
	v.bounds = r
	if v.surface != nil {
		v.surface.Move(r.X, r.Y)
		v.surface.Resize(r.Width, r.Height)
		return
	}
	v.queue.driver.invoke(func() {
		v.wv.SetSizeRequest(r.Width, r.Height)
		v.parent.fixed.Move(v.wv, float64(r.X), float64(r.Y))
	})
}

func (v *View) SetVisible(visible bool) {
	if v.surface != nil {
		v.surface.SetVisible(visible)
	}
	v.queue.driver.invoke(func() { v.wv.SetVisible(visible) })
}

func (v *View) SetZoom(level float64) {
	v.queue.driver.invoke(func() { v.wv.SetZoomLevel(level) })
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
	v.queue.driver.invoke(v.destroyOnThread)
	delete(v.queue.views, v.id)
}

// destroyOnThread detaches and releases the view. GTK thread.
func (v *View) destroyOnThread() {
	if v.destroyed {
		return
	}
	v.destroyed = true
	v.ucm.UnregisterScriptMessageHandler(MessageHandlerName, "")
	if v.surface != nil {
		v.surface.destroyOnThread()
		return
	}
	if v.parent != nil && !v.parent.isDestroyed() {
		v.parent.fixed.Remove(v.wv)
	}
}
