package webview

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/bnema/webloop/internal/application/port"
	"github.com/bnema/webloop/internal/domain/validation"
	"github.com/rs/zerolog"
)

// Rect is a region in logical pixels.
type Rect = port.Rect

// Mode is how a webview is bound: as its own top-level surface, or as a
// region of a window.
type Mode int

const (
	ModeStandalone Mode = iota
	ModeAttached
)

func (m Mode) String() string {
	if m == ModeAttached {
		return "attached"
	}
	return "standalone"
}

// navigation is the load a webview is currently waiting on.
type navigation struct {
	seq     uint64
	request uint64 // pending request id, 0 when nobody waits
	url     string
	html    string
}

// WebView is an embedded browser surface owned by an event loop.
type WebView struct {
	id     port.ViewID
	label  string
	mode   Mode
	loop   *EventLoop
	window *Window
	cfg    WebViewConfig

	logger    zerolog.Logger
	ipcLogger zerolog.Logger

	native    port.NativeView // pump only
	scripts   *scriptPlan     // pump only
	destroyed atomic.Bool

	pending *pendingSet[string]
	bridge  *bridge

	mu      sync.RWMutex
	url     string
	title   string
	bounds  Rect
	zoom    float64
	visible bool
	navSeq  uint64
	current navigation
	last    navigation
}

// BuildWebView validates cfg and materializes a standalone webview on loop.
// The initial navigation starts without waiting for it; a failed load is
// reported as an EventNavigationFailed event.
func BuildWebView(ctx context.Context, loop *EventLoop, cfg WebViewConfig, label string) (*WebView, error) {
	if loop == nil {
		return nil, validationErr("webview", "loop", "must not be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return buildWebView(ctx, loop, nil, cfg, label)
}

// BuildWebViewOnWindow validates cfg and materializes a webview attached to
// window, covering the region given by cfg's position and size.
func BuildWebViewOnWindow(ctx context.Context, window *Window, cfg WebViewConfig, label string) (*WebView, error) {
	if window == nil {
		return nil, validationErr("webview", "window", "must not be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if window.destroyed.Load() {
		return nil, goneErr("window", uint64(window.id))
	}
	return buildWebView(ctx, window.loop, window, cfg, label)
}

func buildWebView(ctx context.Context, loop *EventLoop, window *Window, cfg WebViewConfig, label string) (*WebView, error) {
	cfg.InitScripts = append([]InitScript(nil), cfg.InitScripts...)

	v := &WebView{
		id:      nextViewID(),
		label:   label,
		loop:    loop,
		window:  window,
		cfg:     cfg,
		scripts: newScriptPlan(cfg.InitScripts),
		pending: newPendingSet[string](),
		bridge:  newBridge(cfg.IPCHandler),
		bounds:  Rect{X: cfg.Position.X, Y: cfg.Position.Y, Width: cfg.Size.Width, Height: cfg.Size.Height},
		zoom:    1,
		visible: cfg.Visible,
	}
	if window != nil {
		v.mode = ModeAttached
	}
	v.logger = loop.logger.With().
		Str("component", "webview").
		Uint64("webview_id", uint64(v.id)).
		Str("label", label).
		Logger()
	v.ipcLogger = v.logger.With().Str("component", "ipc").Logger()

	err := loop.call(ctx, func() error {
		var parent port.NativeWindow
		if window != nil {
			if window.destroyed.Load() {
				return goneErr("window", uint64(window.id))
			}
			if window.attachedLabelTaken(label) {
				return validationErr("webview", "label", fmt.Sprintf("%q already used on window %d", label, window.id))
			}
			parent = window.native
		} else if loop.standaloneLabelTaken(label) {
			return validationErr("webview", "label", fmt.Sprintf("%q already used by a standalone webview", label))
		}

		native, err := loop.queue.CreateView(v.id, cfg.spec(), parent)
		if err != nil {
			return fmt.Errorf("create webview: %w", err)
		}
		v.native = native
		loop.addView(v)
		if window != nil {
			window.attach(v)
		}

		if err := v.startNavigation(0, cfg.URL, cfg.HTML); err != nil {
			v.logger.Warn().Err(err).Msg("initial navigation failed")
			loop.emit(Event{Type: EventNavigationFailed, WindowID: v.windowID(), WebViewID: uint64(v.id), URL: cfg.URL, Err: err})
		}
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			_ = loop.post(task{
				run: func() {
					if v.native != nil {
						v.destroyNative(false)
					}
				},
				abort: func(error) {},
			})
		}
		return nil, err
	}

	v.logger.Debug().Str("mode", v.mode.String()).Msg("webview created")
	return v, nil
}

func (v *WebView) ID() uint64 {
	return uint64(v.id)
}

// Label returns the label given at build time, empty when none.
func (v *WebView) Label() string {
	return v.label
}

func (v *WebView) Mode() Mode {
	return v.mode
}

// Window returns the window the webview is attached to, nil when standalone.
func (v *WebView) Window() *Window {
	return v.window
}

func (v *WebView) Loop() *EventLoop {
	return v.loop
}

// Config returns the snapshot the webview was built from.
func (v *WebView) Config() WebViewConfig {
	cfg := v.cfg
	cfg.InitScripts = append([]InitScript(nil), v.cfg.InitScripts...)
	return cfg
}

func (v *WebView) IsDestroyed() bool {
	return v.destroyed.Load()
}

// URL returns the URL of the last finished load.
func (v *WebView) URL() string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.url
}

// Title returns the document title reported by the page.
func (v *WebView) Title() string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.title
}

func (v *WebView) Bounds() Rect {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.bounds
}

func (v *WebView) Zoom() float64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.zoom
}

func (v *WebView) IsVisible() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.visible
}

// LoadURL navigates to url and waits until the load finished or failed.
// Initialization scripts run again according to their Once flag.
func (v *WebView) LoadURL(ctx context.Context, url string) error {
	if errs := validation.ValidateNavigationURL(url); len(errs) > 0 {
		return validationErr("webview", "url", strings.Join(errs, "; "))
	}
	return v.navigate(ctx, url, "")
}

// LoadHTML replaces the document with inline markup and waits for the load.
func (v *WebView) LoadHTML(ctx context.Context, html string) error {
	if html == "" {
		return validationErr("webview", "html", "must not be empty")
	}
	return v.navigate(ctx, "", html)
}

// Reload re-issues the last navigation and waits for it.
func (v *WebView) Reload(ctx context.Context) error {
	v.mu.RLock()
	last := v.last
	v.mu.RUnlock()
	return v.navigate(ctx, last.url, last.html)
}

func (v *WebView) navigate(ctx context.Context, url, html string) error {
	_, err := v.request(ctx, func(id uint64) error {
		return v.startNavigation(id, url, html)
	})
	return err
}

// startNavigation hands the next load to the driver. Called on the pump.
func (v *WebView) startNavigation(request uint64, url, html string) error {
	v.mu.Lock()
	v.navSeq++
	prev := v.current
	v.current = navigation{seq: v.navSeq, request: request, url: url, html: html}
	v.last = v.current
	seq := v.navSeq
	v.mu.Unlock()

	if prev.request != 0 {
		v.pending.fail(prev.request, &NavigationError{URL: prev.url, Err: ErrNavigationSuperseded})
	}

	nav := port.Navigation{ID: seq, URL: url, HTML: html, Scripts: v.scripts.next()}
	if err := v.native.Navigate(nav); err != nil {
		v.mu.Lock()
		if v.current.seq == seq {
			v.current = navigation{}
		}
		v.mu.Unlock()
		return &NavigationError{URL: url, Err: err}
	}
	return nil
}

// finishNavigation settles the waiter of navigation seq. Called on the pump.
func (v *WebView) finishNavigation(seq uint64, url, title string, loadErr error) {
	v.mu.Lock()
	current := v.current
	if current.seq != seq {
		v.mu.Unlock()
		return
	}
	v.current = navigation{}
	if loadErr == nil {
		v.url = url
		if title != "" {
			v.title = title
		}
	}
	v.mu.Unlock()

	event := Event{WindowID: v.windowID(), WebViewID: uint64(v.id), URL: url}
	if loadErr != nil {
		navErr := &NavigationError{URL: url, Err: loadErr}
		if current.request != 0 {
			v.pending.fail(current.request, navErr)
		}
		event.Type = EventNavigationFailed
		event.Err = navErr
		v.logger.Warn().Err(loadErr).Str("url", url).Msg("navigation failed")
	} else {
		if current.request != 0 {
			v.pending.resolve(current.request, url, nil)
		}
		event.Type = EventPageLoaded
		v.logger.Debug().Str("url", url).Msg("page loaded")
	}
	v.loop.emit(event)
}

func (v *WebView) setTitle(title string) {
	v.mu.Lock()
	v.title = title
	v.mu.Unlock()
}

// EvaluateScript runs code in the current document and returns the JSON
// encoding of its completion value ("null" for undefined).
func (v *WebView) EvaluateScript(ctx context.Context, code string) (string, error) {
	return v.request(ctx, func(id uint64) error {
		v.native.Evaluate(code, func(result string, err error) {
			if err != nil {
				var serr *ScriptEvaluationError
				if !errors.As(err, &serr) {
					serr = &ScriptEvaluationError{Message: err.Error()}
				}
				v.pending.fail(id, serr)
				return
			}
			v.pending.resolve(id, result, nil)
		})
		return nil
	})
}

// OpenDevtools opens the inspector. Opening it twice is a no-op.
func (v *WebView) OpenDevtools(ctx context.Context) error {
	return v.setDevtools(ctx, true)
}

// CloseDevtools closes the inspector. Closing it twice is a no-op.
func (v *WebView) CloseDevtools(ctx context.Context) error {
	return v.setDevtools(ctx, false)
}

func (v *WebView) setDevtools(ctx context.Context, open bool) error {
	if v.destroyed.Load() {
		return goneErr("webview", uint64(v.id))
	}
	if !v.cfg.Devtools {
		return ErrDevtoolsDisabled
	}
	_, err := v.request(ctx, func(id uint64) error {
		if v.native.DevtoolsOpen() == open {
			v.pending.resolve(id, "", nil)
			return nil
		}
		v.native.SetDevtools(open, func(err error) {
			if err != nil {
				v.pending.fail(id, fmt.Errorf("toggle devtools: %w", err))
				return
			}
			v.pending.resolve(id, "", nil)
		})
		return nil
	})
	return err
}

// IsDevtoolsOpen asks the native side whether the inspector is shown.
func (v *WebView) IsDevtoolsOpen(ctx context.Context) (bool, error) {
	if v.destroyed.Load() {
		return false, goneErr("webview", uint64(v.id))
	}
	if !v.cfg.Devtools {
		return false, nil
	}
	res, err := v.request(ctx, func(id uint64) error {
		v.pending.resolve(id, strconv.FormatBool(v.native.DevtoolsOpen()), nil)
		return nil
	})
	if err != nil {
		return false, err
	}
	return res == "true", nil
}

// Print prints the current document. It returns once the native side
// reported the job done.
func (v *WebView) Print(ctx context.Context) error {
	_, err := v.request(ctx, func(id uint64) error {
		v.native.Print(func(err error) {
			if err != nil {
				v.pending.fail(id, err)
				return
			}
			v.pending.resolve(id, "", nil)
		})
		return nil
	})
	return err
}

// SetZoom sets the page zoom factor; 1 is the default.
func (v *WebView) SetZoom(ctx context.Context, level float64) error {
	if level <= 0 {
		return validationErr("webview", "zoom", "must be positive")
	}
	return v.do(ctx, func() {
		v.native.SetZoom(level)
		v.mu.Lock()
		v.zoom = level
		v.mu.Unlock()
	})
}

func (v *WebView) SetVisible(ctx context.Context, visible bool) error {
	return v.do(ctx, func() {
		v.native.SetVisible(visible)
		v.mu.Lock()
		v.visible = visible
		v.mu.Unlock()
	})
}

// SetBounds moves and resizes the webview. Bursts of calls are merged: only
// the latest bounds are applied, on the next pump. Bounds() reflects the new
// value immediately.
func (v *WebView) SetBounds(r Rect) error {
	if v.destroyed.Load() {
		return goneErr("webview", uint64(v.id))
	}
	if r.Width <= 0 || r.Height <= 0 {
		return validationErr("webview", "bounds", fmt.Sprintf("must have a positive size, got %dx%d", r.Width, r.Height))
	}
	v.mu.Lock()
	v.bounds = r
	v.mu.Unlock()

	v.loop.bounds.Post(v.boundsKey(), func() {
		if v.destroyed.Load() {
			return
		}
		v.native.SetBounds(v.Bounds())
	})
	return nil
}

// Destroy releases the webview. Pending operations fail with a
// ResourceGoneError; sibling webviews and the window are unaffected.
func (v *WebView) Destroy(ctx context.Context) error {
	if v.destroyed.Load() {
		return nil
	}
	err := v.loop.call(ctx, func() error {
		v.destroyNative(false)
		return nil
	})
	if err != nil && v.destroyed.Load() {
		return nil
	}
	return err
}

func (v *WebView) do(ctx context.Context, fn func()) error {
	if v.destroyed.Load() {
		return goneErr("webview", uint64(v.id))
	}
	return v.loop.call(ctx, func() error {
		if v.destroyed.Load() {
			return goneErr("webview", uint64(v.id))
		}
		fn()
		return nil
	})
}

// request registers a pending request, runs start on the pump and waits for
// the request to be resolved by start or a later native completion.
func (v *WebView) request(ctx context.Context, start func(id uint64) error) (string, error) {
	if v.destroyed.Load() {
		return "", goneErr("webview", uint64(v.id))
	}
	id, ch, err := v.pending.add()
	if err != nil {
		return "", err
	}

	err = v.loop.post(task{
		run: func() {
			if v.destroyed.Load() {
				v.pending.fail(id, goneErr("webview", uint64(v.id)))
				return
			}
			if err := start(id); err != nil {
				v.pending.fail(id, err)
			}
		},
		abort: func(err error) { v.pending.fail(id, err) },
	})
	if err != nil {
		v.pending.drop(id)
		return "", err
	}

	res, err := await(ctx, v.loop, ch)
	if err != nil {
		v.pending.drop(id)
		return "", err
	}
	return res.value, res.err
}

// abort fails outstanding requests because the loop is exiting.
func (v *WebView) abort() {
	v.pending.close(abortedErr("webview", uint64(v.id)))
}

// destroyNative releases the native view. Called on the pump.
func (v *WebView) destroyNative(aborted bool) {
	if !v.destroyed.CompareAndSwap(false, true) {
		return
	}
	if aborted {
		v.pending.close(abortedErr("webview", uint64(v.id)))
	} else {
		v.pending.close(goneErr("webview", uint64(v.id)))
	}

	v.loop.bounds.Cancel(v.boundsKey())
	v.native.Destroy()
	if v.window != nil {
		v.window.detach(v)
	}
	v.loop.removeView(v)
	v.loop.emit(Event{Type: EventWebViewDestroyed, WindowID: v.windowID(), WebViewID: uint64(v.id)})
	v.logger.Debug().Msg("webview destroyed")
}

func (v *WebView) boundsKey() string {
	return "bounds:" + strconv.FormatUint(uint64(v.id), 10)
}

func (v *WebView) windowID() uint64 {
	if v.window == nil {
		return 0
	}
	return uint64(v.window.id)
}
