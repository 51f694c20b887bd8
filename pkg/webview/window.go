package webview

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/bnema/webloop/internal/application/port"
	"github.com/rs/zerolog"
)

// WindowState is a snapshot of a window's live native state.
type WindowState = port.WindowState

// Window is a native top-level surface owned by an event loop.
//
// Queries read a state mirror kept current by native signals and are safe
// from any goroutine. Mutators are marshalled onto the loop.
type Window struct {
	id     port.WindowID
	loop   *EventLoop
	cfg    WindowConfig
	logger zerolog.Logger

	native    port.NativeWindow // pump only
	destroyed atomic.Bool

	mu    sync.RWMutex
	state port.WindowState
	views []*WebView
}

// BuildWindow validates cfg and materializes a window on loop.
// Nothing native is created when validation fails.
func BuildWindow(ctx context.Context, loop *EventLoop, cfg WindowConfig) (*Window, error) {
	if loop == nil {
		return nil, validationErr("window", "loop", "must not be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.Icon = slices.Clone(cfg.Icon)

	w := &Window{
		id:   nextWindowID(),
		loop: loop,
		cfg:  cfg,
	}
	w.logger = loop.logger.With().Str("component", "window").Uint64("window_id", uint64(w.id)).Logger()

	err := loop.call(ctx, func() error {
		native, err := loop.queue.CreateWindow(w.id, cfg.spec())
		if err != nil {
			return fmt.Errorf("create window: %w", err)
		}
		w.native = native
		w.refresh()
		loop.addWindow(w)
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			// The create task may still run; release whatever it produces.
			_ = loop.post(task{
				run: func() {
					if w.native != nil {
						w.destroyNative(false)
					}
				},
				abort: func(error) {},
			})
		}
		return nil, err
	}

	w.logger.Debug().Str("title", cfg.Title).Msg("window created")
	return w, nil
}

func (w *Window) ID() uint64 {
	return uint64(w.id)
}

// Loop returns the event loop owning the window.
func (w *Window) Loop() *EventLoop {
	return w.loop
}

// Config returns the snapshot the window was built from.
func (w *Window) Config() WindowConfig {
	cfg := w.cfg
	cfg.Icon = slices.Clone(w.cfg.Icon)
	return cfg
}

// State returns the last known native state.
func (w *Window) State() WindowState {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.state
}

func (w *Window) Title() string {
	return w.State().Title
}

func (w *Window) InnerSize() Size {
	st := w.State()
	return Size{Width: st.Width, Height: st.Height}
}

func (w *Window) OuterPosition() Position {
	st := w.State()
	return Position{X: st.X, Y: st.Y}
}

func (w *Window) IsVisible() bool     { return w.State().Visible }
func (w *Window) IsResizable() bool   { return w.State().Resizable }
func (w *Window) IsDecorated() bool   { return w.State().Decorated }
func (w *Window) IsMaximized() bool   { return w.State().Maximized }
func (w *Window) IsMinimized() bool   { return w.State().Minimized }
func (w *Window) IsAlwaysOnTop() bool { return w.State().AlwaysOnTop }
func (w *Window) IsFocused() bool     { return w.State().Focused }
func (w *Window) Theme() Theme        { return w.State().Theme }
func (w *Window) HasIcon() bool       { return w.State().HasIcon }

// IsDestroyed reports whether the window was destroyed, explicitly or by its loop exiting.
func (w *Window) IsDestroyed() bool {
	return w.destroyed.Load()
}

// WebViews returns the live webviews attached to the window, in creation order.
func (w *Window) WebViews() []*WebView {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return slices.Clone(w.views)
}

func (w *Window) SetTitle(ctx context.Context, title string) error {
	if title == "" {
		return validationErr("window", "title", "must not be empty")
	}
	return w.do(ctx, func(native port.NativeWindow) { native.SetTitle(title) })
}

func (w *Window) SetVisible(ctx context.Context, visible bool) error {
	return w.do(ctx, func(native port.NativeWindow) { native.SetVisible(visible) })
}

func (w *Window) SetInnerSize(ctx context.Context, width, height int) error {
	if width <= 0 || height <= 0 {
		return validationErr("window", "size", fmt.Sprintf("must be positive, got %dx%d", width, height))
	}
	return w.do(ctx, func(native port.NativeWindow) { native.Resize(width, height) })
}

func (w *Window) SetOuterPosition(ctx context.Context, x, y int) error {
	return w.do(ctx, func(native port.NativeWindow) { native.Move(x, y) })
}

func (w *Window) SetMaximized(ctx context.Context, maximized bool) error {
	return w.do(ctx, func(native port.NativeWindow) { native.SetMaximized(maximized) })
}

func (w *Window) SetMinimized(ctx context.Context, minimized bool) error {
	return w.do(ctx, func(native port.NativeWindow) { native.SetMinimized(minimized) })
}

func (w *Window) SetAlwaysOnTop(ctx context.Context, onTop bool) error {
	return w.do(ctx, func(native port.NativeWindow) { native.SetAlwaysOnTop(onTop) })
}

func (w *Window) SetResizable(ctx context.Context, resizable bool) error {
	return w.do(ctx, func(native port.NativeWindow) { native.SetResizable(resizable) })
}

func (w *Window) SetTheme(ctx context.Context, theme Theme) error {
	if theme < ThemeSystem || theme > ThemeDark {
		return validationErr("window", "theme", fmt.Sprintf("unknown theme %d", int(theme)))
	}
	return w.do(ctx, func(native port.NativeWindow) { native.SetTheme(theme) })
}

// SetIcon replaces the window icon with encoded image data. A nil or empty
// icon restores the default one.
func (w *Window) SetIcon(ctx context.Context, icon []byte) error {
	icon = slices.Clone(icon)
	return w.do(ctx, func(native port.NativeWindow) { native.SetIcon(icon) })
}

// Focus raises the window and gives it input focus.
func (w *Window) Focus(ctx context.Context) error {
	return w.do(ctx, func(native port.NativeWindow) { native.Present() })
}

// Destroy destroys the attached webviews, then the native window.
// Pending operations against any of them fail with a ResourceGoneError.
// Destroying an already destroyed window is a no-op.
func (w *Window) Destroy(ctx context.Context) error {
	if w.destroyed.Load() {
		return nil
	}
	err := w.loop.call(ctx, func() error {
		w.destroyNative(false)
		return nil
	})
	if err != nil && w.destroyed.Load() {
		return nil
	}
	return err
}

func (w *Window) do(ctx context.Context, fn func(native port.NativeWindow)) error {
	if w.destroyed.Load() {
		return goneErr("window", uint64(w.id))
	}
	return w.loop.call(ctx, func() error {
		if w.destroyed.Load() {
			return goneErr("window", uint64(w.id))
		}
		fn(w.native)
		w.refresh()
		return nil
	})
}

// refresh copies the native state into the mirror. Called on the pump.
func (w *Window) refresh() {
	w.setState(w.native.State())
}

func (w *Window) setState(st port.WindowState) {
	w.mu.Lock()
	w.state = st
	w.mu.Unlock()
}

// destroyNative tears the window and its attached views down. Called on the pump.
func (w *Window) destroyNative(aborted bool) {
	if !w.destroyed.CompareAndSwap(false, true) {
		return
	}

	w.mu.Lock()
	views := w.views
	w.views = nil
	w.mu.Unlock()

	for _, v := range views {
		v.destroyNative(aborted)
	}
	w.native.Destroy()
	w.loop.removeWindow(w)
	w.loop.emit(Event{Type: EventWindowDestroyed, WindowID: uint64(w.id)})
	w.logger.Debug().Int("views", len(views)).Msg("window destroyed")
}
