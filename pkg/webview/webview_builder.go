package webview

import (
	"context"
	"slices"
	"strings"

	"github.com/bnema/webloop/internal/application/port"
	"github.com/bnema/webloop/internal/domain/validation"
)

// InitScript is injected before page script on navigation.
// Once scripts run only on the first navigation of a webview's lifetime.
type InitScript struct {
	Code string
	Once bool
}

// WebViewConfig is an immutable snapshot of webview configuration.
// Position and Size are the bounds of the region when attached to a window.
type WebViewConfig struct {
	URL             string
	HTML            string
	Title           string
	Size            Size
	Position        Position
	Resizable       bool
	Decorated       bool
	Transparent     bool
	AlwaysOnTop     bool
	Maximized       bool
	Minimized       bool
	Visible         bool
	Focused         bool
	Menubar         bool
	Theme           Theme
	UserAgent       string
	BackgroundColor string
	DragDrop        bool
	Devtools        bool
	Incognito       bool
	ZoomHotkeys     bool
	Clipboard       bool
	Autoplay        bool
	InitScripts     []InitScript
	IPCHandler      Listener
}

// DefaultWebViewConfig returns the configuration every WebViewBuilder starts from.
func DefaultWebViewConfig() WebViewConfig {
	return WebViewConfig{
		Size:        Size{Width: 800, Height: 600},
		Resizable:   true,
		Decorated:   true,
		Visible:     true,
		Focused:     true,
		Menubar:     true,
		Theme:       ThemeSystem,
		DragDrop:    true,
		Devtools:    true,
		ZoomHotkeys: true,
		Clipboard:   true,
		Autoplay:    true,
	}
}

// Validate checks the configuration without touching any native resource.
func (c WebViewConfig) Validate() error {
	switch {
	case c.URL == "" && c.HTML == "":
		return validationErr("webview", "url/html", "exactly one content source is required, got none")
	case c.URL != "" && c.HTML != "":
		return validationErr("webview", "url/html", "exactly one content source is required, got both")
	}
	if c.URL != "" {
		if errs := validation.ValidateNavigationURL(c.URL); len(errs) > 0 {
			return validationErr("webview", "url", strings.Join(errs, "; "))
		}
	}
	if errs := validation.ValidateSize("webview", c.Size.Width, c.Size.Height); len(errs) > 0 {
		return validationErr("webview", "size", strings.Join(errs, "; "))
	}
	if c.BackgroundColor != "" && !validation.IsHexColor(c.BackgroundColor) {
		return validationErr("webview", "background_color", "must be a hex color like #RRGGBB or #RRGGBBAA")
	}
	return nil
}

func (c WebViewConfig) spec() port.ViewSpec {
	spec := port.ViewSpec{
		Title:       c.Title,
		Bounds:      port.Rect{X: c.Position.X, Y: c.Position.Y, Width: c.Size.Width, Height: c.Size.Height},
		Resizable:   c.Resizable,
		Decorated:   c.Decorated,
		Transparent: c.Transparent,
		AlwaysOnTop: c.AlwaysOnTop,
		Maximized:   c.Maximized,
		Minimized:   c.Minimized,
		Visible:     c.Visible,
		Focused:     c.Focused,
		Menubar:     c.Menubar,
		Theme:       c.Theme,
		UserAgent:   c.UserAgent,
		DragDrop:    c.DragDrop,
		Devtools:    c.Devtools,
		Incognito:   c.Incognito,
		ZoomHotkeys: c.ZoomHotkeys,
		Clipboard:   c.Clipboard,
		Autoplay:    c.Autoplay,
	}
	if c.BackgroundColor != "" {
		if r, g, b, a, err := validation.ParseHexColor(c.BackgroundColor); err == nil {
			spec.Background = &port.RGBA{R: r, G: g, B: b, A: a}
		}
	}
	return spec
}

// WebViewBuilder accumulates webview configuration.
type WebViewBuilder struct {
	cfg WebViewConfig
}

// NewWebViewBuilder returns a builder seeded with DefaultWebViewConfig.
func NewWebViewBuilder() *WebViewBuilder {
	return &WebViewBuilder{cfg: DefaultWebViewConfig()}
}

// WithURL sets the content source to url. Combining it with WithHTML fails validation.
func (b *WebViewBuilder) WithURL(url string) *WebViewBuilder {
	b.cfg.URL = url
	return b
}

// WithHTML sets the content source to inline markup.
func (b *WebViewBuilder) WithHTML(html string) *WebViewBuilder {
	b.cfg.HTML = html
	return b
}

// WithTitle sets the title of a standalone webview's surface.
func (b *WebViewBuilder) WithTitle(title string) *WebViewBuilder {
	b.cfg.Title = title
	return b
}

func (b *WebViewBuilder) WithInnerSize(width, height int) *WebViewBuilder {
	b.cfg.Size = Size{Width: width, Height: height}
	return b
}

func (b *WebViewBuilder) WithPosition(x, y int) *WebViewBuilder {
	b.cfg.Position = Position{X: x, Y: y}
	return b
}

func (b *WebViewBuilder) WithResizable(v bool) *WebViewBuilder {
	b.cfg.Resizable = v
	return b
}

func (b *WebViewBuilder) WithDecorated(v bool) *WebViewBuilder {
	b.cfg.Decorated = v
	return b
}

func (b *WebViewBuilder) WithTransparent(v bool) *WebViewBuilder {
	b.cfg.Transparent = v
	return b
}

func (b *WebViewBuilder) WithAlwaysOnTop(v bool) *WebViewBuilder {
	b.cfg.AlwaysOnTop = v
	return b
}

func (b *WebViewBuilder) WithMaximized(v bool) *WebViewBuilder {
	b.cfg.Maximized = v
	return b
}

func (b *WebViewBuilder) WithMinimized(v bool) *WebViewBuilder {
	b.cfg.Minimized = v
	return b
}

func (b *WebViewBuilder) WithVisible(v bool) *WebViewBuilder {
	b.cfg.Visible = v
	return b
}

func (b *WebViewBuilder) WithFocused(v bool) *WebViewBuilder {
	b.cfg.Focused = v
	return b
}

func (b *WebViewBuilder) WithMenubar(v bool) *WebViewBuilder {
	b.cfg.Menubar = v
	return b
}

func (b *WebViewBuilder) WithTheme(theme Theme) *WebViewBuilder {
	b.cfg.Theme = theme
	return b
}

func (b *WebViewBuilder) WithUserAgent(ua string) *WebViewBuilder {
	b.cfg.UserAgent = ua
	return b
}

// WithBackgroundColor takes #RRGGBB or #RRGGBBAA.
func (b *WebViewBuilder) WithBackgroundColor(color string) *WebViewBuilder {
	b.cfg.BackgroundColor = color
	return b
}

func (b *WebViewBuilder) WithDragDrop(v bool) *WebViewBuilder {
	b.cfg.DragDrop = v
	return b
}

func (b *WebViewBuilder) WithDevtools(v bool) *WebViewBuilder {
	b.cfg.Devtools = v
	return b
}

func (b *WebViewBuilder) WithIncognito(v bool) *WebViewBuilder {
	b.cfg.Incognito = v
	return b
}

func (b *WebViewBuilder) WithZoomHotkeys(v bool) *WebViewBuilder {
	b.cfg.ZoomHotkeys = v
	return b
}

func (b *WebViewBuilder) WithClipboard(v bool) *WebViewBuilder {
	b.cfg.Clipboard = v
	return b
}

func (b *WebViewBuilder) WithAutoplay(v bool) *WebViewBuilder {
	b.cfg.Autoplay = v
	return b
}

// WithInitializationScripts replaces the ordered script list.
func (b *WebViewBuilder) WithInitializationScripts(scripts ...InitScript) *WebViewBuilder {
	b.cfg.InitScripts = slices.Clone(scripts)
	return b
}

// WithInitializationScript appends one script.
func (b *WebViewBuilder) WithInitializationScript(code string, once bool) *WebViewBuilder {
	b.cfg.InitScripts = append(slices.Clone(b.cfg.InitScripts), InitScript{Code: code, Once: once})
	return b
}

// WithIPCHandler sets the first listener of the webview's bridge.
func (b *WebViewBuilder) WithIPCHandler(handler Listener) *WebViewBuilder {
	b.cfg.IPCHandler = handler
	return b
}

// Config returns a snapshot of the accumulated configuration.
func (b *WebViewBuilder) Config() WebViewConfig {
	cfg := b.cfg
	cfg.InitScripts = slices.Clone(b.cfg.InitScripts)
	return cfg
}

// Build materializes a standalone webview bound directly to loop.
func (b *WebViewBuilder) Build(ctx context.Context, loop *EventLoop, label string) (*WebView, error) {
	return BuildWebView(ctx, loop, b.Config(), label)
}

// BuildOnWindow materializes a webview attached to window as a sub-region.
func (b *WebViewBuilder) BuildOnWindow(ctx context.Context, window *Window, label string) (*WebView, error) {
	return BuildWebViewOnWindow(ctx, window, b.Config(), label)
}
