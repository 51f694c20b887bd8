package webview

import (
	"context"
	"slices"
	"strings"

	"github.com/bnema/webloop/internal/application/port"
	"github.com/bnema/webloop/internal/domain/validation"
)

// Theme is the color theme requested for a surface.
type Theme = port.Theme

const (
	ThemeSystem = port.ThemeSystem
	ThemeLight  = port.ThemeLight
	ThemeDark   = port.ThemeDark
)

// Size is a width/height pair in logical pixels.
type Size struct {
	Width  int
	Height int
}

// Position is an x/y pair in logical pixels.
type Position struct {
	X int
	Y int
}

// WindowConfig is an immutable snapshot of window configuration.
type WindowConfig struct {
	Title       string
	Size        Size
	Position    Position
	MinSize     Size
	MaxSize     Size
	Resizable   bool
	Decorated   bool
	Visible     bool
	Focused     bool
	Menubar     bool
	AlwaysOnTop bool
	Transparent bool
	Maximized   bool
	Theme       Theme
	Icon        []byte
}

// DefaultWindowConfig returns the configuration every WindowBuilder starts from.
func DefaultWindowConfig() WindowConfig {
	return WindowConfig{
		Size:      Size{Width: 800, Height: 600},
		Position:  Position{X: 100, Y: 100},
		Resizable: true,
		Decorated: true,
		Visible:   true,
		Focused:   true,
		Menubar:   true,
		Theme:     ThemeSystem,
	}
}

// Validate checks the configuration without touching any native resource.
func (c WindowConfig) Validate() error {
	if strings.TrimSpace(c.Title) == "" {
		return validationErr("window", "title", "must not be empty")
	}
	if errs := validation.ValidateSize("window", c.Size.Width, c.Size.Height); len(errs) > 0 {
		return validationErr("window", "size", strings.Join(errs, "; "))
	}
	if errs := validation.ValidateSizeConstraints("window",
		c.MinSize.Width, c.MinSize.Height, c.MaxSize.Width, c.MaxSize.Height); len(errs) > 0 {
		return validationErr("window", "size constraints", strings.Join(errs, "; "))
	}
	return nil
}

func (c WindowConfig) spec() port.WindowSpec {
	return port.WindowSpec{
		Title:       c.Title,
		Bounds:      port.Rect{X: c.Position.X, Y: c.Position.Y, Width: c.Size.Width, Height: c.Size.Height},
		MinWidth:    c.MinSize.Width,
		MinHeight:   c.MinSize.Height,
		MaxWidth:    c.MaxSize.Width,
		MaxHeight:   c.MaxSize.Height,
		Resizable:   c.Resizable,
		Decorated:   c.Decorated,
		Visible:     c.Visible,
		Focused:     c.Focused,
		Menubar:     c.Menubar,
		AlwaysOnTop: c.AlwaysOnTop,
		Transparent: c.Transparent,
		Maximized:   c.Maximized,
		Theme:       c.Theme,
		Icon:        slices.Clone(c.Icon),
	}
}

// WindowBuilder accumulates window configuration.
// Setters only record values; the last call for a field wins.
type WindowBuilder struct {
	cfg WindowConfig
}

// NewWindowBuilder returns a builder seeded with DefaultWindowConfig.
func NewWindowBuilder() *WindowBuilder {
	return &WindowBuilder{cfg: DefaultWindowConfig()}
}

func (b *WindowBuilder) WithTitle(title string) *WindowBuilder {
	b.cfg.Title = title
	return b
}

func (b *WindowBuilder) WithInnerSize(width, height int) *WindowBuilder {
	b.cfg.Size = Size{Width: width, Height: height}
	return b
}

func (b *WindowBuilder) WithPosition(x, y int) *WindowBuilder {
	b.cfg.Position = Position{X: x, Y: y}
	return b
}

func (b *WindowBuilder) WithMinInnerSize(width, height int) *WindowBuilder {
	b.cfg.MinSize = Size{Width: width, Height: height}
	return b
}

func (b *WindowBuilder) WithMaxInnerSize(width, height int) *WindowBuilder {
	b.cfg.MaxSize = Size{Width: width, Height: height}
	return b
}

func (b *WindowBuilder) WithResizable(v bool) *WindowBuilder {
	b.cfg.Resizable = v
	return b
}

func (b *WindowBuilder) WithDecorated(v bool) *WindowBuilder {
	b.cfg.Decorated = v
	return b
}

func (b *WindowBuilder) WithVisible(v bool) *WindowBuilder {
	b.cfg.Visible = v
	return b
}

func (b *WindowBuilder) WithFocused(v bool) *WindowBuilder {
	b.cfg.Focused = v
	return b
}

func (b *WindowBuilder) WithMenubar(v bool) *WindowBuilder {
	b.cfg.Menubar = v
	return b
}

func (b *WindowBuilder) WithAlwaysOnTop(v bool) *WindowBuilder {
	b.cfg.AlwaysOnTop = v
	return b
}

func (b *WindowBuilder) WithTransparent(v bool) *WindowBuilder {
	b.cfg.Transparent = v
	return b
}

func (b *WindowBuilder) WithMaximized(v bool) *WindowBuilder {
	b.cfg.Maximized = v
	return b
}

func (b *WindowBuilder) WithTheme(theme Theme) *WindowBuilder {
	b.cfg.Theme = theme
	return b
}

// WithIcon records a copy of the encoded icon image.
func (b *WindowBuilder) WithIcon(icon []byte) *WindowBuilder {
	b.cfg.Icon = slices.Clone(icon)
	return b
}

// Config returns a snapshot of the accumulated configuration.
func (b *WindowBuilder) Config() WindowConfig {
	cfg := b.cfg
	cfg.Icon = slices.Clone(b.cfg.Icon)
	return cfg
}

// Build validates the configuration and materializes a window on loop.
func (b *WindowBuilder) Build(ctx context.Context, loop *EventLoop) (*Window, error) {
	return BuildWindow(ctx, loop, b.Config())
}
