//go:generate mockgen -destination=mocks/mock_native.go -package=mocks github.com/bnema/webloop/internal/application/port EventSink

package port

import "errors"

// ErrDriverUnavailable reports a native driver that was not compiled into the binary.
var ErrDriverUnavailable = errors.New("native driver unavailable")

// Page-side names of the IPC bridge. Drivers define NativePostFunction as a
// global before any injected script runs; pages define ReceiveHook to accept
// host messages.
const (
	NativePostFunction = "__webloop_post"
	ReceiveHook        = "__webloop_receive"
)

// WindowID uniquely identifies a native top-level window.
type WindowID uint64

// ViewID uniquely identifies a native webview surface.
type ViewID uint64

// Theme is the requested color theme of a native surface.
type Theme int

const (
	// ThemeSystem follows the desktop preference.
	ThemeSystem Theme = iota
	// ThemeLight forces the light variant.
	ThemeLight
	// ThemeDark forces the dark variant.
	ThemeDark
)

// String returns a human-readable representation of the theme.
func (t Theme) String() string {
	switch t {
	case ThemeLight:
		return "light"
	case ThemeDark:
		return "dark"
	default:
		return "system"
	}
}

// Rect is a region in logical pixels.
type Rect struct {
	X      int
	Y      int
	Width  int
	Height int
}

// Monitor describes a connected display. Bounds are in logical pixels of
// the virtual desktop.
type Monitor struct {
	Name        string
	Bounds      Rect
	ScaleFactor float64
	Primary     bool
}

// RGBA is a background color with components in [0, 1].
type RGBA struct {
	R, G, B, A float32
}

// WindowSpec is the validated configuration a driver materializes a window from.
type WindowSpec struct {
	Title       string
	Bounds      Rect
	MinWidth    int
	MinHeight   int
	MaxWidth    int
	MaxHeight   int
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

// WindowState is the live native state of a window.
// It may diverge from the WindowSpec after user or compositor interaction.
type WindowState struct {
	Title       string
	Width       int
	Height      int
	X           int
	Y           int
	Visible     bool
	Resizable   bool
	Decorated   bool
	Maximized   bool
	Minimized   bool
	Focused     bool
	AlwaysOnTop bool
	Theme       Theme
	HasIcon     bool
}

// ViewSpec is the validated configuration a driver materializes a webview from.
// Standalone views also carry the attributes of their own top-level surface.
type ViewSpec struct {
	Title           string
	Bounds          Rect
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
	Background      *RGBA
	DragDrop        bool
	Devtools        bool
	Incognito       bool
	ZoomHotkeys     bool
	Clipboard       bool
	Autoplay        bool
}

// Navigation describes one content load. Exactly one of URL or HTML is set.
// Scripts are injected in order before any page script runs. ID is echoed
// back in the completion event of the load.
type Navigation struct {
	ID      uint64
	URL     string
	HTML    string
	Scripts []string
}

// Driver creates native queues. One queue backs one event loop.
type Driver interface {
	Name() string
	NewQueue(sink EventSink) (Queue, error)
}

// Queue is one native UI message queue.
//
// Iterate, CreateWindow, CreateView and every method of the returned native
// handles must only be called by the goroutine currently holding the owning
// loop's pump token. Wake and Woken are safe from any goroutine.
type Queue interface {
	// Iterate dispatches at most max pending native events without blocking
	// and reports how many were dispatched.
	Iterate(max int) int
	// Wake signals that the queue has work for the pump.
	Wake()
	// Woken is signalled by Wake and by native activity needing a pump.
	Woken() <-chan struct{}
	CreateWindow(id WindowID, spec WindowSpec) (NativeWindow, error)
	// CreateView materializes a webview. parent is nil for standalone views.
	CreateView(id ViewID, spec ViewSpec, parent NativeWindow) (NativeView, error)
	// Monitors lists the connected displays. At most one is marked primary.
	Monitors() []Monitor
	Close() error
}

// NativeWindow is a live native top-level window.
type NativeWindow interface {
	State() WindowState
	SetTitle(title string)
	SetVisible(visible bool)
	Resize(width, height int)
	Move(x, y int)
	SetMaximized(maximized bool)
	SetMinimized(minimized bool)
	SetAlwaysOnTop(onTop bool)
	SetResizable(resizable bool)
	SetTheme(theme Theme)
	// SetIcon replaces the window icon with encoded image data; nil restores the default.
	SetIcon(icon []byte)
	Present()
	Destroy()
}

// NativeView is a live native webview surface.
type NativeView interface {
	// Navigate starts a load. Completion is reported through EventSink.
	Navigate(nav Navigation) error
	// Evaluate runs code in the current document. done receives the JSON
	// encoding of the completion value and is called from a later Iterate.
	Evaluate(code string, done func(result string, err error))
	SetDevtools(open bool, done func(err error))
	DevtoolsOpen() bool
	SetBounds(r Rect)
	SetVisible(visible bool)
	SetZoom(level float64)
	// Print prints the current document. done is called from a later Iterate.
	Print(done func(err error))
	// Window returns the top-level surface of a standalone view, nil when attached.
	Window() NativeWindow
	Destroy()
}

// EventSink receives native events. Drivers call it only from within Iterate.
type EventSink interface {
	ScriptMessage(view ViewID, body, url string)
	LoadFinished(view ViewID, nav uint64, url, title string)
	LoadFailed(view ViewID, nav uint64, url string, err error)
	TitleChanged(view ViewID, title string)
	// CloseRequested reports a user close request on a window, or on the
	// surface of a standalone view when view is non-zero.
	CloseRequested(window WindowID, view ViewID)
	WindowChanged(window WindowID, state WindowState)
}
