package webview

// EventType identifies an application event.
type EventType int

const (
	// EventWindowCloseRequested fires when the user asks to close a window or standalone webview.
	EventWindowCloseRequested EventType = iota
	// EventApplicationCloseRequested fires once on every exit (Exit, ExitWithCode,
	// ctx cancellation or the last surface closing), before surfaces are destroyed.
	EventApplicationCloseRequested
	EventWindowDestroyed
	EventWebViewDestroyed
	EventPageLoaded
	EventNavigationFailed
)

// String returns a human-readable representation of the event type.
func (t EventType) String() string {
	switch t {
	case EventWindowCloseRequested:
		return "window-close-requested"
	case EventApplicationCloseRequested:
		return "application-close-requested"
	case EventWindowDestroyed:
		return "window-destroyed"
	case EventWebViewDestroyed:
		return "webview-destroyed"
	case EventPageLoaded:
		return "page-loaded"
	case EventNavigationFailed:
		return "navigation-failed"
	default:
		return "unknown"
	}
}

// Event is an application event emitted by an event loop.
type Event struct {
	Type      EventType
	WindowID  uint64
	WebViewID uint64
	URL       string
	Err       error
}
