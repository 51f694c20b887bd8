package webview

import (
	"github.com/bnema/webloop/internal/application/port"
)

// loopSink receives native events for one loop. Drivers call it from inside
// Iterate, so every method runs with the pump token held.
type loopSink struct {
	loop *EventLoop
}

var _ port.EventSink = (*loopSink)(nil)

func (s *loopSink) ScriptMessage(view port.ViewID, body, url string) {
	v := s.loop.view(view)
	if v == nil || v.destroyed.Load() {
		return
	}
	v.receive(body, url)
}

func (s *loopSink) LoadFinished(view port.ViewID, nav uint64, url, title string) {
	if v := s.loop.view(view); v != nil {
		v.finishNavigation(nav, url, title, nil)
	}
}

func (s *loopSink) LoadFailed(view port.ViewID, nav uint64, url string, err error) {
	if v := s.loop.view(view); v != nil {
		v.finishNavigation(nav, url, "", err)
	}
}

func (s *loopSink) TitleChanged(view port.ViewID, title string) {
	if v := s.loop.view(view); v != nil {
		v.setTitle(title)
	}
}

// CloseRequested destroys the surface the user asked to close and exits the
// loop once no top-level surface is left, unless keep-alive is set.
func (s *loopSink) CloseRequested(window port.WindowID, view port.ViewID) {
	l := s.loop
	switch {
	case view != 0:
		v := l.view(view)
		if v == nil {
			return
		}
		l.emit(Event{Type: EventWindowCloseRequested, WindowID: v.windowID(), WebViewID: uint64(view)})
		v.destroyNative(false)
	default:
		w := l.window(window)
		if w == nil {
			return
		}
		l.emit(Event{Type: EventWindowCloseRequested, WindowID: uint64(window)})
		w.destroyNative(false)
	}
	l.surfaceClosed()
}

func (s *loopSink) WindowChanged(window port.WindowID, state port.WindowState) {
	if w := s.loop.window(window); w != nil {
		w.setState(state)
	}
}
