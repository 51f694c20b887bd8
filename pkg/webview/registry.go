package webview

import (
	"sync/atomic"

	"github.com/bnema/webloop/internal/application/port"
)

var (
	windowCounter atomic.Uint64
	viewCounter   atomic.Uint64
)

func nextWindowID() port.WindowID {
	return port.WindowID(windowCounter.Add(1))
}

func nextViewID() port.ViewID {
	return port.ViewID(viewCounter.Add(1))
}

// The methods below keep the loop's id -> handle maps. Handles only hold a
// back reference to their loop; the loop owns them.

func (l *EventLoop) addWindow(w *Window) {
	l.mu.Lock()
	l.windows[w.id] = w
	l.hadSurface = true
	l.mu.Unlock()
}

func (l *EventLoop) removeWindow(w *Window) {
	l.mu.Lock()
	delete(l.windows, w.id)
	l.mu.Unlock()
}

func (l *EventLoop) window(id port.WindowID) *Window {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.windows[id]
}

func (l *EventLoop) addView(v *WebView) {
	l.mu.Lock()
	l.views[v.id] = v
	if v.window == nil {
		l.hadSurface = true
	}
	l.mu.Unlock()
}

func (l *EventLoop) removeView(v *WebView) {
	l.mu.Lock()
	delete(l.views, v.id)
	l.mu.Unlock()
}

func (l *EventLoop) view(id port.ViewID) *WebView {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.views[id]
}

// WebView looks a live webview up by id.
func (l *EventLoop) WebView(id uint64) (*WebView, bool) {
	v := l.view(port.ViewID(id))
	return v, v != nil
}

// Window looks a live window up by id.
func (l *EventLoop) Window(id uint64) (*Window, bool) {
	w := l.window(port.WindowID(id))
	return w, w != nil
}

// standaloneLabelTaken reports whether a live standalone view of the loop uses label.
func (l *EventLoop) standaloneLabelTaken(label string) bool {
	if label == "" {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, v := range l.views {
		if v.window == nil && v.label == label && !v.destroyed.Load() {
			return true
		}
	}
	return false
}

// attachedLabelTaken reports whether a live view attached to w uses label.
func (w *Window) attachedLabelTaken(label string) bool {
	if label == "" {
		return false
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	for _, v := range w.views {
		if v.label == label && !v.destroyed.Load() {
			return true
		}
	}
	return false
}

func (w *Window) attach(v *WebView) {
	w.mu.Lock()
	w.views = append(w.views, v)
	w.mu.Unlock()
}

func (w *Window) detach(v *WebView) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i, candidate := range w.views {
		if candidate == v {
			w.views = append(w.views[:i:i], w.views[i+1:]...)
			return
		}
	}
}
