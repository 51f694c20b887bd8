package webview

import (
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bnema/webloop/internal/application/port"
)

// Page-side names of the bridge.
const (
	NativePostFunction = port.NativePostFunction
	ReceiveHook        = port.ReceiveHook
)

// bootstrapScript installs window.ipc.postMessage on top of the native post function.
const bootstrapScript = `(function () {
  if (window.ipc && window.ipc.__webloop === true) { return; }
  var post = window.` + NativePostFunction + `;
  Object.defineProperty(window, "ipc", {
    value: Object.freeze({
      __webloop: true,
      postMessage: function (message) { post(String(message)); }
    }),
    writable: false,
    configurable: false
  });
})();`

// sendScript calls the page hook when present and reports whether it did.
const sendScript = `(function (m) {
  var h = window.` + ReceiveHook + `;
  if (typeof h !== "function") { return false; }
  h(m);
  return true;
})(%s)`

// Listener receives inbound IPC messages. A returned error is reported as a
// *ListenerError and does not stop delivery to the listeners after it.
type Listener func(Message) error

// Message is one page-to-host IPC message.
type Message struct {
	WebViewID uint64
	Label     string
	Body      string
	URL       string
	Received  time.Time
}

// BridgeStats counts traffic through a webview's bridge.
// Delivered and Dropped are settled once the loop ran the send.
type BridgeStats struct {
	Received       uint64
	Sent           uint64
	Delivered      uint64
	Dropped        uint64
	ListenerErrors uint64
}

type listenerEntry struct {
	key uint64
	fn  Listener
}

// bridge is the per-webview listener registry. The listener slice is copy
// on write: a delivery iterates the snapshot taken when the message arrived.
type bridge struct {
	mu        sync.Mutex
	listeners []listenerEntry
	nextKey   uint64
	onError   func(*ListenerError)

	received       atomic.Uint64
	sent           atomic.Uint64
	delivered      atomic.Uint64
	dropped        atomic.Uint64
	listenerErrors atomic.Uint64
}

func newBridge(first Listener) *bridge {
	b := &bridge{}
	if first != nil {
		b.add(first)
	}
	return b
}

func (b *bridge) add(fn Listener) func() {
	b.mu.Lock()
	b.nextKey++
	key := b.nextKey
	next := make([]listenerEntry, len(b.listeners), len(b.listeners)+1)
	copy(next, b.listeners)
	b.listeners = append(next, listenerEntry{key: key, fn: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(key) })
	}
}

func (b *bridge) remove(key uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	idx := slices.IndexFunc(b.listeners, func(e listenerEntry) bool { return e.key == key })
	if idx < 0 {
		return
	}
	b.listeners = slices.Delete(slices.Clone(b.listeners), idx, idx+1)
}

func (b *bridge) snapshot() []listenerEntry {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.listeners
}

func (b *bridge) setErrorHook(fn func(*ListenerError)) {
	b.mu.Lock()
	b.onError = fn
	b.mu.Unlock()
}

func (b *bridge) errorHook() func(*ListenerError) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.onError
}

func (b *bridge) stats() BridgeStats {
	return BridgeStats{
		Received:       b.received.Load(),
		Sent:           b.sent.Load(),
		Delivered:      b.delivered.Load(),
		Dropped:        b.dropped.Load(),
		ListenerErrors: b.listenerErrors.Load(),
	}
}

// On registers a listener after the ones already present. It only receives
// messages arriving after the call. The returned function unregisters it.
func (v *WebView) On(fn Listener) func() {
	if fn == nil {
		return func() {}
	}
	return v.bridge.add(fn)
}

// OnListenerError sets the hook receiving listener failures of this webview.
// It runs on the loop's dispatcher.
func (v *WebView) OnListenerError(fn func(*ListenerError)) {
	v.bridge.setErrorHook(fn)
}

// Stats returns a snapshot of the bridge counters.
func (v *WebView) Stats() BridgeStats {
	return v.bridge.stats()
}

// Send delivers msg to the page's receive hook. A page that never defined
// the hook drops the message silently; it is counted in Stats().Dropped.
func (v *WebView) Send(msg string) error {
	if v.destroyed.Load() {
		return goneErr("webview", uint64(v.id))
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode ipc message: %w", err)
	}
	code := fmt.Sprintf(sendScript, payload)

	err = v.loop.post(task{
		run: func() {
			if v.destroyed.Load() {
				v.bridge.dropped.Add(1)
				return
			}
			v.native.Evaluate(code, func(result string, err error) {
				if err == nil && result == "true" {
					v.bridge.delivered.Add(1)
					return
				}
				if err != nil {
					v.ipcLogger.Debug().Err(err).Msg("send evaluation failed")
				}
				v.bridge.dropped.Add(1)
			})
		},
		abort: func(error) { v.bridge.dropped.Add(1) },
	})
	if err != nil {
		return err
	}
	v.bridge.sent.Add(1)
	return nil
}

// receive queues an inbound message for delivery on the dispatcher. Called on the pump.
func (v *WebView) receive(body, url string) {
	msg := Message{
		WebViewID: uint64(v.id),
		Label:     v.label,
		Body:      body,
		URL:       url,
		Received:  time.Now(),
	}
	listeners := v.bridge.snapshot()
	v.bridge.received.Add(1)

	if !v.loop.dispatch.submit(func() { v.deliver(msg, listeners) }) {
		v.ipcLogger.Debug().Msg("dispatcher closed, message discarded")
	}
}

func (v *WebView) deliver(msg Message, listeners []listenerEntry) {
	for i, entry := range listeners {
		lerr := v.invokeListener(i, entry.fn, msg)
		if lerr == nil {
			continue
		}
		v.bridge.listenerErrors.Add(1)
		v.ipcLogger.Warn().Err(lerr).Int("listener", i).Msg("ipc listener failed")
		if hook := v.bridge.errorHook(); hook != nil {
			v.reportListenerError(hook, lerr)
		}
	}
}

func (v *WebView) invokeListener(index int, fn Listener, msg Message) (lerr *ListenerError) {
	defer func() {
		if r := recover(); r != nil {
			lerr = &ListenerError{
				WebViewID: uint64(v.id),
				Index:     index,
				Err:       fmt.Errorf("panic: %v", r),
				Panic:     r,
			}
		}
	}()
	if err := fn(msg); err != nil {
		return &ListenerError{WebViewID: uint64(v.id), Index: index, Err: err}
	}
	return nil
}

func (v *WebView) reportListenerError(hook func(*ListenerError), lerr *ListenerError) {
	defer func() {
		if r := recover(); r != nil {
			v.ipcLogger.Error().Interface("panic", r).Msg("listener error hook panicked")
		}
	}()
	hook(lerr)
}
