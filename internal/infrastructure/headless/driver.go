// Package headless implements an in-process native driver. Windows are plain
// state mirrors, documents are parsed with x/net/html and scripts run in a
// sobek runtime per document. It needs no display and backs the test suites.
package headless

import (
	"fmt"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/bnema/webloop/internal/application/port"
	"github.com/rs/zerolog"
)

// Name is the registry name of the driver.
const Name = "headless"

const (
	defaultFetchTimeout  = 15 * time.Second
	defaultScriptTimeout = 5 * time.Second
	defaultUserAgent     = "Mozilla/5.0 (X11; Linux x86_64) webloop-headless"
)

var defaultMonitor = port.Monitor{
	Name:        "headless-0",
	Bounds:      port.Rect{Width: 1920, Height: 1080},
	ScaleFactor: 1,
	Primary:     true,
}

// Option configures a Driver.
type Option func(*Driver)

// WithHTTPClient sets the client used for http(s) navigations.
func WithHTTPClient(client *http.Client) Option {
	return func(d *Driver) {
		if client != nil {
			d.client = client
		}
	}
}

// WithFetchTimeout bounds http(s) navigations.
func WithFetchTimeout(timeout time.Duration) Option {
	return func(d *Driver) {
		if timeout > 0 {
			d.fetchTimeout = timeout
		}
	}
}

// WithScriptTimeout interrupts a single script run after timeout.
func WithScriptTimeout(timeout time.Duration) Option {
	return func(d *Driver) {
		if timeout > 0 {
			d.scriptTimeout = timeout
		}
	}
}

// WithMonitors replaces the simulated displays. The first monitor marked
// primary wins; when none is, the first one is primary.
func WithMonitors(monitors ...port.Monitor) Option {
	return func(d *Driver) {
		if len(monitors) == 0 {
			return
		}
		d.monitors = normalizeMonitors(monitors)
	}
}

func normalizeMonitors(monitors []port.Monitor) []port.Monitor {
	out := slices.Clone(monitors)
	primary := slices.IndexFunc(out, func(m port.Monitor) bool { return m.Primary })
	if primary < 0 {
		primary = 0
	}
	for i := range out {
		out[i].Primary = i == primary
		if out[i].ScaleFactor <= 0 {
			out[i].ScaleFactor = 1
		}
	}
	return out
}

// Driver creates headless queues and lets tests inject native activity.
type Driver struct {
	logger        zerolog.Logger
	client        *http.Client
	fetchTimeout  time.Duration
	scriptTimeout time.Duration
	monitors      []port.Monitor

	mu      sync.Mutex
	windows map[port.WindowID]*Queue
	views   map[port.ViewID]*Queue
}

var _ port.Driver = (*Driver)(nil)

// New creates a headless driver.
func New(logger zerolog.Logger, opts ...Option) *Driver {
	d := &Driver{
		logger:        logger.With().Str("component", "headless").Logger(),
		client:        http.DefaultClient,
		fetchTimeout:  defaultFetchTimeout,
		scriptTimeout: defaultScriptTimeout,
		monitors:      []port.Monitor{defaultMonitor},
		windows:       make(map[port.WindowID]*Queue),
		views:         make(map[port.ViewID]*Queue),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Driver) Name() string {
	return Name
}

// NewQueue creates the queue of one event loop.
func (d *Driver) NewQueue(sink port.EventSink) (port.Queue, error) {
	if sink == nil {
		return nil, fmt.Errorf("headless: nil event sink")
	}
	return newQueue(d, sink), nil
}

func (d *Driver) trackWindow(id port.WindowID, q *Queue) {
	d.mu.Lock()
	d.windows[id] = q
	d.mu.Unlock()
}

func (d *Driver) trackView(id port.ViewID, q *Queue) {
	d.mu.Lock()
	d.views[id] = q
	d.mu.Unlock()
}

func (d *Driver) forgetWindow(id port.WindowID) {
	d.mu.Lock()
	delete(d.windows, id)
	d.mu.Unlock()
}

func (d *Driver) forgetView(id port.ViewID) {
	d.mu.Lock()
	delete(d.views, id)
	d.mu.Unlock()
}

func (d *Driver) windowQueue(id uint64) (*Queue, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	q, ok := d.windows[port.WindowID(id)]
	if !ok {
		return nil, fmt.Errorf("headless: unknown window %d", id)
	}
	return q, nil
}

func (d *Driver) viewQueue(id uint64) (*Queue, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	q, ok := d.views[port.ViewID(id)]
	if !ok {
		return nil, fmt.Errorf("headless: unknown webview %d", id)
	}
	return q, nil
}

// SimulateCloseRequest behaves like the user clicking the close button of a window.
func (d *Driver) SimulateCloseRequest(windowID uint64) error {
	q, err := d.windowQueue(windowID)
	if err != nil {
		return err
	}
	q.enqueue(func() {
		if _, ok := q.windows[port.WindowID(windowID)]; ok {
			q.sink.CloseRequested(port.WindowID(windowID), 0)
		}
	})
	return nil
}

// SimulateViewCloseRequest closes the own surface of a standalone webview.
func (d *Driver) SimulateViewCloseRequest(viewID uint64) error {
	q, err := d.viewQueue(viewID)
	if err != nil {
		return err
	}
	q.enqueue(func() {
		if _, ok := q.views[port.ViewID(viewID)]; ok {
			q.sink.CloseRequested(0, port.ViewID(viewID))
		}
	})
	return nil
}

// SimulateResize behaves like the compositor resizing a window.
func (d *Driver) SimulateResize(windowID uint64, width, height int) error {
	return d.mutateWindow(windowID, func(w *Window) {
		w.state.Width = width
		w.state.Height = height
	})
}

// SimulateMove behaves like the user dragging a window.
func (d *Driver) SimulateMove(windowID uint64, x, y int) error {
	return d.mutateWindow(windowID, func(w *Window) {
		w.state.X = x
		w.state.Y = y
	})
}

// SimulateFocus gives a window input focus and takes it from the others of its queue.
func (d *Driver) SimulateFocus(windowID uint64) error {
	q, err := d.windowQueue(windowID)
	if err != nil {
		return err
	}
	q.enqueue(func() {
		for id, w := range q.windows {
			focused := id == port.WindowID(windowID)
			if w.state.Focused != focused {
				w.state.Focused = focused
				q.sink.WindowChanged(id, w.state)
			}
		}
	})
	return nil
}

// SimulateScriptMessage makes the current document of a webview post body
// through window.ipc.postMessage.
func (d *Driver) SimulateScriptMessage(viewID uint64, body string) error {
	q, err := d.viewQueue(viewID)
	if err != nil {
		return err
	}
	q.enqueue(func() {
		v, ok := q.views[port.ViewID(viewID)]
		if !ok || v.page == nil {
			return
		}
		v.page.post(body)
	})
	return nil
}

func (d *Driver) mutateWindow(windowID uint64, fn func(w *Window)) error {
	q, err := d.windowQueue(windowID)
	if err != nil {
		return err
	}
	q.enqueue(func() {
		w, ok := q.windows[port.WindowID(windowID)]
		if !ok {
			return
		}
		fn(w)
		q.sink.WindowChanged(w.id, w.state)
	})
	return nil
}
