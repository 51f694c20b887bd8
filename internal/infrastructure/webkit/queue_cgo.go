//go:build webkit_cgo

package webkit

import (
	"errors"
	"fmt"
	"sync"

	"github.com/bnema/webloop/internal/application/port"
	"github.com/diamondburned/gotk4/pkg/gdk/v4"
	"github.com/diamondburned/gotk4/pkg/glib/v2"
	"github.com/rs/zerolog"
)

var errQueueClosed = errors.New("webkit: queue closed")

// Queue routes the GTK signals of the surfaces one loop created into that
// loop. Signal handlers run on the GTK thread and only append to events;
// the sink is called from Iterate on the pump.
type Queue struct {
	driver *Driver
	sink   port.EventSink
	logger zerolog.Logger
	wake   chan struct{}

	mu     sync.Mutex
	events []func()
	closed bool

	windows map[port.WindowID]*Window
	views   map[port.ViewID]*View
}

var _ port.Queue = (*Queue)(nil)

func newQueue(d *Driver, sink port.EventSink) *Queue {
	return &Queue{
		driver:  d,
		sink:    sink,
		logger:  d.logger,
		wake:    make(chan struct{}, 1),
		windows: make(map[port.WindowID]*Window),
		views:   make(map[port.ViewID]*View),
	}
}

// Iterate runs the GTK main context without blocking, then dispatches at
// most max of the events routed to this queue.
func (q *Queue) Iterate(max int) int {
	if max <= 0 {
		return 0
	}
	q.driver.invoke(func() {
		ctx := glib.MainContextDefault()
		for i := 0; i < max && ctx.Pending(); i++ {
			ctx.Iteration(false)
		}
	})

	dispatched := 0
	for dispatched < max {
		q.mu.Lock()
		if q.closed || len(q.events) == 0 {
			q.mu.Unlock()
			break
		}
		ev := q.events[0]
		q.events[0] = nil
		q.events = q.events[1:]
		q.mu.Unlock()

		ev()
		dispatched++
	}

	q.mu.Lock()
	more := len(q.events) > 0 && !q.closed
	q.mu.Unlock()
	if more {
		q.Wake()
	}
	return dispatched
}

// Wake signals the pump. Safe from any goroutine.
func (q *Queue) Wake() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Woken is signalled by Wake and by pending GTK sources.
func (q *Queue) Woken() <-chan struct{} { return q.wake }

// enqueue appends a native event. Called on the GTK thread.
func (q *Queue) enqueue(ev func()) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.events = append(q.events, ev)
	q.mu.Unlock()
	q.Wake()
	return true
}

// CreateWindow realizes a gtk.Window for spec.
func (q *Queue) CreateWindow(id port.WindowID, spec port.WindowSpec) (port.NativeWindow, error) {
	if q.isClosed() {
		return nil, errQueueClosed
	}
	var w *Window
	q.driver.invoke(func() { w = newWindow(q, id, spec) })
	q.windows[id] = w
	return w, nil
}

// CreateView realizes a WebKit view, standalone when parent is nil.
func (q *Queue) CreateView(id port.ViewID, spec port.ViewSpec, parent port.NativeWindow) (port.NativeView, error) {
	if q.isClosed() {
		return nil, errQueueClosed
	}
	var host *Window
	if parent != nil {
		w, ok := parent.(*Window)
		if !ok || w.queue != q {
			return nil, fmt.Errorf("webkit: parent window %T does not belong to this queue", parent)
		}
		if w.isDestroyed() {
			return nil, fmt.Errorf("webkit: parent window %d destroyed", w.id)
		}
		host = w
	}

	var (
		v   *View
		err error
	)
	q.driver.invoke(func() { v, err = newView(q, id, spec, host) })
	if err != nil {
		return nil, err
	}
	q.views[id] = v
	return v, nil
}

// Monitors lists the monitors of the default display. GTK4 has no notion of
// a primary monitor; the first one is reported as primary.
func (q *Queue) Monitors() []port.Monitor {
	var out []port.Monitor
	q.driver.invoke(func() {
		display := gdk.DisplayGetDefault()
		if display == nil {
			return
		}
		list := display.Monitors()
		for i := uint(0); i < list.NItems(); i++ {
			obj := list.Item(i)
			if obj == nil {
				continue
			}
			mon, ok := obj.Cast().(*gdk.Monitor)
			if !ok {
				continue
			}
			geo := mon.Geometry()
			name := mon.Connector()
			if name == "" {
				name = mon.Model()
			}
			out = append(out, port.Monitor{
				Name:        name,
				Bounds:      port.Rect{X: geo.X(), Y: geo.Y(), Width: geo.Width(), Height: geo.Height()},
				ScaleFactor: float64(mon.ScaleFactor()),
				Primary:     len(out) == 0,
			})
		}
	})
	return out
}

// Close destroys whatever is still alive and detaches the queue from the driver.
func (q *Queue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	q.events = nil
	q.mu.Unlock()

	q.driver.invoke(func() {
		for _, v := range q.views {
			v.destroyOnThread()
		}
		for _, w := range q.windows {
			w.destroyOnThread()
		}
	})
	q.views = nil
	q.windows = nil
	q.driver.forget(q)
	return nil
}

func (q *Queue) isClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}
