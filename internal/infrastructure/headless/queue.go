package headless

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/bnema/webloop/internal/application/port"
	"github.com/rs/zerolog"
)

var errQueueClosed = errors.New("headless: queue closed")

type timer struct {
	id   int64
	due  time.Time
	page *page
	fire func()
}

// Queue is the native message queue of one event loop.
//
// Native events are appended from any goroutine and only run inside
// Iterate. The window and view maps are pump-only.
type Queue struct {
	driver *Driver
	sink   port.EventSink
	logger zerolog.Logger
	wake   chan struct{}

	mu        sync.Mutex
	events    []func()
	timers    []*timer
	nextTimer int64
	closed    bool

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

// Iterate promotes due timers, then runs at most max pending events.
func (q *Queue) Iterate(max int) int {
	if max <= 0 {
		return 0
	}
	q.promoteTimers(time.Now())

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

		q.run(ev)
		dispatched++
	}

	q.mu.Lock()
	pending := len(q.events) > 0 && !q.closed
	q.mu.Unlock()
	if pending {
		q.Wake()
	}
	return dispatched
}

func (q *Queue) run(ev func()) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error().Interface("panic", r).Msg("native event panicked")
		}
	}()
	ev()
	for _, v := range q.views {
		if v.page != nil {
			v.page.settle()
		}
	}
}

func (q *Queue) Wake() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *Queue) Woken() <-chan struct{} {
	return q.wake
}

// enqueue appends a native event. It reports false once the queue is closed.
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

// schedule registers fire to run as an event once delay elapsed.
func (q *Queue) schedule(p *page, delay time.Duration, fire func()) int64 {
	if delay < 0 {
		delay = 0
	}
	q.mu.Lock()
	q.nextTimer++
	t := &timer{id: q.nextTimer, due: time.Now().Add(delay), page: p, fire: fire}
	q.timers = append(q.timers, t)
	q.mu.Unlock()

	time.AfterFunc(delay, q.Wake)
	return t.id
}

func (q *Queue) cancelTimer(id int64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, t := range q.timers {
		if t.id == id {
			q.timers = append(q.timers[:i], q.timers[i+1:]...)
			return
		}
	}
}

func (q *Queue) promoteTimers(now time.Time) {
	q.mu.Lock()
	var due []*timer
	kept := q.timers[:0]
	for _, t := range q.timers {
		if !t.due.After(now) {
			due = append(due, t)
		} else {
			kept = append(kept, t)
		}
	}
	q.timers = kept
	for _, t := range due {
		p, fire := t.page, t.fire
		q.events = append(q.events, func() {
			if p.active() {
				fire()
			}
		})
	}
	q.mu.Unlock()
}

func (q *Queue) CreateWindow(id port.WindowID, spec port.WindowSpec) (port.NativeWindow, error) {
	if q.isClosed() {
		return nil, errQueueClosed
	}
	w := newWindow(q, id, spec)
	q.windows[id] = w
	q.driver.trackWindow(id, q)
	q.logger.Debug().Uint64("window_id", uint64(id)).Msg("window created")
	return w, nil
}

func (q *Queue) CreateView(id port.ViewID, spec port.ViewSpec, parent port.NativeWindow) (port.NativeView, error) {
	if q.isClosed() {
		return nil, errQueueClosed
	}
	var host *Window
	if parent != nil {
		w, ok := parent.(*Window)
		if !ok || w.queue != q {
			return nil, fmt.Errorf("headless: parent window belongs to another driver")
		}
		if w.destroyed {
			return nil, fmt.Errorf("headless: parent window %d destroyed", w.id)
		}
		host = w
	}
	v := newView(q, id, spec, host)
	q.views[id] = v
	q.driver.trackView(id, q)
	q.logger.Debug().Uint64("webview_id", uint64(id)).Bool("attached", host != nil).Msg("webview created")
	return v, nil
}

// Close destroys what is left and drops pending events and timers.
func (q *Queue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	q.events = nil
	q.timers = nil
	q.mu.Unlock()

	for _, v := range q.views {
		v.Destroy()
	}
	for _, w := range q.windows {
		w.Destroy()
	}
	return nil
}

func (q *Queue) isClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Monitors returns the displays the driver simulates.
func (q *Queue) Monitors() []port.Monitor {
	return slices.Clone(q.driver.monitors)
}
