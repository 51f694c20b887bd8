//go:build webkit_cgo

package webkit

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/bnema/webloop/internal/application/port"
	"github.com/diamondburned/gotk4/pkg/glib/v2"
	"github.com/diamondburned/gotk4/pkg/gtk/v4"
	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"
)

// Available reports whether the driver was compiled in.
const Available = true

// pendingPoll is how often the GTK thread checks the default main context
// for sources that need a pump.
const pendingPoll = 8 * time.Millisecond

var (
	shared     *Driver
	sharedErr  error
	sharedOnce sync.Once
)

// Driver owns the GTK thread. GTK is process-wide, so every loop shares one
// Driver; each loop gets its own Queue and only sees the events of the
// surfaces it created.
type Driver struct {
	logger zerolog.Logger
	calls  chan func()
	tid    int

	mu     sync.Mutex
	queues map[*Queue]struct{}
}

var _ port.Driver = (*Driver)(nil)

// New starts the GTK thread on first use and returns the process driver.
func New(logger zerolog.Logger) (port.Driver, error) {
	sharedOnce.Do(func() {
		shared, sharedErr = start(logger.With().Str("component", "webkit").Logger())
	})
	if sharedErr != nil {
		return nil, sharedErr
	}
	return shared, nil
}

func start(logger zerolog.Logger) (*Driver, error) {
	d := &Driver{
		logger: logger,
		calls:  make(chan func()),
		queues: make(map[*Queue]struct{}),
	}
	ready := make(chan error, 1)
	go d.thread(ready)
	if err := <-ready; err != nil {
		return nil, err
	}
	logger.Debug().Int("tid", d.tid).Msg("gtk thread started")
	return d, nil
}

// thread is the only goroutine that touches GTK. It never returns.
func (d *Driver) thread(ready chan<- error) {
	runtime.LockOSThread()
	d.tid = unix.Gettid()
	if !gtk.InitCheck() {
		ready <- fmt.Errorf("%w: gtk could not open a display", port.ErrDriverUnavailable)
		return
	}
	ready <- nil

	ticker := time.NewTicker(pendingPoll)
	defer ticker.Stop()
	ctx := glib.MainContextDefault()
	for {
		select {
		case fn := <-d.calls:
			fn()
		case <-ticker.C:
			if ctx.Pending() {
				d.wakeAll()
			}
		}
	}
}

// invoke runs fn on the GTK thread and waits for it. A panic in fn is
// re-raised on the calling goroutine.
func (d *Driver) invoke(fn func()) {
	if unix.Gettid() == d.tid {
		fn()
		return
	}
	var recovered any
	done := make(chan struct{})
	d.calls <- func() {
		defer close(done)
		defer func() { recovered = recover() }()
		fn()
	}
	<-done
	if recovered != nil {
		panic(recovered)
	}
}

func (d *Driver) wakeAll() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for q := range d.queues {
		q.Wake()
	}
}

// Name returns the registry name of the driver.
func (d *Driver) Name() string { return Name }

// NewQueue creates the queue of one event loop.
func (d *Driver) NewQueue(sink port.EventSink) (port.Queue, error) {
	if sink == nil {
		return nil, errors.New("webkit: nil event sink")
	}
	q := newQueue(d, sink)
	d.mu.Lock()
	d.queues[q] = struct{}{}
	d.mu.Unlock()
	return q, nil
}

func (d *Driver) forget(q *Queue) {
	d.mu.Lock()
	delete(d.queues, q)
	d.mu.Unlock()
}
