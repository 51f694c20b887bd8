package webview

import (
	"sync"

	"github.com/rs/zerolog"
)

// dispatcher is the host-side scheduling context of a loop. IPC listeners and
// event handlers run here, in FIFO order, never inside native dispatch.
type dispatcher struct {
	mu     sync.Mutex
	queue  []func()
	closed bool
	signal chan struct{}
	done   chan struct{}
	logger zerolog.Logger
}

func newDispatcher(logger zerolog.Logger) *dispatcher {
	d := &dispatcher{
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
		logger: logger,
	}
	go d.run()
	return d
}

// submit queues fn. It reports false once the dispatcher is closed.
func (d *dispatcher) submit(fn func()) bool {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return false
	}
	d.queue = append(d.queue, fn)
	d.mu.Unlock()

	select {
	case d.signal <- struct{}{}:
	default:
	}
	return true
}

// close stops accepting work; already queued work still runs.
func (d *dispatcher) close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.mu.Unlock()

	select {
	case d.signal <- struct{}{}:
	default:
	}
}

// wait blocks until every queued function ran after close.
func (d *dispatcher) wait() {
	<-d.done
}

func (d *dispatcher) run() {
	defer close(d.done)
	for {
		d.mu.Lock()
		batch := d.queue
		d.queue = nil
		closed := d.closed
		d.mu.Unlock()

		for _, fn := range batch {
			d.invoke(fn)
		}
		if len(batch) > 0 {
			continue
		}
		if closed {
			return
		}
		<-d.signal
	}
}

func (d *dispatcher) invoke(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error().Interface("panic", r).Msg("dispatched callback panicked")
		}
	}()
	fn()
}
