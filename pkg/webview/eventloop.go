package webview

import (
	"context"
	"fmt"
	"runtime"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bnema/webloop/internal/application/port"
	"github.com/bnema/webloop/internal/infrastructure/drivers"
	"github.com/bnema/webloop/internal/ui/mainloop"
	"github.com/rs/zerolog"
)

// ControlFlow selects how Run waits between iterations.
type ControlFlow int

const (
	// ControlWait sleeps until the queue is woken, or WaitInterval elapses when set.
	ControlWait ControlFlow = iota
	// ControlPoll iterates continuously, yielding briefly when idle.
	ControlPoll
	// ControlWaitUntil sleeps a full WaitInterval between iterations.
	ControlWaitUntil
)

// String returns a human-readable representation of the control flow.
func (c ControlFlow) String() string {
	switch c {
	case ControlPoll:
		return "poll"
	case ControlWaitUntil:
		return "wait-until"
	default:
		return "wait"
	}
}

// ParseControlFlow maps "wait", "poll" and "wait-until" to a ControlFlow.
func ParseControlFlow(s string) (ControlFlow, error) {
	switch s {
	case "", "wait":
		return ControlWait, nil
	case "poll":
		return ControlPoll, nil
	case "wait-until", "wait_until":
		return ControlWaitUntil, nil
	default:
		return ControlWait, fmt.Errorf("unknown control flow %q", s)
	}
}

// LoopState is the lifecycle state of an event loop.
type LoopState int32

const (
	LoopIdle LoopState = iota
	LoopRunning
	LoopExited
)

const (
	defaultMaxBatch     = 64
	defaultWaitInterval = 10 * time.Millisecond
	pollYield           = time.Millisecond
	cooperativePoll     = 2 * time.Millisecond
)

type options struct {
	driver       port.Driver
	driverName   string
	logger       zerolog.Logger
	controlFlow  ControlFlow
	waitInterval time.Duration
	keepAlive    bool
	maxBatch     int
}

// Option configures an EventLoop.
type Option func(*options)

// WithDriver sets the native driver explicitly.
func WithDriver(d port.Driver) Option {
	return func(o *options) { o.driver = d }
}

// WithDriverName resolves the driver by name: "auto", "headless" or "webkit".
func WithDriverName(name string) Option {
	return func(o *options) { o.driverName = name }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

func WithControlFlow(flow ControlFlow) Option {
	return func(o *options) { o.controlFlow = flow }
}

// WithWaitInterval bounds how long Run sleeps without being woken. Zero disables the bound.
func WithWaitInterval(d time.Duration) Option {
	return func(o *options) { o.waitInterval = d }
}

// WithKeepAlive keeps the loop running after its last top-level surface closed.
func WithKeepAlive(keep bool) Option {
	return func(o *options) { o.keepAlive = keep }
}

// WithMaxBatch caps the host tasks and native events handled by one iteration.
func WithMaxBatch(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxBatch = n
		}
	}
}

type task struct {
	run   func()
	abort func(error)
}

var loopCounter atomic.Uint64

// EventLoop owns one native UI message queue.
//
// At most one goroutine pumps a loop at a time; the pump token is taken by
// Run, RunIteration, and by goroutines waiting on a request while nobody
// else pumps. Independent loops pump concurrently.
type EventLoop struct {
	id     uint64
	opts   options
	driver port.Driver
	queue  port.Queue
	logger zerolog.Logger

	pumping  atomic.Bool
	running  atomic.Bool
	state    atomic.Int32
	exitReq  atomic.Bool
	exitCode atomic.Int32

	dead     chan struct{}
	deadOnce sync.Once
	stopped  chan struct{}
	tornDown bool // guarded by the pump token

	mu         sync.Mutex
	tasks      []task
	windows    map[port.WindowID]*Window
	views      map[port.ViewID]*WebView
	hadSurface bool

	handlersMu sync.RWMutex
	handlers   []func(Event)

	dispatch *dispatcher
	bounds   *mainloop.Coalescer
}

// NewEventLoop creates an explicitly owned event loop and its native queue.
func NewEventLoop(opts ...Option) (*EventLoop, error) {
	o := options{
		driverName:   drivers.Auto,
		logger:       zerolog.Nop(),
		waitInterval: defaultWaitInterval,
		maxBatch:     defaultMaxBatch,
	}
	for _, opt := range opts {
		opt(&o)
	}

	driver := o.driver
	if driver == nil {
		d, err := drivers.Resolve(o.driverName, o.logger)
		if err != nil {
			return nil, fmt.Errorf("resolve driver: %w", err)
		}
		driver = d
	}

	l := &EventLoop{
		id:      loopCounter.Add(1),
		opts:    o,
		driver:  driver,
		dead:    make(chan struct{}),
		stopped: make(chan struct{}),
		windows: make(map[port.WindowID]*Window),
		views:   make(map[port.ViewID]*WebView),
	}
	l.logger = o.logger.With().
		Str("component", "eventloop").
		Uint64("loop_id", l.id).
		Str("driver", driver.Name()).
		Logger()

	queue, err := driver.NewQueue(&loopSink{loop: l})
	if err != nil {
		return nil, fmt.Errorf("create native queue: %w", err)
	}
	l.queue = queue
	l.dispatch = newDispatcher(l.logger)
	l.bounds = mainloop.NewCoalescer(func(fn func()) bool {
		return l.post(task{run: fn, abort: func(error) {}}) == nil
	})

	l.logger.Debug().Str("control_flow", o.controlFlow.String()).Msg("event loop created")
	return l, nil
}

// ID returns the process-unique id of the loop.
func (l *EventLoop) ID() uint64 {
	return l.id
}

// Driver returns the name of the native driver backing the loop.
func (l *EventLoop) Driver() string {
	return l.driver.Name()
}

// State returns the lifecycle state of the loop.
func (l *EventLoop) State() LoopState {
	return LoopState(l.state.Load())
}

// ExitCode returns the code recorded by ExitWithCode.
func (l *EventLoop) ExitCode() int {
	return int(l.exitCode.Load())
}

// Done is closed once the loop has exited and released its native queue.
func (l *EventLoop) Done() <-chan struct{} {
	return l.stopped
}

// OnEvent registers an application event handler. Handlers run on the
// loop's dispatcher, in registration order.
func (l *EventLoop) OnEvent(fn func(Event)) {
	if fn == nil {
		return
	}
	l.handlersMu.Lock()
	l.handlers = append(l.handlers, fn)
	l.handlersMu.Unlock()
}

// Windows returns the live windows of the loop.
func (l *EventLoop) Windows() []*Window {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*Window, 0, len(l.windows))
	for _, w := range l.windows {
		out = append(out, w)
	}
	return out
}

// WebViews returns the live webviews of the loop, attached and standalone.
func (l *EventLoop) WebViews() []*WebView {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*WebView, 0, len(l.views))
	for _, v := range l.views {
		out = append(out, v)
	}
	return out
}

// Monitor describes a connected display.
type Monitor = port.Monitor

// Monitors lists the displays known to the native driver.
func (l *EventLoop) Monitors(ctx context.Context) ([]Monitor, error) {
	var monitors []Monitor
	err := l.call(ctx, func() error {
		monitors = l.queue.Monitors()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return monitors, nil
}

// PrimaryMonitor returns the primary display. ok is false when the driver
// reports no display.
func (l *EventLoop) PrimaryMonitor(ctx context.Context) (mon Monitor, ok bool, err error) {
	monitors, err := l.Monitors(ctx)
	if err != nil {
		return Monitor{}, false, err
	}
	for _, m := range monitors {
		if m.Primary {
			return m, true, nil
		}
	}
	if len(monitors) > 0 {
		return monitors[0], true, nil
	}
	return Monitor{}, false, nil
}

// Run pumps the loop until Exit, the last surface closing, or ctx cancellation.
// It returns nil when the loop was exited, including when Exit ran before Run.
// Listeners and event handlers queued before the exit have run when it returns.
func (l *EventLoop) Run(ctx context.Context) error {
	if l.exitReq.Load() {
		l.finish()
		l.dispatch.wait()
		return nil
	}
	if !l.running.CompareAndSwap(false, true) {
		return ErrConcurrentPump
	}
	defer l.running.Store(false)

	l.state.CompareAndSwap(int32(LoopIdle), int32(LoopRunning))
	l.logger.Info().Msg("event loop running")

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	wait := func(d time.Duration, wakeable bool) {
		var woken <-chan struct{}
		if wakeable {
			woken = l.queue.Woken()
		}
		var tick <-chan time.Time
		if d > 0 {
			if timer == nil {
				timer = time.NewTimer(d)
			} else {
				timer.Reset(d)
			}
			tick = timer.C
		}
		select {
		case <-woken:
		case <-tick:
		case <-l.dead:
		case <-ctx.Done():
		}
		if timer != nil && !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
	}

	var runErr error
	for {
		if err := ctx.Err(); err != nil {
			runErr = err
			l.Exit()
			break
		}
		if l.exitReq.Load() {
			break
		}

		n := l.tryPump()
		switch {
		case n < 0:
			// A waiting caller holds the token; give it the iteration.
			wait(cooperativePoll, true)
		case l.opts.controlFlow == ControlPoll:
			if n == 0 {
				wait(pollYield, true)
			} else {
				runtime.Gosched()
			}
		case l.opts.controlFlow == ControlWaitUntil:
			wait(l.opts.waitInterval, false)
		case n == 0:
			wait(l.opts.waitInterval, true)
		}
	}

	l.finish()
	l.dispatch.wait()
	l.logger.Info().Int("exit_code", l.ExitCode()).Msg("event loop stopped")
	return runErr
}

// RunIteration performs one bounded, non-blocking pump: it runs the host
// tasks queued before the call (at most MaxBatch), then dispatches at most
// MaxBatch pending native events. Work queued meanwhile runs on the next call.
func (l *EventLoop) RunIteration() (int, error) {
	if l.exitReq.Load() || l.State() == LoopExited {
		l.finish()
		return 0, goneErr("event loop", l.id)
	}
	if !l.pumping.CompareAndSwap(false, true) {
		return 0, ErrConcurrentPump
	}
	defer l.pumping.Store(false)

	l.state.CompareAndSwap(int32(LoopIdle), int32(LoopRunning))
	return l.iterate(), nil
}

// Exit asks the loop to stop. It is idempotent and safe from any goroutine.
// Outstanding requests against the loop's windows and webviews fail with ErrAborted.
func (l *EventLoop) Exit() {
	l.requestExit()
	l.queue.Wake()
	if l.pumping.CompareAndSwap(false, true) {
		l.teardown()
		l.pumping.Store(false)
	}
}

// ExitWithCode records code and exits the loop.
func (l *EventLoop) ExitWithCode(code int) {
	l.exitCode.Store(int32(code))
	l.Exit()
}

func (l *EventLoop) requestExit() {
	if !l.exitReq.CompareAndSwap(false, true) {
		return
	}
	l.deadOnce.Do(func() { close(l.dead) })

	l.mu.Lock()
	tasks := l.tasks
	l.tasks = nil
	views := make([]*WebView, 0, len(l.views))
	for _, v := range l.views {
		views = append(views, v)
	}
	l.mu.Unlock()

	for _, v := range views {
		v.abort()
	}
	for _, t := range tasks {
		t.abort(abortedErr("event loop", l.id))
	}
	l.logger.Debug().Int("aborted_tasks", len(tasks)).Msg("exit requested")
}

// finish waits for the token and tears the loop down if nobody did.
func (l *EventLoop) finish() {
	for {
		select {
		case <-l.stopped:
			return
		default:
		}
		if l.pumping.CompareAndSwap(false, true) {
			l.teardown()
			l.pumping.Store(false)
			return
		}
		time.Sleep(cooperativePoll)
	}
}

// tryPump runs one iteration if the token is free. It returns -1 when busy.
func (l *EventLoop) tryPump() int {
	if !l.pumping.CompareAndSwap(false, true) {
		return -1
	}
	defer l.pumping.Store(false)
	return l.iterate()
}

// iterate must be called with the pump token held.
func (l *EventLoop) iterate() int {
	if l.tornDown {
		return 0
	}
	if l.exitReq.Load() {
		l.teardown()
		return 0
	}

	l.mu.Lock()
	n := min(len(l.tasks), l.opts.maxBatch)
	batch := l.tasks[:n:n]
	l.tasks = l.tasks[n:]
	more := len(l.tasks) > 0
	if !more {
		l.tasks = nil
	}
	l.mu.Unlock()

	for _, t := range batch {
		l.runTask(t)
	}
	if more {
		l.queue.Wake()
	}

	dispatched := len(batch) + l.queue.Iterate(l.opts.maxBatch)

	if l.exitReq.Load() {
		l.teardown()
	}
	return dispatched
}

func (l *EventLoop) runTask(t task) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error().Interface("panic", r).Msg("native task panicked")
			t.abort(fmt.Errorf("webview: native task panicked: %v", r))
		}
	}()
	t.run()
}

// teardown must be called with the pump token held.
func (l *EventLoop) teardown() {
	if l.tornDown {
		return
	}
	l.tornDown = true
	l.requestExit()
	l.emit(Event{Type: EventApplicationCloseRequested})

	l.mu.Lock()
	windows := make([]*Window, 0, len(l.windows))
	for _, w := range l.windows {
		windows = append(windows, w)
	}
	views := make([]*WebView, 0, len(l.views))
	for _, v := range l.views {
		if v.window == nil {
			views = append(views, v)
		}
	}
	l.mu.Unlock()

	for _, v := range views {
		v.destroyNative(true)
	}
	for _, w := range windows {
		w.destroyNative(true)
	}

	l.bounds.Destroy()
	if err := l.queue.Close(); err != nil {
		l.logger.Warn().Err(err).Msg("failed to close native queue")
	}

	l.dispatch.close()
	l.state.Store(int32(LoopExited))
	close(l.stopped)
	l.logger.Debug().Msg("event loop torn down")
}

// post queues t for the pump. It fails once the loop exited.
func (l *EventLoop) post(t task) error {
	l.mu.Lock()
	if l.exitReq.Load() {
		l.mu.Unlock()
		return abortedErr("event loop", l.id)
	}
	l.tasks = append(l.tasks, t)
	l.mu.Unlock()
	l.queue.Wake()
	return nil
}

// call runs fn on the pump and waits for its error.
func (l *EventLoop) call(ctx context.Context, fn func() error) error {
	done := make(chan error, 1)
	t := task{
		run: func() { done <- fn() },
		abort: func(err error) {
			select {
			case done <- err:
			default:
			}
		},
	}
	if err := l.post(t); err != nil {
		return err
	}
	err, waitErr := await(ctx, l, done)
	if waitErr != nil {
		return waitErr
	}
	return err
}

// await waits for ch, pumping the loop itself whenever the token is free so
// that a host driving the loop from this same goroutine still progresses.
func await[T any](ctx context.Context, l *EventLoop, ch <-chan T) (T, error) {
	var zero T
	timer := time.NewTimer(cooperativePoll)
	defer timer.Stop()

	for {
		select {
		case v := <-ch:
			return v, nil
		default:
		}

		if l.tryPump() > 0 {
			continue
		}

		timer.Reset(cooperativePoll)
		select {
		case v := <-ch:
			return v, nil
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-l.stopped:
			select {
			case v := <-ch:
				return v, nil
			default:
			}
			return zero, abortedErr("event loop", l.id)
		case <-timer.C:
		}
	}
}

// emit delivers ev to the event handlers on the dispatcher.
func (l *EventLoop) emit(ev Event) {
	l.handlersMu.RLock()
	handlers := slices.Clone(l.handlers)
	l.handlersMu.RUnlock()
	if len(handlers) == 0 {
		return
	}
	l.dispatch.submit(func() {
		for _, h := range handlers {
			l.safeHandle(h, ev)
		}
	})
}

func (l *EventLoop) safeHandle(h func(Event), ev Event) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error().Interface("panic", r).Str("event", ev.Type.String()).Msg("event handler panicked")
		}
	}()
	h(ev)
}

// surfaceClosed exits the loop when no top-level surface remains and keep-alive is off.
// Called on the pump.
func (l *EventLoop) surfaceClosed() {
	if l.opts.keepAlive {
		return
	}
	l.mu.Lock()
	remaining := len(l.windows)
	for _, v := range l.views {
		if v.window == nil {
			remaining++
		}
	}
	had := l.hadSurface
	l.mu.Unlock()

	if had && remaining == 0 {
		l.logger.Info().Msg("last surface closed, exiting")
		l.requestExit()
	}
}
