package mainloop

import "sync"

// PostFunc schedules fn on the loop. It reports false when the loop no
// longer accepts work.
type PostFunc func(fn func()) bool

// Coalescer merges bursts of same-key loop tasks: only the latest callback
// posted for a key before the loop runs it is executed.
type Coalescer struct {
	mu        sync.Mutex
	pending   map[string]bool
	callbacks map[string]func()
	post      PostFunc
	merged    uint64
	destroyed bool
}

func NewCoalescer(post PostFunc) *Coalescer {
	if post == nil {
		panic("mainloop.NewCoalescer: post function cannot be nil")
	}

	return &Coalescer{
		pending:   make(map[string]bool),
		callbacks: make(map[string]func()),
		post:      post,
	}
}

// Post records fn as the latest callback for key and schedules a run unless
// one is already scheduled.
func (c *Coalescer) Post(key string, fn func()) {
	if fn == nil || key == "" {
		return
	}

	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return
	}
	c.callbacks[key] = fn
	if c.pending[key] {
		c.merged++
		c.mu.Unlock()
		return
	}
	c.pending[key] = true
	post := c.post
	c.mu.Unlock()

	ok := post(func() {
		c.mu.Lock()
		if c.destroyed {
			delete(c.pending, key)
			delete(c.callbacks, key)
			c.mu.Unlock()
			return
		}
		fn := c.callbacks[key]
		delete(c.pending, key)
		delete(c.callbacks, key)
		c.mu.Unlock()

		if fn != nil {
			fn()
		}
	})
	if !ok {
		c.Cancel(key)
	}
}

// Cancel drops the callback recorded for key. A run already scheduled for
// key becomes a no-op.
func (c *Coalescer) Cancel(key string) {
	c.mu.Lock()
	delete(c.pending, key)
	delete(c.callbacks, key)
	c.mu.Unlock()
}

// Merged reports how many posts were folded into an already scheduled run.
func (c *Coalescer) Merged() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.merged
}

func (c *Coalescer) Destroy() {
	c.mu.Lock()
	c.destroyed = true
	c.pending = map[string]bool{}
	c.callbacks = map[string]func(){}
	c.mu.Unlock()
}
