package webview

import (
	"sync"
)

type result[T any] struct {
	value T
	err   error
}

// pendingSet tracks requests issued to the native side that have not completed yet.
// Each request resolves exactly once: by the native completion, by the owner
// being destroyed, or by the loop exiting.
type pendingSet[T any] struct {
	mu     sync.Mutex
	next   uint64
	items  map[uint64]chan result[T]
	closed error
}

func newPendingSet[T any]() *pendingSet[T] {
	return &pendingSet[T]{items: make(map[uint64]chan result[T])}
}

// add registers a request. It fails with the close error once the set is closed.
func (p *pendingSet[T]) add() (uint64, <-chan result[T], error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed != nil {
		return 0, nil, p.closed
	}
	p.next++
	ch := make(chan result[T], 1)
	p.items[p.next] = ch
	return p.next, ch, nil
}

func (p *pendingSet[T]) resolve(id uint64, value T, err error) {
	p.mu.Lock()
	ch, ok := p.items[id]
	delete(p.items, id)
	p.mu.Unlock()
	if ok {
		ch <- result[T]{value: value, err: err}
	}
}

func (p *pendingSet[T]) fail(id uint64, err error) {
	var zero T
	p.resolve(id, zero, err)
}

// drop forgets a request whose caller stopped waiting.
func (p *pendingSet[T]) drop(id uint64) {
	p.mu.Lock()
	delete(p.items, id)
	p.mu.Unlock()
}

// close fails every outstanding request with err and rejects new ones.
func (p *pendingSet[T]) close(err error) {
	p.mu.Lock()
	if p.closed != nil {
		p.mu.Unlock()
		return
	}
	p.closed = err
	items := p.items
	p.items = make(map[uint64]chan result[T])
	p.mu.Unlock()

	var zero T
	for _, ch := range items {
		ch <- result[T]{value: zero, err: err}
	}
}

func (p *pendingSet[T]) len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.items)
}
