// Package pool provides a fixed-capacity FIFO semaphore over automation
// session slots. Each slot grants permission to run one concurrent
// interactive browsing session, the scarce resource of the claim system.
package pool

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/halcyonlabs/claimd/errors"
	"github.com/halcyonlabs/claimd/logger"
)

// DefaultCapacity is the default number of concurrent automation sessions.
const DefaultCapacity = 6

// Pool is a bounded semaphore with strict FIFO wakeups. Granted slots never
// exceed capacity; waiters are granted slots in arrival order. The wait queue
// is unbounded: callers are trusted to bound fan-out at a higher layer, and a
// runaway queue shows up in Stats rather than as a hard failure.
type Pool struct {
	mu       sync.Mutex
	capacity int
	inUse    int
	waiters  []*waiter
	closed   bool
	log      *zap.SugaredLogger
}

// waiter is one pending Acquire. The slot channel has capacity 1 so a
// releasing goroutine never blocks handing a slot over.
type waiter struct {
	slot chan *Slot
}

// Slot is an ephemeral token representing one unit of automation capacity.
// It is owned exclusively by the job holding it and must be released on every
// exit path. Release is safe to call more than once; only the first call
// returns capacity.
type Slot struct {
	pool    *Pool
	release sync.Once
}

// Release returns the slot's capacity to the pool, waking the
// longest-waiting pending Acquire if any.
func (s *Slot) Release() {
	s.release.Do(func() {
		s.pool.handBack()
	})
}

// New creates a pool with the given capacity. Capacity <= 0 falls back to
// DefaultCapacity.
func New(capacity int, log *zap.SugaredLogger) *Pool {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Pool{
		capacity: capacity,
		log:      logger.AddPoolSymbol(log),
	}
}

// Capacity returns the fixed slot count.
func (p *Pool) Capacity() int {
	return p.capacity
}

// Acquire blocks until a slot is free, the context is done, or the pool is
// closed. On success the caller owns the returned slot and must call
// Release exactly once (extra calls are no-ops).
func (p *Pool) Acquire(ctx context.Context) (*Slot, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, errors.ErrPoolClosed
	}
	if p.inUse < p.capacity {
		p.inUse++
		p.mu.Unlock()
		return &Slot{pool: p}, nil
	}

	w := &waiter{slot: make(chan *Slot, 1)}
	p.waiters = append(p.waiters, w)
	p.mu.Unlock()

	select {
	case s, ok := <-w.slot:
		if !ok {
			return nil, errors.ErrPoolClosed
		}
		return s, nil
	case <-ctx.Done():
		// Remove ourselves from the queue. A release may have handed us a
		// slot concurrently; if so, put it back so it is not leaked.
		p.mu.Lock()
		removed := false
		for i, q := range p.waiters {
			if q == w {
				p.waiters = append(p.waiters[:i], p.waiters[i+1:]...)
				removed = true
				break
			}
		}
		p.mu.Unlock()

		if !removed {
			select {
			case s, ok := <-w.slot:
				if ok {
					s.Release()
				}
			default:
			}
		}
		return nil, ctx.Err()
	}
}

// handBack returns one unit of capacity. If a waiter is queued the slot is
// handed directly over so capacity accounting never dips, preserving FIFO
// order.
func (p *Pool) handBack() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		p.inUse--
		return
	}

	if len(p.waiters) > 0 {
		w := p.waiters[0]
		p.waiters = p.waiters[1:]
		w.slot <- &Slot{pool: p} // buffered, never blocks
		return
	}

	p.inUse--
}

// Close shuts the pool down. Pending and future acquires fail with
// ErrPoolClosed. Slots already granted remain valid and may still be
// released.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	waiters := p.waiters
	p.waiters = nil
	p.mu.Unlock()

	for _, w := range waiters {
		close(w.slot)
	}

	if len(waiters) > 0 {
		p.log.Warnw("Pool closed with pending acquires", "pending", len(waiters))
	}
}

// Stats reports current slot accounting.
type Stats struct {
	Capacity int `json:"capacity"`
	InUse    int `json:"in_use"`
	Waiting  int `json:"waiting"`
}

// Stats returns a snapshot of slot usage.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		Capacity: p.capacity,
		InUse:    p.inUse,
		Waiting:  len(p.waiters),
	}
}
