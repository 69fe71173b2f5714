package pool

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/halcyonlabs/claimd/errors"
)

func TestAcquireWithinCapacity(t *testing.T) {
	p := New(3, nil)
	defer p.Close()

	ctx := context.Background()
	var slots []*Slot
	for i := 0; i < 3; i++ {
		s, err := p.Acquire(ctx)
		if err != nil {
			t.Fatalf("acquire %d failed: %v", i, err)
		}
		slots = append(slots, s)
	}

	stats := p.Stats()
	if stats.InUse != 3 {
		t.Errorf("expected 3 in use, got %d", stats.InUse)
	}

	for _, s := range slots {
		s.Release()
	}
	if got := p.Stats().InUse; got != 0 {
		t.Errorf("expected 0 in use after release, got %d", got)
	}
}

func TestGrantsNeverExceedCapacity(t *testing.T) {
	const capacity = 2
	const callers = 10

	p := New(capacity, nil)
	defer p.Close()

	var concurrent atomic.Int32
	var peak atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := p.Acquire(context.Background())
			if err != nil {
				t.Errorf("acquire failed: %v", err)
				return
			}
			n := concurrent.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			concurrent.Add(-1)
			s.Release()
		}()
	}
	wg.Wait()

	if got := peak.Load(); got > capacity {
		t.Errorf("observed %d concurrent holders, capacity is %d", got, capacity)
	}
	if got := p.Stats().InUse; got != 0 {
		t.Errorf("slots leaked: %d still in use", got)
	}
}

func TestFIFOWakeupOrder(t *testing.T) {
	p := New(1, nil)
	defer p.Close()

	first, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("initial acquire failed: %v", err)
	}

	const waiters = 5
	order := make(chan int, waiters)
	var started sync.WaitGroup
	var done sync.WaitGroup

	for i := 0; i < waiters; i++ {
		started.Add(1)
		done.Add(1)
		idx := i
		go func() {
			defer done.Done()
			// Signal entry just before the blocking acquire. The sleep
			// below gives each goroutine time to join the wait queue
			// before the next one starts.
			started.Done()
			s, err := p.Acquire(context.Background())
			if err != nil {
				t.Errorf("waiter %d acquire failed: %v", idx, err)
				return
			}
			order <- idx
			s.Release()
		}()
		started.Wait()
		time.Sleep(20 * time.Millisecond)
	}

	first.Release()
	done.Wait()
	close(order)

	want := 0
	for got := range order {
		if got != want {
			t.Fatalf("FIFO violated: waiter %d woke before waiter %d", got, want)
		}
		want++
	}
	if want != waiters {
		t.Errorf("expected %d wakeups, got %d", waiters, want)
	}
}

func TestAcquireAfterCloseFails(t *testing.T) {
	p := New(1, nil)
	p.Close()

	_, err := p.Acquire(context.Background())
	if !errors.Is(err, errors.ErrPoolClosed) {
		t.Errorf("expected ErrPoolClosed, got %v", err)
	}
}

func TestCloseWakesPendingAcquires(t *testing.T) {
	p := New(1, nil)

	s, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}

	errCh := make(chan error, 1)
	go func() {
		_, err := p.Acquire(context.Background())
		errCh <- err
	}()

	// Let the goroutine reach the wait queue
	time.Sleep(20 * time.Millisecond)
	p.Close()

	select {
	case err := <-errCh:
		if !errors.Is(err, errors.ErrPoolClosed) {
			t.Errorf("expected ErrPoolClosed for pending acquire, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("pending acquire not woken by Close")
	}

	// Slot granted before Close is still releasable
	s.Release()
}

func TestContextCancelRemovesWaiter(t *testing.T) {
	p := New(1, nil)
	defer p.Close()

	s, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := p.Acquire(ctx)
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("cancelled acquire did not return")
	}

	if got := p.Stats().Waiting; got != 0 {
		t.Errorf("cancelled waiter still queued: %d waiting", got)
	}

	// Releasing the held slot must not hand it to the cancelled waiter
	s.Release()
	if got := p.Stats().InUse; got != 0 {
		t.Errorf("slot leaked to cancelled waiter: %d in use", got)
	}
}

func TestDoubleReleaseIsNoOp(t *testing.T) {
	p := New(2, nil)
	defer p.Close()

	s, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}

	s.Release()
	s.Release()

	if got := p.Stats().InUse; got != 0 {
		t.Errorf("expected 0 in use after double release, got %d", got)
	}
}
