// Package scheduler runs periodic callbacks behind a small interface so the
// monitoring engine can be driven by wall-clock tickers in production and
// stepped by hand in tests.
package scheduler

import (
	"sync"
	"time"
)

// Handle identifies one scheduled callback. The zero Handle is never issued.
type Handle uint64

// Scheduler invokes fn every interval until the returned handle is
// cancelled. Calls for a single handle never overlap.
type Scheduler interface {
	Schedule(fn func(), every time.Duration) Handle
	Cancel(h Handle)
}

// Ticker is the wall-clock Scheduler. Each handle gets its own goroutine
// and time.Ticker; a slow callback makes the ticker drop ticks rather than
// queue them.
type Ticker struct {
	mu     sync.Mutex
	next   Handle
	jobs   map[Handle]chan struct{}
	wg     sync.WaitGroup
	closed bool
}

func NewTicker() *Ticker {
	return &Ticker{jobs: make(map[Handle]chan struct{})}
}

func (t *Ticker) Schedule(fn func(), every time.Duration) Handle {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return 0
	}

	t.next++
	h := t.next
	done := make(chan struct{})
	t.jobs[h] = done

	t.wg.Add(1)
	go t.run(fn, every, done)
	return h
}

func (t *Ticker) run(fn func(), every time.Duration, done <-chan struct{}) {
	defer t.wg.Done()
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			// Cancel may have raced with the tick; prefer the cancellation.
			select {
			case <-done:
				return
			default:
			}
			fn()
		}
	}
}

// Cancel stops h. It does not wait for an in-flight callback, so it is safe
// to call from code that holds locks the callback also takes.
func (t *Ticker) Cancel(h Handle) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if done, ok := t.jobs[h]; ok {
		close(done)
		delete(t.jobs, h)
	}
}

// Active returns the number of live handles.
func (t *Ticker) Active() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.jobs)
}

// Close cancels every handle and waits for all callback goroutines to exit.
// Schedule returns the zero Handle afterwards.
func (t *Ticker) Close() {
	t.mu.Lock()
	t.closed = true
	for h, done := range t.jobs {
		close(done)
		delete(t.jobs, h)
	}
	t.mu.Unlock()
	t.wg.Wait()
}
