package scheduler

import (
	"sort"
	"sync"
	"time"
)

// Manual is a Scheduler that only fires when told to. Tests use it to drive
// ticks synchronously; the simulate command uses it to run faster than real
// time.
type Manual struct {
	mu        sync.Mutex
	next      Handle
	jobs      map[Handle]manualJob
	cancelled []func()
}

type manualJob struct {
	fn    func()
	every time.Duration
}

func NewManual() *Manual {
	return &Manual{jobs: make(map[Handle]manualJob)}
}

func (m *Manual) Schedule(fn func(), every time.Duration) Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	m.jobs[m.next] = manualJob{fn: fn, every: every}
	return m.next
}

func (m *Manual) Cancel(h Handle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job, ok := m.jobs[h]; ok {
		m.cancelled = append(m.cancelled, job.fn)
		delete(m.jobs, h)
	}
}

// Fire runs every active callback once, in handle order. Callbacks run
// without the scheduler lock held so they may cancel themselves.
func (m *Manual) Fire() {
	for _, fn := range m.active() {
		fn()
	}
}

// Advance fires n times.
func (m *Manual) Advance(n int) {
	for i := 0; i < n; i++ {
		m.Fire()
	}
}

// Active returns the number of live handles.
func (m *Manual) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.jobs)
}

// Interval returns the interval h was scheduled with.
func (m *Manual) Interval(h Handle) (time.Duration, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[h]
	return job.every, ok
}

// Cancelled returns the callbacks of every cancelled handle, oldest first,
// so a test can simulate a timer that fires after cancellation.
func (m *Manual) Cancelled() []func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]func(), len(m.cancelled))
	copy(out, m.cancelled)
	return out
}

func (m *Manual) active() []func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	handles := make([]Handle, 0, len(m.jobs))
	for h := range m.jobs {
		handles = append(handles, h)
	}
	sort.Slice(handles, func(i, j int) bool { return handles[i] < handles[j] })
	fns := make([]func(), len(handles))
	for i, h := range handles {
		fns[i] = m.jobs[h].fn
	}
	return fns
}
