// Package health reports process resource usage and session fault state for
// the /api/health endpoint.
package health

import (
	"os"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/pcg-live/monitor/internal/session"
)

type Status string

const (
	StatusHealthy  Status = "healthy"
	StatusDegraded Status = "degraded"
)

// Process is a point-in-time view of this process.
type Process struct {
	PID        int32   `json:"pid"`
	CPUPercent float64 `json:"cpuPercent"`
	RSSBytes   uint64  `json:"rssBytes"`
	Threads    int32   `json:"threads"`
	Goroutines int     `json:"goroutines"`
}

type Report struct {
	Status          Status    `json:"status"`
	Uptime          string    `json:"uptime"`
	Process         *Process  `json:"process,omitempty"`
	ProcessError    string    `json:"processError,omitempty"`
	RunningSessions int       `json:"runningSessions"`
	FaultedSessions []string  `json:"faultedSessions,omitempty"`
	LastError       string    `json:"lastError,omitempty"`
	LastErrorAt     time.Time `json:"lastErrorAt,omitempty"`
}

// Tracker remembers which sessions were forced idle by a tick failure. A
// session counts as faulted until it is started again. Tracker is a
// monitor.Notifier.
type Tracker struct {
	started time.Time
	running func() int

	mu        sync.Mutex
	faulted   map[string]string
	lastErr   string
	lastErrAt time.Time
	proc      *process.Process
}

// NewTracker returns a tracker. running reports the number of ticking
// sessions; it may be nil.
func NewTracker(running func() int) *Tracker {
	if running == nil {
		running = func() int { return 0 }
	}
	return &Tracker{
		started: time.Now(),
		running: running,
		faulted: make(map[string]string),
	}
}

func (t *Tracker) Notify(ev session.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch ev.Type {
	case session.EventFault:
		t.faulted[ev.SessionID] = ev.Err
		t.lastErr = ev.Err
		t.lastErrAt = ev.At
	case session.EventStarted:
		delete(t.faulted, ev.SessionID)
	}
}

// Report collects the current health. Process statistics that cannot be
// read are reported in ProcessError without failing the report.
func (t *Tracker) Report() Report {
	r := Report{
		Status:          StatusHealthy,
		Uptime:          time.Since(t.started).Round(time.Second).String(),
		RunningSessions: t.running(),
	}

	t.mu.Lock()
	for id := range t.faulted {
		r.FaultedSessions = append(r.FaultedSessions, id)
	}
	r.LastError = t.lastErr
	r.LastErrorAt = t.lastErrAt
	t.mu.Unlock()

	if len(r.FaultedSessions) > 0 {
		r.Status = StatusDegraded
		sort.Strings(r.FaultedSessions)
	}

	p, err := t.sample()
	if err != nil {
		r.ProcessError = err.Error()
	} else {
		r.Process = p
	}
	return r
}

func (t *Tracker) sample() (*Process, error) {
	t.mu.Lock()
	if t.proc == nil {
		proc, err := process.NewProcess(int32(os.Getpid()))
		if err != nil {
			t.mu.Unlock()
			return nil, err
		}
		t.proc = proc
	}
	proc := t.proc
	t.mu.Unlock()

	p := &Process{PID: proc.Pid, Goroutines: runtime.NumGoroutine()}
	if cpu, err := proc.CPUPercent(); err == nil {
		p.CPUPercent = cpu
	}
	mem, err := proc.MemoryInfo()
	if err != nil {
		return nil, err
	}
	p.RSSBytes = mem.RSS
	if n, err := proc.NumThreads(); err == nil {
		p.Threads = n
	}
	return p, nil
}
