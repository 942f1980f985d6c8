package monitor

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/pcg-live/monitor/internal/classify"
	"github.com/pcg-live/monitor/internal/config"
	"github.com/pcg-live/monitor/internal/scheduler"
	"github.com/pcg-live/monitor/internal/session"
	"github.com/pcg-live/monitor/internal/signal"
	"github.com/pcg-live/monitor/internal/window"
)

type recorder struct {
	mu     sync.Mutex
	events []session.Event
	snaps  []*session.Snapshot
}

func (r *recorder) Notify(ev session.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) Publish(snap *session.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = append(r.snaps, snap)
}

func (r *recorder) keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Key
	}
	return out
}

func (r *recorder) last() session.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

// faultyGenerator fails (or panics) once the given tick is reached.
type faultyGenerator struct {
	signal.Generator
	failAt int
	panics bool
}

func (g faultyGenerator) NextAmplitude(tick int, rng signal.RandomSource) (float64, error) {
	if tick >= g.failAt {
		if g.panics {
			panic("sensor model exploded")
		}
		return 0, fmt.Errorf("%w: injected", signal.ErrGeneratorFault)
	}
	return g.Generator.NextAmplitude(tick, rng)
}

type panickingClassifier struct{}

func (panickingClassifier) Classify(classify.Input, signal.RandomSource) (session.Status, error) {
	var m map[string]int
	m["boom"]++
	return session.Normal, nil
}

func newTestSession(t *testing.T, opts ...Option) (*Session, *scheduler.Manual, *recorder) {
	t.Helper()
	sched := scheduler.NewManual()
	rec := &recorder{}
	opts = append([]Option{
		WithNotifier(rec),
		WithSink(rec),
		WithRandomSource(signal.NewRandomSource(1234)),
	}, opts...)
	s, err := New("patient", config.DefaultMonitor(), sched, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s, sched, rec
}

func TestNewSessionIsIdleAndPaused(t *testing.T) {
	s, sched, _ := newTestSession(t)

	snap := s.Snapshot()
	if s.RunState() != session.Idle {
		t.Errorf("RunState = %s, want idle", s.RunState())
	}
	if snap.Status != session.Paused || snap.HeartRate != 0 {
		t.Errorf("initial snapshot status=%s hr=%d, want paused/0", snap.Status, snap.HeartRate)
	}
	if len(snap.Samples) != 50 {
		t.Fatalf("initial samples = %d, want 50", len(snap.Samples))
	}
	if sched.Active() != 0 {
		t.Errorf("idle session holds %d scheduler handles", sched.Active())
	}
}

func TestNewRejectsInvalidCapacity(t *testing.T) {
	cfg := config.DefaultMonitor()
	cfg.Capacity = 0
	_, err := New("bad", cfg, scheduler.NewManual())
	if !errors.Is(err, window.ErrInvalidCapacity) {
		t.Fatalf("expected ErrInvalidCapacity, got %v", err)
	}
}

func TestScenarioFiveTicks(t *testing.T) {
	s, sched, _ := newTestSession(t)

	s.Start()
	sched.Advance(5)

	snap := s.Snapshot()
	if len(snap.Samples) != 50 {
		t.Errorf("samples = %d, want 50", len(snap.Samples))
	}
	if snap.HeartRate < 60 || snap.HeartRate > 90 {
		t.Errorf("heart rate %d outside generator band 60..90", snap.HeartRate)
	}
	if snap.Tick != 5 {
		t.Errorf("tick = %d, want 5", snap.Tick)
	}
	if snap.RunState != session.Running {
		t.Errorf("run state = %s, want running", snap.RunState)
	}
}

func TestStartPrefillsWindow(t *testing.T) {
	s, _, _ := newTestSession(t)
	s.Start()

	snap := s.Snapshot()
	if snap.Status != session.Normal {
		t.Errorf("status after start = %s, want normal", snap.Status)
	}
	if snap.HeartRate != 72 {
		t.Errorf("heart rate after start = %d, want baseline 72", snap.HeartRate)
	}
	flat := true
	for _, v := range snap.Samples {
		if v != 0 {
			flat = false
			break
		}
	}
	if flat {
		t.Error("window should hold warm-up samples on start, got all zeros")
	}
}

func TestStartIsIdempotent(t *testing.T) {
	s, sched, rec := newTestSession(t)

	s.Start()
	s.Start()
	if sched.Active() != 1 {
		t.Fatalf("two Start calls left %d handles, want 1", sched.Active())
	}

	sched.Fire()
	if got := s.Snapshot().Tick; got != 1 {
		t.Errorf("one interval advanced tick to %d, want 1", got)
	}

	started := 0
	for _, k := range rec.keys() {
		if k == session.MsgMonitoringStarted {
			started++
		}
	}
	if started != 1 {
		t.Errorf("started notifications = %d, want 1", started)
	}
}

func TestScheduledAtConfiguredInterval(t *testing.T) {
	s, sched, _ := newTestSession(t)
	s.Start()
	if d, ok := sched.Interval(s.handle); !ok || d != 100*time.Millisecond {
		t.Errorf("scheduled interval = %v (%v), want 100ms", d, ok)
	}
}

func TestStartThenStopResets(t *testing.T) {
	s, sched, _ := newTestSession(t)

	s.Start()
	sched.Advance(12)
	s.Stop()

	snap := s.Snapshot()
	for i, v := range snap.Samples {
		if v != 0 {
			t.Fatalf("sample %d = %v after stop, want 0", i, v)
		}
	}
	if len(snap.Samples) != 50 {
		t.Errorf("samples = %d after stop, want 50", len(snap.Samples))
	}
	if snap.Status != session.Paused {
		t.Errorf("status = %s after stop, want paused", snap.Status)
	}
	if snap.HeartRate != 0 {
		t.Errorf("heart rate = %d after stop, want 0", snap.HeartRate)
	}
	if sched.Active() != 0 {
		t.Errorf("stop left %d scheduler handles", sched.Active())
	}
}

func TestStopIsIdempotentAndGuardsStaleCallbacks(t *testing.T) {
	s, sched, rec := newTestSession(t)

	s.Stop() // idle: no-op
	if len(rec.keys()) != 0 {
		t.Fatalf("Stop on idle session emitted %v", rec.keys())
	}

	s.Start()
	sched.Advance(3)
	s.Stop()
	s.Stop()

	before := s.Snapshot()
	publishes := len(rec.snaps)

	stale := sched.Cancelled()
	if len(stale) != 1 {
		t.Fatalf("expected 1 cancelled callback, got %d", len(stale))
	}
	// The timer fires once more after cancellation.
	stale[0]()
	sched.Fire()

	if after := s.Snapshot(); !reflect.DeepEqual(before, after) {
		t.Errorf("snapshot changed after stop:\nbefore %+v\nafter  %+v", before, after)
	}
	if len(rec.snaps) != publishes {
		t.Errorf("stale callback published %d snapshots", len(rec.snaps)-publishes)
	}

	stopped := 0
	for _, k := range rec.keys() {
		if k == session.MsgMonitoringStopped {
			stopped++
		}
	}
	if stopped != 1 {
		t.Errorf("stopped notifications = %d, want 1", stopped)
	}
}

func TestStaleCallbackAfterRestart(t *testing.T) {
	s, sched, _ := newTestSession(t)

	s.Start()
	s.Stop()
	s.Start()

	sched.Cancelled()[0]()
	if got := s.Snapshot().Tick; got != 0 {
		t.Fatalf("callback from the first start advanced the restarted session to tick %d", got)
	}
	sched.Fire()
	if got := s.Snapshot().Tick; got != 1 {
		t.Errorf("tick = %d, want 1", got)
	}
}

func TestCadenceDeterminism(t *testing.T) {
	for _, seed := range []int64{1, 2, 3, 42, 1000} {
		t.Run(fmt.Sprint(seed), func(t *testing.T) {
			s, sched, _ := newTestSession(t, WithRandomSource(signal.NewRandomSource(seed)))
			s.Start()

			sched.Advance(100)
			if got := s.Snapshot().Status; got != session.Normal {
				t.Fatalf("after 100 ticks status = %s, want normal", got)
			}

			sched.Advance(100)
			if got := s.Snapshot().Status; !got.IsAnomaly() {
				t.Fatalf("after 200 ticks status = %s, want an anomaly level", got)
			}
		})
	}
}

func TestStatusOnlyChangesOnCadence(t *testing.T) {
	s, sched, _ := newTestSession(t)
	s.Start()

	prev := s.Snapshot().Status
	for tick := 1; tick <= 1000; tick++ {
		sched.Fire()
		cur := s.Snapshot().Status
		if cur != prev && tick%100 != 0 {
			t.Fatalf("status changed from %s to %s at tick %d", prev, cur, tick)
		}
		prev = cur
	}
}

func TestHeartRateBound(t *testing.T) {
	for seed := int64(1); seed <= 10; seed++ {
		s, sched, _ := newTestSession(t, WithRandomSource(signal.NewRandomSource(seed)))
		s.Start()
		for i := 0; i < 300; i++ {
			sched.Fire()
			hr := s.Snapshot().HeartRate
			if hr < signal.MinHeartRate || hr > signal.MaxHeartRate {
				t.Fatalf("seed %d tick %d: heart rate %d out of [40,180]", seed, i+1, hr)
			}
		}
	}
}

func TestInjectAnomaly(t *testing.T) {
	s, sched, rec := newTestSession(t)
	s.Start()
	sched.Advance(20)

	before := s.Snapshot()
	if err := s.InjectAnomaly(); err != nil {
		t.Fatalf("InjectAnomaly: %v", err)
	}
	if rec.last().Key != session.MsgAnomalyInjected {
		t.Errorf("last notification = %q, want %q", rec.last().Key, session.MsgAnomalyInjected)
	}

	sched.Fire()
	after := s.Snapshot()

	if after.Status != session.SevereAnomaly {
		t.Fatalf("status after injection = %s, want severe_anomaly", after.Status)
	}
	if len(after.Samples) != len(before.Samples) {
		t.Fatalf("samples length changed: %d -> %d", len(before.Samples), len(after.Samples))
	}

	// The tick shifted everything left by one. Outside the pulse the shifted
	// values are untouched; inside it each entry carries exactly its pulse.
	n := len(before.Samples)
	cfg := config.DefaultMonitor()
	for i := 0; i < n-1; i++ {
		want := before.Samples[i+1]
		if tail := i - (n - 1 - cfg.PulseLength); tail >= 0 {
			want += signal.AnomalyPulse(tail, cfg.PulseGain)
		}
		if math.Abs(after.Samples[i]-want) > 1e-12 {
			t.Fatalf("sample %d = %v, want %v", i, after.Samples[i], want)
		}
	}
}

func TestInjectAnomalyIsOneShot(t *testing.T) {
	s, sched, _ := newTestSession(t)
	s.Start()
	sched.Advance(10)

	if err := s.InjectAnomaly(); err != nil {
		t.Fatal(err)
	}
	sched.Fire()
	if s.Snapshot().Status != session.SevereAnomaly {
		t.Fatal("expected severe anomaly after injection")
	}
	// Held until the next cadence boundary, then the normal rule applies.
	sched.Advance(88)
	if got := s.Snapshot(); got.Tick != 99 || got.Status != session.SevereAnomaly {
		t.Fatalf("tick %d status %s, want 99/severe_anomaly", got.Tick, got.Status)
	}
	sched.Fire()
	if got := s.Snapshot().Status; got != session.Normal {
		t.Errorf("status at tick 100 = %s, want normal", got)
	}
}

func TestInjectAnomalyWhileIdle(t *testing.T) {
	s, _, rec := newTestSession(t)
	before := s.Snapshot()

	err := s.InjectAnomaly()
	if !errors.Is(err, ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning, got %v", err)
	}
	if rec.last().Key != session.MsgStartFirst {
		t.Errorf("notification = %q, want %q", rec.last().Key, session.MsgStartFirst)
	}
	if after := s.Snapshot(); !reflect.DeepEqual(before, after) {
		t.Error("idle injection changed the snapshot")
	}
}

func TestTickFaultForcesIdle(t *testing.T) {
	tests := []struct {
		name    string
		opt     Option
		wantErr error
	}{
		{
			name:    "generator error",
			opt:     WithGenerator(faultyGenerator{Generator: signal.Generator{Band: signal.Band{Min: 60, Max: 90}}, failAt: 4}),
			wantErr: signal.ErrGeneratorFault,
		},
		{
			name:    "generator panic",
			opt:     WithGenerator(faultyGenerator{Generator: signal.Generator{Band: signal.Band{Min: 60, Max: 90}}, failAt: 4, panics: true}),
			wantErr: ErrTickPanic,
		},
		{
			name:    "classifier panic",
			opt:     WithClassifier(panickingClassifier{}),
			wantErr: ErrTickPanic,
		},
		{
			name:    "classifier error",
			opt:     WithClassifier(classify.New(0, 200)),
			wantErr: classify.ErrClassifierFault,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, sched, rec := newTestSession(t, tt.opt)
			s.Start()
			sched.Advance(6)

			if s.RunState() != session.Idle {
				t.Fatalf("session still %s after fault", s.RunState())
			}
			if !errors.Is(s.Err(), tt.wantErr) {
				t.Errorf("Err() = %v, want %v", s.Err(), tt.wantErr)
			}
			if sched.Active() != 0 {
				t.Errorf("fault left %d scheduler handles", sched.Active())
			}

			snap := s.Snapshot()
			if snap.Status != session.Paused || snap.HeartRate != 0 {
				t.Errorf("snapshot after fault status=%s hr=%d, want paused/0", snap.Status, snap.HeartRate)
			}

			ev := rec.last()
			if ev.Type != session.EventFault || ev.Level != session.LevelError || ev.Key != session.MsgInternalError {
				t.Errorf("last event = %+v, want fault/error/%s", ev, session.MsgInternalError)
			}
			if ev.Err == "" {
				t.Error("fault event should carry the error text")
			}

			// A fault is recoverable: starting again works and clears Err.
			s.Start()
			if s.Err() != nil || s.RunState() != session.Running {
				t.Errorf("restart after fault: state=%s err=%v", s.RunState(), s.Err())
			}
		})
	}
}

func TestSnapshotsAreImmutable(t *testing.T) {
	s, sched, rec := newTestSession(t)
	s.Start()
	sched.Advance(2)

	snap := s.Snapshot()
	snap.Samples[0] = 1e9
	if s.Snapshot().Samples[0] == 1e9 {
		t.Error("mutating a returned snapshot changed the session")
	}

	published := rec.snaps[len(rec.snaps)-1]
	published.Samples[1] = 1e9
	if s.Snapshot().Samples[1] == 1e9 {
		t.Error("mutating a sink snapshot changed the session")
	}
}

func TestSnapshotSamplesMatchStatusTick(t *testing.T) {
	// Every published snapshot must have been produced by one tick: its
	// newest sample is the amplitude generated for snap.Tick.
	s, sched, rec := newTestSession(t, WithGenerator(tickEcho{}))
	s.Start()
	sched.Advance(250)

	for _, snap := range rec.snaps {
		if snap.Tick == 0 {
			continue
		}
		if got := snap.Samples[len(snap.Samples)-1]; got != float64(snap.Tick) {
			t.Fatalf("snapshot for tick %d carries newest sample %v", snap.Tick, got)
		}
	}
}

type tickEcho struct{}

func (tickEcho) NextAmplitude(tick int, _ signal.RandomSource) (float64, error) {
	return float64(tick), nil
}
func (tickEcho) NextHeartRate(_ int, _ signal.RandomSource) (int, error) { return 75, nil }
func (tickEcho) WarmupSample(int, signal.RandomSource) float64 { return -1 }

func TestTickerDrivenSessionReleasesScheduler(t *testing.T) {
	defer goleak.VerifyNone(t)

	cfg := config.DefaultMonitor()
	cfg.Interval = 2 * time.Millisecond
	sched := scheduler.NewTicker()
	s, err := New("doctor", cfg, sched, WithRandomSource(signal.NewRandomSource(5)))
	if err != nil {
		t.Fatal(err)
	}

	s.Start()
	deadline := time.Now().Add(2 * time.Second)
	for s.Snapshot().Tick < 5 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if s.Snapshot().Tick < 5 {
		t.Fatalf("ticker drove only %d ticks", s.Snapshot().Tick)
	}

	s.Stop()
	if sched.Active() != 0 {
		t.Fatalf("stop left %d ticker handles", sched.Active())
	}
	before := s.Snapshot()
	time.Sleep(3 * cfg.Interval)
	if after := s.Snapshot(); !reflect.DeepEqual(before, after) {
		t.Error("snapshot changed after stop")
	}

	sched.Close()
}
