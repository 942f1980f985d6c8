package monitor

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/pcg-live/monitor/internal/classify"
	"github.com/pcg-live/monitor/internal/config"
	"github.com/pcg-live/monitor/internal/scheduler"
	"github.com/pcg-live/monitor/internal/session"
	"github.com/pcg-live/monitor/internal/signal"
	"github.com/pcg-live/monitor/internal/window"
)

var (
	// ErrNotRunning is returned by InjectAnomaly on an idle session.
	ErrNotRunning = errors.New("monitoring session not running")
	// ErrTickPanic wraps a panic recovered from the tick routine.
	ErrTickPanic = errors.New("tick panicked")
)

// Generator produces waveform and heart-rate values. signal.Generator is
// the production implementation.
type Generator interface {
	NextAmplitude(tick int, rng signal.RandomSource) (float64, error)
	NextHeartRate(previous int, rng signal.RandomSource) (int, error)
	WarmupSample(i int, rng signal.RandomSource) float64
}

// Classifier maps a tick to a status. classify.Classifier is the production
// implementation.
type Classifier interface {
	Classify(in classify.Input, rng signal.RandomSource) (session.Status, error)
}

// Notifier receives transient events. Implementations must not block and
// must not call back into the session.
type Notifier interface {
	Notify(ev session.Event)
}

// Sink observes every published snapshot after it becomes visible through
// Session.Snapshot. Like Notifier it must not call back into the session.
type Sink interface {
	Publish(snap *session.Snapshot)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(*session.Snapshot)

func (f SinkFunc) Publish(snap *session.Snapshot) { f(snap) }

type nopNotifier struct{}

func (nopNotifier) Notify(session.Event) {}

// Option configures a Session.
type Option func(*Session)

func WithGenerator(g Generator) Option { return func(s *Session) { s.gen = g } }
func WithClassifier(c Classifier) Option { return func(s *Session) { s.cls = c } }
func WithNotifier(n Notifier) Option { return func(s *Session) { s.notifier = n } }
func WithSink(sink Sink) Option { return func(s *Session) { s.sink = sink } }
func WithLogger(l *zap.Logger) Option { return func(s *Session) { s.logger = l } }
func WithRandomSource(r signal.RandomSource) Option { return func(s *Session) { s.rng = r } }
func WithClock(now func() time.Time) Option { return func(s *Session) { s.now = now } }

// Session is one live monitoring engine. All mutable state is guarded by mu;
// ticks, Start, Stop and InjectAnomaly are serialized on it, so a tick always
// runs to completion before anything else observes or changes the session.
// Readers never take mu: they load the last published snapshot.
type Session struct {
	id    string
	cfg   config.MonitorConfig
	sched scheduler.Scheduler

	gen      Generator
	cls      Classifier
	rng      signal.RandomSource
	notifier Notifier
	sink     Sink
	logger   *zap.Logger
	now      func() time.Time

	mu         sync.Mutex
	state      session.RunState
	tickCount  int
	heartRate  int
	status     session.Status
	forced     bool
	window     *window.Buffer
	handle     scheduler.Handle
	generation uint64
	lastErr    error

	published atomic.Pointer[session.Snapshot]
}

// New creates an idle session with a zero-filled window and publishes its
// initial snapshot.
func New(id string, cfg config.MonitorConfig, sched scheduler.Scheduler, opts ...Option) (*Session, error) {
	buf, err := window.New(cfg.Capacity, 0)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", id, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("session %s: %w", id, err)
	}

	s := &Session{
		id:     id,
		cfg:    cfg,
		sched:  sched,
		window: buf,
		status: session.Paused,
		gen: signal.Generator{
			Band:   signal.Band{Min: cfg.HeartRateMin, Max: cfg.HeartRateMax},
			Jitter: cfg.Jitter,
		},
		cls:      classify.New(cfg.NormalEvery, cfg.AnomalyEvery),
		notifier: nopNotifier{},
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rng == nil {
		s.rng = signal.NewRandomSource(cfg.Seed)
	}
	s.logger = s.logger.With(zap.String("session", id))

	s.mu.Lock()
	s.publishLocked()
	s.mu.Unlock()
	return s, nil
}

func (s *Session) ID() string { return s.id }

// RunState reports whether the session is ticking.
func (s *Session) RunState() session.RunState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the fault that last forced the session idle, if any. It is
// cleared by Start.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Snapshot returns the latest published snapshot. The returned value owns
// its sample slice.
func (s *Session) Snapshot() session.Snapshot {
	return *s.published.Load().Clone()
}

// Start begins monitoring. Calling it on a running session does nothing.
func (s *Session) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == session.Running {
		return
	}

	s.tickCount = 0
	s.forced = false
	s.lastErr = nil
	s.window.Fill(func(i int) float64 { return s.gen.WarmupSample(i, s.rng) })
	s.heartRate = signal.ClampHeartRate(s.cfg.BaselineHeartRate)
	s.status = session.Normal

	s.generation++
	gen := s.generation
	s.handle = s.sched.Schedule(func() { s.tick(gen) }, s.cfg.Interval)
	s.state = session.Running

	s.publishLocked()
	s.notifyLocked(session.EventStarted, session.LevelSuccess, session.MsgMonitoringStarted, nil)
	s.logger.Info("monitoring started", zap.Duration("interval", s.cfg.Interval), zap.Int("capacity", s.cfg.Capacity))
}

// Stop ends monitoring and resets the session to its baseline. Calling it
// on an idle session does nothing.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != session.Running {
		return
	}
	s.stopLocked()
	s.notifyLocked(session.EventStopped, session.LevelInfo, session.MsgMonitoringStopped, nil)
	s.logger.Info("monitoring stopped")
}

// InjectAnomaly forces SevereAnomaly on the next tick and superimposes a
// decaying pulse on the newest samples. On an idle session it returns
// ErrNotRunning and asks the user to start monitoring first.
func (s *Session) InjectAnomaly() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != session.Running {
		s.notifyLocked(session.EventAnomaly, session.LevelInfo, session.MsgStartFirst, nil)
		return ErrNotRunning
	}

	s.forced = true
	gain := s.cfg.PulseGain
	n := s.window.PerturbTail(s.cfg.PulseLength, func(i int, v float64) float64 {
		return v + signal.AnomalyPulse(i, gain)
	})
	s.notifyLocked(session.EventAnomaly, session.LevelInfo, session.MsgAnomalyInjected, nil)
	s.logger.Debug("anomaly injected", zap.Int("perturbed", n), zap.Int("tick", s.tickCount))
	return nil
}

// tick is the scheduler callback. gen pins the callback to the Start that
// registered it: after Stop (or a Stop/Start cycle) a late firing finds a
// different generation and leaves the session alone.
func (s *Session) tick(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != session.Running || gen != s.generation {
		return
	}

	if err := s.advanceLocked(); err != nil {
		s.faultLocked(err)
	}
}

// advanceLocked computes one tick. Nothing is published unless every step
// succeeds.
func (s *Session) advanceLocked() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrTickPanic, r)
		}
	}()

	next := s.tickCount + 1
	amp, err := s.gen.NextAmplitude(next, s.rng)
	if err != nil {
		return fmt.Errorf("tick %d: %w", next, err)
	}
	if err := s.window.Append(amp); err != nil {
		return fmt.Errorf("tick %d: %w", next, err)
	}
	status, err := s.cls.Classify(classify.Input{
		Tick:      next,
		Window:    s.window.Snapshot(),
		HeartRate: s.heartRate,
		Forced:    s.forced,
		Previous:  s.status,
	}, s.rng)
	if err != nil {
		return fmt.Errorf("tick %d: %w", next, err)
	}
	hr, err := s.gen.NextHeartRate(s.heartRate, s.rng)
	if err != nil {
		return fmt.Errorf("tick %d: %w", next, err)
	}

	prev := s.status
	s.tickCount = next
	s.forced = false
	s.status = status
	s.heartRate = signal.ClampHeartRate(hr)
	s.publishLocked()

	if status != prev {
		level := session.LevelInfo
		if status.IsAnomaly() {
			level = session.LevelError
		}
		s.notifyLocked(session.EventStatus, level, session.MsgStatusChanged, nil)
	}
	return nil
}

func (s *Session) faultLocked(err error) {
	s.logger.Error("monitoring stopped after tick failure", zap.Error(err), zap.Int("tick", s.tickCount))
	s.stopLocked()
	s.lastErr = err
	s.notifyLocked(session.EventFault, session.LevelError, session.MsgInternalError, err)
}

// stopLocked releases the scheduler handle and resets to the paused
// baseline. Bumping the generation makes any in-flight callback a no-op.
func (s *Session) stopLocked() {
	s.sched.Cancel(s.handle)
	s.handle = 0
	s.generation++
	s.state = session.Idle
	s.tickCount = 0
	s.forced = false
	s.window.Reset()
	s.status = session.Paused
	s.heartRate = 0
	s.publishLocked()
}

func (s *Session) publishLocked() {
	snap := &session.Snapshot{
		SessionID:   s.id,
		Samples:     s.window.Snapshot(),
		HeartRate:   s.heartRate,
		Status:      s.status,
		RunState:    s.state,
		Tick:        s.tickCount,
		LastUpdated: s.now(),
	}
	s.published.Store(snap)
	if s.sink != nil {
		s.sink.Publish(snap.Clone())
	}
}

func (s *Session) notifyLocked(typ session.EventType, level session.Level, key string, err error) {
	ev := session.Event{
		Type:      typ,
		Level:     level,
		SessionID: s.id,
		Key:       key,
		Status:    s.status,
		At:        s.now(),
	}
	if err != nil {
		ev.Err = err.Error()
	}
	s.notifier.Notify(ev)
}
