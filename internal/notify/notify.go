// Package notify delivers session events to the places that show them.
package notify

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pcg-live/monitor/internal/session"
)

// Notifier matches monitor.Notifier.
type Notifier interface {
	Notify(ev session.Event)
}

// Func adapts a function to Notifier.
type Func func(session.Event)

func (f Func) Notify(ev session.Event) { f(ev) }

// Logger writes events to a zap logger, at a level derived from the event
// level.
type Logger struct {
	logger *zap.Logger
}

func NewLogger(logger *zap.Logger) *Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Logger{logger: logger.Named("notify")}
}

func (l *Logger) Notify(ev session.Event) {
	fields := []zap.Field{
		zap.String("session", ev.SessionID),
		zap.Stringer("event", ev.Type),
		zap.String("key", ev.Key),
		zap.Stringer("status", ev.Status),
	}
	if ev.Err != "" {
		fields = append(fields, zap.String("error", ev.Err))
	}
	if ce := l.logger.Check(levelFor(ev.Level), "session event"); ce != nil {
		ce.Write(fields...)
	}
}

func levelFor(l session.Level) zapcore.Level {
	switch l {
	case session.LevelError:
		return zapcore.ErrorLevel
	case session.LevelSuccess:
		return zapcore.InfoLevel
	default:
		return zapcore.DebugLevel
	}
}

// Fanout forwards each event to every registered notifier in order.
type Fanout struct {
	mu        sync.RWMutex
	notifiers []Notifier
}

func NewFanout(ns ...Notifier) *Fanout {
	f := &Fanout{}
	for _, n := range ns {
		f.Add(n)
	}
	return f
}

// Add registers n. Nil notifiers are ignored.
func (f *Fanout) Add(n Notifier) {
	if n == nil {
		return
	}
	f.mu.Lock()
	f.notifiers = append(f.notifiers, n)
	f.mu.Unlock()
}

func (f *Fanout) Notify(ev session.Event) {
	f.mu.RLock()
	ns := f.notifiers
	f.mu.RUnlock()
	for _, n := range ns {
		n.Notify(ev)
	}
}

// Recorder keeps every event it receives. The simulate command and tests use
// it to inspect what a session emitted.
type Recorder struct {
	mu     sync.Mutex
	events []session.Event
}

func (r *Recorder) Notify(ev session.Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

// Drain returns the recorded events and forgets them.
func (r *Recorder) Drain() []session.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.events
	r.events = nil
	return out
}
