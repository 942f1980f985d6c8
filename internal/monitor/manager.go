package monitor

import (
	"errors"
	"fmt"
	"hash/fnv"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pcg-live/monitor/internal/config"
	"github.com/pcg-live/monitor/internal/scheduler"
	"github.com/pcg-live/monitor/internal/signal"
)

var (
	ErrSessionExists   = errors.New("session already exists")
	ErrSessionNotFound = errors.New("session not found")
)

// Manager owns the sessions of one process, one per mounted view. Removing a
// session is the view teardown: it is stopped before it is forgotten.
type Manager struct {
	cfg    config.MonitorConfig
	sched  scheduler.Scheduler
	opts   []Option
	logger *zap.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager returns a Manager whose sessions share cfg, sched and opts.
func NewManager(cfg config.MonitorConfig, sched scheduler.Scheduler, logger *zap.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		cfg:      cfg,
		sched:    sched,
		opts:     opts,
		logger:   logger,
		sessions: make(map[string]*Session),
	}
}

// Create builds an idle session. An empty id gets a random UUID. With a
// non-zero cfg.Seed every session draws from its own deterministic source
// derived from the seed and its id.
func (m *Manager) Create(id string) (*Session, error) {
	if id == "" {
		id = uuid.NewString()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionExists, id)
	}

	opts := append([]Option{WithLogger(m.logger)}, m.opts...)
	opts = append(opts, WithRandomSource(signal.NewRandomSource(seedFor(m.cfg.Seed, id))))

	s, err := New(id, m.cfg, m.sched, opts...)
	if err != nil {
		return nil, err
	}
	m.sessions[id] = s
	m.logger.Debug("session created", zap.String("session", id))
	return s, nil
}

func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s, nil
}

// List returns every session ordered by id.
func (m *Manager) List() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// Remove stops and forgets a session.
func (m *Manager) Remove(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	s.Stop()
	return nil
}

// Close stops every session. The sessions stay registered so their final
// snapshots remain readable.
func (m *Manager) Close() {
	for _, s := range m.List() {
		s.Stop()
	}
}

func seedFor(base int64, id string) int64 {
	if base == 0 {
		return 0
	}
	h := fnv.New64a()
	h.Write([]byte(id))
	return base ^ int64(h.Sum64())
}
