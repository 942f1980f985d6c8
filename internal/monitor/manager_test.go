package monitor

import (
	"errors"
	"reflect"
	"testing"

	"github.com/google/uuid"

	"github.com/pcg-live/monitor/internal/config"
	"github.com/pcg-live/monitor/internal/scheduler"
	"github.com/pcg-live/monitor/internal/session"
)

func TestManagerCreateAndGet(t *testing.T) {
	m := NewManager(config.DefaultMonitor(), scheduler.NewManual(), nil)

	s, err := m.Create("patient")
	if err != nil {
		t.Fatal(err)
	}
	got, err := m.Get("patient")
	if err != nil || got != s {
		t.Fatalf("Get(patient) = %v, %v", got, err)
	}

	if _, err := m.Create("patient"); !errors.Is(err, ErrSessionExists) {
		t.Errorf("duplicate Create: expected ErrSessionExists, got %v", err)
	}
	if _, err := m.Get("nobody"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Get(nobody): expected ErrSessionNotFound, got %v", err)
	}
}

func TestManagerGeneratesIDs(t *testing.T) {
	m := NewManager(config.DefaultMonitor(), scheduler.NewManual(), nil)
	s, err := m.Create("")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := uuid.Parse(s.ID()); err != nil {
		t.Errorf("generated id %q is not a UUID: %v", s.ID(), err)
	}
}

func TestManagerListIsSorted(t *testing.T) {
	m := NewManager(config.DefaultMonitor(), scheduler.NewManual(), nil)
	for _, id := range []string{"patient", "doctor", "nurse"} {
		if _, err := m.Create(id); err != nil {
			t.Fatal(err)
		}
	}
	var ids []string
	for _, s := range m.List() {
		ids = append(ids, s.ID())
	}
	if want := []string{"doctor", "nurse", "patient"}; !reflect.DeepEqual(ids, want) {
		t.Errorf("List() ids = %v, want %v", ids, want)
	}
}

func TestManagerRemoveStops(t *testing.T) {
	sched := scheduler.NewManual()
	m := NewManager(config.DefaultMonitor(), sched, nil)
	s, _ := m.Create("doctor")
	s.Start()
	sched.Advance(3)

	if err := m.Remove("doctor"); err != nil {
		t.Fatal(err)
	}
	if s.RunState() != session.Idle {
		t.Error("removed session still running")
	}
	if sched.Active() != 0 {
		t.Errorf("removed session left %d handles", sched.Active())
	}
	if err := m.Remove("doctor"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("second Remove: expected ErrSessionNotFound, got %v", err)
	}
}

func TestManagerCloseStopsAll(t *testing.T) {
	sched := scheduler.NewManual()
	m := NewManager(config.DefaultMonitor(), sched, nil)
	for _, id := range []string{"patient", "doctor"} {
		s, _ := m.Create(id)
		s.Start()
	}
	m.Close()
	if sched.Active() != 0 {
		t.Errorf("Close left %d handles", sched.Active())
	}
	for _, s := range m.List() {
		if s.Snapshot().Status != session.Paused {
			t.Errorf("%s status = %s after Close", s.ID(), s.Snapshot().Status)
		}
	}
}

func TestManagerSeededSessionsReplay(t *testing.T) {
	cfg := config.DefaultMonitor()
	cfg.Seed = 77

	run := func() []float64 {
		sched := scheduler.NewManual()
		m := NewManager(cfg, sched, nil)
		s, err := m.Create("patient")
		if err != nil {
			t.Fatal(err)
		}
		s.Start()
		sched.Advance(30)
		return s.Snapshot().Samples
	}

	if a, b := run(), run(); !reflect.DeepEqual(a, b) {
		t.Error("same seed and id produced different waveforms")
	}
	if seedFor(77, "patient") == seedFor(77, "doctor") {
		t.Error("sessions with different ids share a seed")
	}
	if seedFor(0, "patient") != 0 {
		t.Error("zero base seed should stay clock-seeded")
	}
}

func TestManagerRejectsBadConfig(t *testing.T) {
	cfg := config.DefaultMonitor()
	cfg.Capacity = -3
	m := NewManager(cfg, scheduler.NewManual(), nil)
	if _, err := m.Create("x"); err == nil {
		t.Fatal("expected error for negative capacity")
	}
	if len(m.List()) != 0 {
		t.Error("failed Create registered a session")
	}
}
