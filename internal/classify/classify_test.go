package classify

import (
	"errors"
	"testing"

	"github.com/pcg-live/monitor/internal/session"
	"github.com/pcg-live/monitor/internal/signal"
)

type fixedRand int

func (f fixedRand) Float64() float64 { return 0 }
func (f fixedRand) Intn(n int) int   { return int(f) % n }

var window = []float64{0.1, 0.2, 0.3}

func TestClassifyCadence(t *testing.T) {
	c := New(100, 200)

	tests := []struct {
		name     string
		tick     int
		previous session.Status
		rng      fixedRand
		want     session.Status
	}{
		{"off-cadence retains normal", 37, session.Normal, 0, session.Normal},
		{"off-cadence retains anomaly", 101, session.ModerateAnomaly, 0, session.ModerateAnomaly},
		{"100th tick resets to normal", 100, session.SevereAnomaly, 0, session.Normal},
		{"300th tick resets to normal", 300, session.MildAnomaly, 0, session.Normal},
		{"200th tick picks mild", 200, session.Normal, 0, session.MildAnomaly},
		{"200th tick picks moderate", 200, session.Normal, 1, session.ModerateAnomaly},
		{"400th tick picks severe", 400, session.Normal, 2, session.SevereAnomaly},
		{"tick zero is not a boundary", 0, session.Normal, 0, session.Normal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Classify(Input{Tick: tt.tick, Window: window, Previous: tt.previous}, tt.rng)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Classify(tick=%d) = %s, want %s", tt.tick, got, tt.want)
			}
		})
	}
}

func TestClassifyForcedOverridesCadence(t *testing.T) {
	c := New(100, 200)
	for _, tick := range []int{1, 100, 200} {
		got, err := c.Classify(Input{Tick: tick, Window: window, Previous: session.Normal, Forced: true}, fixedRand(0))
		if err != nil {
			t.Fatal(err)
		}
		if got != session.SevereAnomaly {
			t.Errorf("forced at tick %d = %s, want severe_anomaly", tick, got)
		}
	}
}

func TestClassifyAnomalyTickNeverNormal(t *testing.T) {
	c := New(100, 200)
	rng := signal.NewRandomSource(99)
	seen := map[session.Status]bool{}
	for i := 0; i < 300; i++ {
		got, err := c.Classify(Input{Tick: 200 * (i + 1), Window: window, Previous: session.Normal}, rng)
		if err != nil {
			t.Fatal(err)
		}
		if !got.IsAnomaly() {
			t.Fatalf("anomaly tick produced %s", got)
		}
		seen[got] = true
	}
	if len(seen) != len(session.AnomalyLevels) {
		t.Errorf("expected all %d anomaly levels over 300 draws, saw %v", len(session.AnomalyLevels), seen)
	}
}

func TestClassifyNeverPaused(t *testing.T) {
	c := New(100, 200)
	rng := signal.NewRandomSource(3)
	prev := session.Normal
	for tick := 1; tick <= 1000; tick++ {
		got, err := c.Classify(Input{Tick: tick, Window: window, Previous: prev}, rng)
		if err != nil {
			t.Fatal(err)
		}
		if got == session.Paused {
			t.Fatalf("tick %d produced paused", tick)
		}
		prev = got
	}
}

func TestClassifyFaults(t *testing.T) {
	tests := []struct {
		name string
		c    Classifier
		in   Input
	}{
		{"empty window", New(100, 200), Input{Tick: 5, Previous: session.Normal}},
		{"zero cadence", New(0, 200), Input{Tick: 5, Window: window, Previous: session.Normal}},
		{"paused carried over", New(100, 200), Input{Tick: 5, Window: window, Previous: session.Paused}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.c.Classify(tt.in, fixedRand(0))
			if !errors.Is(err, ErrClassifierFault) {
				t.Errorf("expected ErrClassifierFault, got %v", err)
			}
		})
	}
}
