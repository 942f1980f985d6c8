// Package classify maps a tick and its window to a session.Status on a fixed
// cadence.
package classify

import (
	"errors"
	"fmt"

	"github.com/pcg-live/monitor/internal/session"
	"github.com/pcg-live/monitor/internal/signal"
)

var ErrClassifierFault = errors.New("classifier fault")

// Input is everything one classification looks at.
type Input struct {
	Tick      int
	Window    []float64
	HeartRate int
	Forced    bool
	Previous  session.Status
}

// Classifier applies the cadence rules. Statuses only change on cadence
// boundaries or when an anomaly is forced, so the badge does not flicker.
type Classifier struct {
	NormalEvery  int
	AnomalyEvery int
}

// New returns a Classifier with the given cadences.
func New(normalEvery, anomalyEvery int) Classifier {
	return Classifier{NormalEvery: normalEvery, AnomalyEvery: anomalyEvery}
}

// Classify returns the status for in. A forced anomaly wins over everything;
// the anomaly cadence wins over the normal cadence on shared ticks.
func (c Classifier) Classify(in Input, rng signal.RandomSource) (session.Status, error) {
	if c.NormalEvery <= 0 || c.AnomalyEvery <= 0 {
		return in.Previous, fmt.Errorf("%w: cadence %d/%d", ErrClassifierFault, c.NormalEvery, c.AnomalyEvery)
	}
	if len(in.Window) == 0 {
		return in.Previous, fmt.Errorf("%w: empty window at tick %d", ErrClassifierFault, in.Tick)
	}

	if in.Forced {
		return session.SevereAnomaly, nil
	}

	if in.Tick > 0 {
		if in.Tick%c.AnomalyEvery == 0 {
			return session.AnomalyLevels[rng.Intn(len(session.AnomalyLevels))], nil
		}
		if in.Tick%c.NormalEvery == 0 {
			return session.Normal, nil
		}
	}

	if in.Previous == session.Paused {
		return in.Previous, fmt.Errorf("%w: running session carried paused status into tick %d", ErrClassifierFault, in.Tick)
	}
	return in.Previous, nil
}
