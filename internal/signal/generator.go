// Package signal produces the simulated phonocardiogram: waveform amplitudes
// and heart-rate readings. Every function is pure with respect to its inputs;
// randomness comes from an explicit RandomSource so runs can be replayed from
// a seed.
package signal

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// Absolute physiological limits. Configured bands are clamped into these.
const (
	MinHeartRate = 40
	MaxHeartRate = 180
)

// Periods of the two base components, in ticks.
const (
	beatPeriod  = 8.0
	swayPeriod  = 37.0
	beatWeight  = 0.6
	swayWeight  = 0.25
	pulseDecay  = 0.35
	pulseCycles = 4.0
)

var ErrGeneratorFault = errors.New("generator fault")

// RandomSource is the subset of *rand.Rand the generator and classifier use.
type RandomSource interface {
	Float64() float64
	Intn(n int) int
}

// NewRandomSource returns a seeded source. Seed 0 seeds from the clock.
func NewRandomSource(seed int64) *rand.Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

// Band is the inclusive range heart-rate readings are drawn from.
type Band struct {
	Min int
	Max int
}

// Generator holds the fixed shape parameters of the simulation.
type Generator struct {
	Band   Band
	Jitter float64
}

// NextAmplitude returns the waveform value for tick: a smooth periodic base
// plus a perturbation bounded by Jitter.
func (g Generator) NextAmplitude(tick int, rng RandomSource) (float64, error) {
	v := base(float64(tick)) + g.Jitter*(2*rng.Float64()-1)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: amplitude at tick %d is not finite", ErrGeneratorFault, tick)
	}
	return v, nil
}

// NextHeartRate draws a fresh reading from the band. previous only matters
// when it falls outside the absolute limits, in which case the draw is still
// clamped to them.
func (g Generator) NextHeartRate(previous int, rng RandomSource) (int, error) {
	if g.Band.Min > g.Band.Max {
		return previous, fmt.Errorf("%w: heart-rate band %d..%d is empty", ErrGeneratorFault, g.Band.Min, g.Band.Max)
	}
	hr := g.Band.Min + rng.Intn(g.Band.Max-g.Band.Min+1)
	return ClampHeartRate(hr), nil
}

// WarmupSample returns the i-th randomized sample used to pre-fill the
// window before the first tick, so the first frame is already a waveform.
func (g Generator) WarmupSample(i int, rng RandomSource) float64 {
	return base(float64(i)-1000) + g.Jitter*(2*rng.Float64()-1)
}

// AnomalyPulse is the value added to position i of the injected pulse: an
// oscillation whose envelope decays with i.
func AnomalyPulse(i int, gain float64) float64 {
	x := float64(i)
	return gain * math.Exp(-pulseDecay*x) * math.Cos(2*math.Pi*x/pulseCycles)
}

// ClampHeartRate bounds hr to [MinHeartRate, MaxHeartRate].
func ClampHeartRate(hr int) int {
	if hr < MinHeartRate {
		return MinHeartRate
	}
	if hr > MaxHeartRate {
		return MaxHeartRate
	}
	return hr
}

func base(t float64) float64 {
	return beatWeight*math.Sin(2*math.Pi*t/beatPeriod) + swayWeight*math.Sin(2*math.Pi*t/swayPeriod)
}
