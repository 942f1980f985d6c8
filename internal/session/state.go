package session

import (
	"encoding/json"
	"time"
)

// Status is the discrete classification published with every snapshot.
type Status int

const (
	Paused Status = iota
	Normal
	MildAnomaly
	ModerateAnomaly
	SevereAnomaly
)

var statusNames = map[Status]string{
	Paused:          "paused",
	Normal:          "normal",
	MildAnomaly:     "mild_anomaly",
	ModerateAnomaly: "moderate_anomaly",
	SevereAnomaly:   "severe_anomaly",
}

var statusFromName = map[string]Status{
	"paused":           Paused,
	"normal":           Normal,
	"mild_anomaly":     MildAnomaly,
	"moderate_anomaly": ModerateAnomaly,
	"severe_anomaly":   SevereAnomaly,
}

// AnomalyLevels lists the statuses the cadence rule picks from, mildest first.
var AnomalyLevels = []Status{MildAnomaly, ModerateAnomaly, SevereAnomaly}

// String returns the stable key for the status. Display text comes from the
// locale tables, never from here.
func (s Status) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return "unknown"
}

// IsAnomaly reports whether s is one of the anomaly levels.
func (s Status) IsAnomaly() bool {
	return s == MildAnomaly || s == ModerateAnomaly || s == SevereAnomaly
}

// ParseStatus maps a key back to its Status.
func ParseStatus(name string) (Status, bool) {
	s, ok := statusFromName[name]
	return s, ok
}

func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Status) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	if v, ok := statusFromName[name]; ok {
		*s = v
	}
	return nil
}

// RunState is the lifecycle state of a monitoring session.
type RunState int

const (
	Idle RunState = iota
	Running
)

func (r RunState) String() string {
	if r == Running {
		return "running"
	}
	return "idle"
}

func (r RunState) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

func (r *RunState) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	if name == "running" {
		*r = Running
	} else {
		*r = Idle
	}
	return nil
}

// Snapshot is the immutable view of a session handed to every consumer:
// the waveform plot, numeric readouts, status badge and alert feed all read
// the same value, so samples and status always belong to the same tick.
type Snapshot struct {
	SessionID   string    `json:"sessionId"`
	Samples     []float64 `json:"samples"`
	HeartRate   int       `json:"heartRate"`
	Status      Status    `json:"status"`
	RunState    RunState  `json:"runState"`
	Tick        int       `json:"tick"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// Clone returns a deep copy of the Snapshot, duplicating the sample slice so
// the copy can be mutated independently of the original.
func (s *Snapshot) Clone() *Snapshot {
	c := *s
	if s.Samples != nil {
		c.Samples = make([]float64, len(s.Samples))
		copy(c.Samples, s.Samples)
	}
	return &c
}

func (s *Snapshot) IsRunning() bool {
	return s.RunState == Running
}
