package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Monitor   MonitorConfig   `yaml:"monitor"`
	Broadcast BroadcastConfig `yaml:"broadcast"`
	Log       LogConfig       `yaml:"log"`
	Sessions  []string        `yaml:"sessions"`
	Locale    LocaleConfig    `yaml:"locale"`
}

type ServerConfig struct {
	Port           int      `yaml:"port"`
	Host           string   `yaml:"host"`
	AuthToken      string   `yaml:"auth_token"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// MonitorConfig tunes the simulation engine shared by every session.
type MonitorConfig struct {
	Capacity          int           `yaml:"capacity"`
	Interval          time.Duration `yaml:"interval"`
	Seed              int64         `yaml:"seed"`
	BaselineHeartRate int           `yaml:"baseline_heart_rate"`
	HeartRateMin      int           `yaml:"heart_rate_min"`
	HeartRateMax      int           `yaml:"heart_rate_max"`
	NormalEvery       int           `yaml:"normal_every"`
	AnomalyEvery      int           `yaml:"anomaly_every"`
	PulseLength       int           `yaml:"pulse_length"`
	PulseGain         float64       `yaml:"pulse_gain"`
	Jitter            float64       `yaml:"jitter"`
}

type BroadcastConfig struct {
	Throttle         time.Duration `yaml:"throttle"`
	SnapshotInterval time.Duration `yaml:"snapshot_interval"`
	MaxConnections   int           `yaml:"max_connections"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

type LocaleConfig struct {
	Default string `yaml:"default"`
	File    string `yaml:"file"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 8080,
			Host: "127.0.0.1",
		},
		Monitor: DefaultMonitor(),
		Broadcast: BroadcastConfig{
			Throttle:         100 * time.Millisecond,
			SnapshotInterval: 5 * time.Second,
			MaxConnections:   64,
		},
		Log: LogConfig{
			Level: "info",
		},
		Sessions: []string{"patient", "doctor"},
		Locale: LocaleConfig{
			Default: "en",
		},
	}
}

// DefaultMonitor returns the engine defaults: a 50-sample window ticking
// every 100ms with a 60-90 bpm band.
func DefaultMonitor() MonitorConfig {
	return MonitorConfig{
		Capacity:          50,
		Interval:          100 * time.Millisecond,
		BaselineHeartRate: 72,
		HeartRateMin:      60,
		HeartRateMax:      90,
		NormalEvery:       100,
		AnomalyEvery:      200,
		PulseLength:       10,
		PulseGain:         0.8,
		Jitter:            0.1,
	}
}

// Load reads a YAML file over the defaults. A missing file is an error;
// callers that want to run without one use Default.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

// LoadOrDefault behaves like Load but falls back to Default when the file
// does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Broadcast.Throttle <= 0 {
		return errors.New("broadcast.throttle must be positive")
	}
	if c.Broadcast.SnapshotInterval <= 0 {
		return errors.New("broadcast.snapshot_interval must be positive")
	}
	return c.Monitor.Validate()
}

func (m MonitorConfig) Validate() error {
	switch {
	case m.Capacity <= 0:
		return fmt.Errorf("monitor.capacity must be positive, got %d", m.Capacity)
	case m.Interval <= 0:
		return fmt.Errorf("monitor.interval must be positive, got %s", m.Interval)
	case m.HeartRateMin > m.HeartRateMax:
		return fmt.Errorf("monitor.heart_rate_min %d above heart_rate_max %d", m.HeartRateMin, m.HeartRateMax)
	case m.NormalEvery <= 0 || m.AnomalyEvery <= 0:
		return errors.New("monitor cadences must be positive")
	case m.PulseLength < 0:
		return fmt.Errorf("monitor.pulse_length must not be negative, got %d", m.PulseLength)
	case m.Jitter < 0:
		return fmt.Errorf("monitor.jitter must not be negative, got %v", m.Jitter)
	}
	return nil
}
