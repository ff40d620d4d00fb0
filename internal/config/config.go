// Package config provides configuration loading for stratd.
package config

import (
	"fmt"
	"time"

	"github.com/fieldworks/stratd/internal/field"
	"github.com/fieldworks/stratd/internal/logging"
)

// Config holds the complete stratd configuration.
type Config struct {
	Match    MatchConfig    `koanf:"match"`
	Strategy StrategyConfig `koanf:"strategy"`
	Logging  logging.Config `koanf:"logging"`
	Server   ServerConfig   `koanf:"server"`
	Sim      SimConfig      `koanf:"sim"`
}

// MatchConfig holds the match parameters fixed before the starting cord is
// pulled.
type MatchConfig struct {
	// Color is the team side, "red" or "blue". Set once, never changed
	// mid-match.
	Color string `koanf:"color"`
	// Duration is the hard match time budget.
	Duration Duration `koanf:"duration"`
	// TakeFirstGlassLeft selects which outer glass is attempted first.
	TakeFirstGlassLeft bool `koanf:"take_first_glass_left"`
	// MaxRetries bounds consecutive obstructed attempts per objective.
	MaxRetries int `koanf:"max_retries"`
	// PollInterval is the trajectory status sampling cadence.
	PollInterval Duration `koanf:"poll_interval"`
}

// StrategyConfig selects the objective-selection policy.
type StrategyConfig struct {
	// Selector is "nearest" or "fixed".
	Selector string `koanf:"selector"`
}

// ServerConfig holds the debug HTTP server configuration.
type ServerConfig struct {
	Enabled bool   `koanf:"enabled"`
	Host    string `koanf:"host"`
	Port    int    `koanf:"port"`
}

// SimConfig tunes the simulated collaborators used by `stratd run --sim`.
type SimConfig struct {
	// TimeScale > 1 runs the simulated match faster than real time.
	TimeScale float64 `koanf:"time_scale"`
	// Speed is the simulated base speed in mm/s.
	Speed float64 `koanf:"speed"`
}

// NewDefaultConfig returns the hardcoded defaults.
func NewDefaultConfig() *Config {
	return &Config{
		Match: MatchConfig{
			Color:              "red",
			Duration:           Duration(field.MatchDuration * time.Second),
			TakeFirstGlassLeft: true,
			MaxRetries:         3,
			PollInterval:       Duration(10 * time.Millisecond),
		},
		Strategy: StrategyConfig{
			Selector: "nearest",
		},
		Logging: logging.NewDefaultConfig(),
		Server: ServerConfig{
			Enabled: true,
			Host:    "localhost",
			Port:    9480,
		},
		Sim: SimConfig{
			TimeScale: 10,
			Speed:     500,
		},
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if _, err := field.ParseColor(c.Match.Color); err != nil {
		return fmt.Errorf("match.color: %w", err)
	}
	if c.Match.Duration.Duration() <= 0 {
		return fmt.Errorf("match.duration must be positive, got %s", c.Match.Duration.Duration())
	}
	if c.Match.MaxRetries <= 0 {
		return fmt.Errorf("match.max_retries must be positive, got %d", c.Match.MaxRetries)
	}
	if c.Match.PollInterval.Duration() <= 0 {
		return fmt.Errorf("match.poll_interval must be positive, got %s", c.Match.PollInterval.Duration())
	}
	switch c.Strategy.Selector {
	case "nearest", "fixed":
	default:
		return fmt.Errorf("strategy.selector must be nearest or fixed, got %q", c.Strategy.Selector)
	}
	if err := c.Logging.Validate(); err != nil {
		return err
	}
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			return fmt.Errorf("server.port out of range: %d", c.Server.Port)
		}
	}
	if c.Sim.TimeScale <= 0 {
		return fmt.Errorf("sim.time_scale must be positive, got %g", c.Sim.TimeScale)
	}
	if c.Sim.Speed <= 0 {
		return fmt.Errorf("sim.speed must be positive, got %g", c.Sim.Speed)
	}
	return nil
}
