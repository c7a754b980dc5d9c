// Package config defines the simulation parameters, their defaults, YAML
// loading, and fail-fast validation.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Boundary and metric names accepted in config files.
const (
	BoundaryTorus   = "torus"
	BoundaryBounded = "bounded"

	MetricChebyshev = "chebyshev"
	MetricEuclidean = "euclidean"
)

// ConfigError reports an out-of-range parameter. Construction fails before
// any agent is created.
type ConfigError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s = %v: %s", e.Field, e.Value, e.Reason)
}

// Config holds every parameter of a run. All densities, rates, and levels
// are fractions in [0, 1].
type Config struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`

	CitizenDensity float64 `yaml:"citizen_density"`
	CopDensity     float64 `yaml:"cop_density"`
	CitizenVision  int     `yaml:"citizen_vision"`
	CopVision      int     `yaml:"cop_vision"`

	Legitimacy       float64 `yaml:"legitimacy"`
	MaxJailTerm      int     `yaml:"max_jail_term"`
	ActiveThreshold  float64 `yaml:"active_threshold"`
	ArrestProbConst  float64 `yaml:"arrest_prob_constant"`
	UnemploymentRate float64 `yaml:"initial_unemployment_rate"`
	CorruptionLevel  float64 `yaml:"corruption_level"`
	SusceptibleLevel float64 `yaml:"susceptible_level"`

	Movement bool   `yaml:"movement"`
	Boundary string `yaml:"boundary"`
	Metric   string `yaml:"metric"`

	// HardshipField spatially correlates hardship draws with a noise field
	// instead of pure uniform draws. Off by default.
	HardshipField bool `yaml:"hardship_field"`

	// MaxIters bounds the run; 0 means unbounded.
	MaxIters int `yaml:"max_iters"`

	// Seed pins the random stream; 0 means draw one at startup.
	Seed int64 `yaml:"seed"`
}

// Default returns the canonical parameterization of the model.
func Default() Config {
	return Config{
		Width:            40,
		Height:           40,
		CitizenDensity:   0.7,
		CopDensity:       0.074,
		CitizenVision:    7,
		CopVision:        7,
		Legitimacy:       0.8,
		MaxJailTerm:      1000,
		ActiveThreshold:  0.1,
		ArrestProbConst:  2.3,
		UnemploymentRate: 0.1,
		CorruptionLevel:  0.1,
		SusceptibleLevel: 1.0,
		Movement:         true,
		Boundary:         BoundaryTorus,
		Metric:           MetricChebyshev,
		MaxIters:         1000,
	}
}

// Load reads a YAML config over the defaults. An empty path returns the
// defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func fraction(field string, v float64) error {
	if v < 0 || v > 1 {
		return &ConfigError{Field: field, Value: v, Reason: "must be in [0, 1]"}
	}
	return nil
}

// Validate checks every parameter range. It is called once before the
// population is spawned.
func (c Config) Validate() error {
	if c.Width < 1 {
		return &ConfigError{Field: "width", Value: c.Width, Reason: "must be >= 1"}
	}
	if c.Height < 1 {
		return &ConfigError{Field: "height", Value: c.Height, Reason: "must be >= 1"}
	}
	if err := fraction("citizen_density", c.CitizenDensity); err != nil {
		return err
	}
	if err := fraction("cop_density", c.CopDensity); err != nil {
		return err
	}
	if c.CitizenDensity+c.CopDensity > 1 {
		return &ConfigError{
			Field:  "citizen_density+cop_density",
			Value:  c.CitizenDensity + c.CopDensity,
			Reason: "densities must sum to at most 1",
		}
	}
	if c.CitizenVision < 0 {
		return &ConfigError{Field: "citizen_vision", Value: c.CitizenVision, Reason: "must be >= 0"}
	}
	if c.CopVision < 0 {
		return &ConfigError{Field: "cop_vision", Value: c.CopVision, Reason: "must be >= 0"}
	}
	if err := fraction("legitimacy", c.Legitimacy); err != nil {
		return err
	}
	if c.MaxJailTerm < 1 {
		return &ConfigError{Field: "max_jail_term", Value: c.MaxJailTerm, Reason: "must be >= 1"}
	}
	if c.ArrestProbConst <= 0 {
		return &ConfigError{Field: "arrest_prob_constant", Value: c.ArrestProbConst, Reason: "must be > 0"}
	}
	if err := fraction("initial_unemployment_rate", c.UnemploymentRate); err != nil {
		return err
	}
	if err := fraction("corruption_level", c.CorruptionLevel); err != nil {
		return err
	}
	if err := fraction("susceptible_level", c.SusceptibleLevel); err != nil {
		return err
	}
	switch c.Boundary {
	case BoundaryTorus, BoundaryBounded:
	default:
		return &ConfigError{Field: "boundary", Value: c.Boundary, Reason: `must be "torus" or "bounded"`}
	}
	switch c.Metric {
	case MetricChebyshev, MetricEuclidean:
	default:
		return &ConfigError{Field: "metric", Value: c.Metric, Reason: `must be "chebyshev" or "euclidean"`}
	}
	if c.MaxIters < 0 {
		return &ConfigError{Field: "max_iters", Value: c.MaxIters, Reason: "must be >= 0 (0 = unbounded)"}
	}
	return nil
}
