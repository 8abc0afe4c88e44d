// Package stall decides when a handshake side withholds its signal to
// create backpressure.
package stall

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Config describes a randomized stall pattern.
type Config struct {
	// ProbabilityPercent is the chance (0..100) that a decision point stalls.
	ProbabilityPercent float64 `json:"probability_percent" yaml:"probability_percent"`

	// MinStallCycles is the shortest stall, in clock cycles.
	MinStallCycles int `json:"min_stall_cycles" yaml:"min_stall_cycles"`

	// MaxStallCycles is the longest stall, in clock cycles.
	MaxStallCycles int `json:"max_stall_cycles" yaml:"max_stall_cycles"`
}

// Default returns a config that never stalls but has a one-cycle range, so
// only the probability needs to be raised to enable stalls.
func Default() Config {
	return Config{ProbabilityPercent: 0, MinStallCycles: 1, MaxStallCycles: 1}
}

// WithProbability returns a copy of c with the given probability.
func (c Config) WithProbability(percent float64) Config {
	c.ProbabilityPercent = percent
	return c
}

// Inert reports whether the config can never produce a stall.
func (c Config) Inert() bool {
	return c.ProbabilityPercent == 0 || c.MaxStallCycles == 0
}

// EffectiveMax returns the longest stall the config can produce, 0 if inert.
func (c Config) EffectiveMax() int {
	if c.Inert() {
		return 0
	}
	return c.MaxStallCycles
}

// String renders the config as "p%[min,max]".
func (c Config) String() string {
	return fmt.Sprintf("%g%%[%d,%d]", c.ProbabilityPercent, c.MinStallCycles, c.MaxStallCycles)
}

// ParseConfig parses the command-line form "p" or "p,min,max". A bare
// probability keeps the one-cycle range of Default. The result is validated.
func ParseConfig(s string) (Config, error) {
	parts := strings.Split(strings.TrimSpace(s), ",")
	if len(parts) != 1 && len(parts) != 3 {
		return Config{}, fmt.Errorf("stall config %q: want \"p\" or \"p,min,max\"", s)
	}

	c := Default()
	p, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(parts[0], "%")), 64)
	if err != nil {
		return Config{}, fmt.Errorf("stall config %q: probability: %w", s, err)
	}
	c.ProbabilityPercent = p

	if len(parts) == 3 {
		if c.MinStallCycles, err = strconv.Atoi(strings.TrimSpace(parts[1])); err != nil {
			return Config{}, fmt.Errorf("stall config %q: min: %w", s, err)
		}
		if c.MaxStallCycles, err = strconv.Atoi(strings.TrimSpace(parts[2])); err != nil {
			return Config{}, fmt.Errorf("stall config %q: max: %w", s, err)
		}
	}

	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks the config invariants.
func (c Config) Validate() error {
	if math.IsNaN(c.ProbabilityPercent) || c.ProbabilityPercent < 0 || c.ProbabilityPercent > 100 {
		return &ConfigError{Field: "probability_percent", Message: fmt.Sprintf("must be within 0..100, got %g", c.ProbabilityPercent)}
	}
	if c.MinStallCycles < 0 {
		return &ConfigError{Field: "min_stall_cycles", Message: fmt.Sprintf("must be non-negative, got %d", c.MinStallCycles)}
	}
	if c.MaxStallCycles < 0 {
		return &ConfigError{Field: "max_stall_cycles", Message: fmt.Sprintf("must be non-negative, got %d", c.MaxStallCycles)}
	}
	if c.MinStallCycles > c.MaxStallCycles {
		return &ConfigError{
			Field:   "min_stall_cycles",
			Message: fmt.Sprintf("min (%d) exceeds max (%d)", c.MinStallCycles, c.MaxStallCycles),
		}
	}
	return nil
}

// ConfigError reports an invalid stall config.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid stall config: %s: %s", e.Field, e.Message)
}

// IsConfigError returns true if err wraps a *ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// Source is the random source consumed by Decide. *rand.Rand from
// math/rand/v2 satisfies it.
type Source interface {
	Float64() float64
	IntN(n int) int
}

// Decide returns how many cycles to stall at one decision point.
//
// An inert config returns 0 without consuming randomness. Otherwise one real
// in [0,100) is drawn; when it is below the probability a second draw picks
// the length uniformly in [MinStallCycles, MaxStallCycles]. c must have
// passed Validate.
func Decide(c Config, rng Source) int {
	if c.Inert() {
		return 0
	}
	if 100*rng.Float64() >= c.ProbabilityPercent {
		return 0
	}
	return c.MinStallCycles + rng.IntN(c.MaxStallCycles-c.MinStallCycles+1)
}
