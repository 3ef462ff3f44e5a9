// Package classify buckets members into performance tiers relative to the
// chapter-wide mean outbound total.
package classify

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// Config holds the tier thresholds as multiples of the chapter mean. It is a
// plain value: callers pass it in, nothing reads it from globals.
type Config struct {
	GreenAt      float64 `mapstructure:"green_at" json:"greenAt"`
	OrangeHighAt float64 `mapstructure:"orange_high_at" json:"orangeHighAt"`
	OrangeLowAt  float64 `mapstructure:"orange_low_at" json:"orangeLowAt"`
	RedAt        float64 `mapstructure:"red_at" json:"redAt"`
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		GreenAt:      1.75,
		OrangeHighAt: 0.75,
		OrangeLowAt:  0.5,
		RedAt:        0.5,
	}
}

// Validate checks that the thresholds are non-negative and ordered
// red ≤ orange-low ≤ orange-high ≤ green.
func (c Config) Validate() error {
	var errs []string

	thresholds := []struct {
		name  string
		value float64
	}{
		{"green_at", c.GreenAt},
		{"orange_high_at", c.OrangeHighAt},
		{"orange_low_at", c.OrangeLowAt},
		{"red_at", c.RedAt},
	}
	for _, th := range thresholds {
		if th.value < 0 {
			errs = append(errs, fmt.Sprintf("%s must be >= 0", th.name))
		}
	}

	if c.GreenAt <= 0 {
		errs = append(errs, "green_at must be > 0")
	}
	if c.OrangeHighAt > c.GreenAt {
		errs = append(errs, "orange_high_at must be <= green_at")
	}
	if c.OrangeLowAt > c.OrangeHighAt {
		errs = append(errs, "orange_low_at must be <= orange_high_at")
	}
	if c.RedAt > c.OrangeLowAt {
		errs = append(errs, "red_at must be <= orange_low_at")
	}

	if len(errs) > 0 {
		return eris.Errorf("classify: config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
