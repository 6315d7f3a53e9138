package pool

import (
	"math/rand"
	"time"
)

// BackoffConfig shapes the delay between restart attempts for one pool
// member. Delays grow geometrically from InitialDelay, never exceed
// MaxDelay, and are jittered by up to half their value in either direction
// so members that died together do not reconnect in lockstep.
type BackoffConfig struct {
	InitialDelay time.Duration `mapstructure:"initial_delay"`
	MaxDelay     time.Duration `mapstructure:"max_delay"`
	Multiplier   float64       `mapstructure:"multiplier"`
	Jitter       bool          `mapstructure:"jitter"`
}

// DefaultBackoffConfig returns the restart schedule used when the
// configuration does not override it: 500ms doubling up to 30s, jittered.
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

func (c BackoffConfig) normalized() BackoffConfig {
	def := DefaultBackoffConfig()
	if c.InitialDelay <= 0 {
		c.InitialDelay = def.InitialDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = def.MaxDelay
	}
	if c.Multiplier < 1 {
		c.Multiplier = def.Multiplier
	}
	if c.MaxDelay < c.InitialDelay {
		c.MaxDelay = c.InitialDelay
	}
	return c
}

// NextBackoffDelay returns the delay before restart attempt number attempt,
// counted from zero for the first retry after a failure.
func NextBackoffDelay(cfg BackoffConfig, attempt int, rng *rand.Rand) time.Duration {
	cfg = cfg.normalized()

	delay := float64(cfg.InitialDelay)
	for i := 0; i < attempt; i++ {
		delay *= cfg.Multiplier
		if delay >= float64(cfg.MaxDelay) {
			delay = float64(cfg.MaxDelay)
			break
		}
	}

	if cfg.Jitter && rng != nil {
		delay *= 0.5 + rng.Float64()
	}
	if delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}
