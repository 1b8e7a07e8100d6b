// Package backoff retries fallible operations, waiting between consecutive
// failures with a delay that grows by a fixed increment up to a maximum.
// The delay returns to its initial value as soon as an operation produces
// a value, so a long-lived connection that drops once reconnects quickly.
package backoff

import "time"

const (
	DefaultInitial   = time.Second
	DefaultIncrement = 5 * time.Second
	DefaultMax       = 5 * time.Minute
)

// Config defines the delay sequence between retries: the first delay is
// Initial, and each consecutive failure adds Increment, up to Max.
type Config struct {
	Initial   time.Duration
	Increment time.Duration
	Max       time.Duration
}

// DefaultConfig returns the delays used by Slack's reference clients:
// 1s, 6s, 11s, ... up to 5 minutes.
func DefaultConfig() Config {
	return Config{
		Initial:   DefaultInitial,
		Increment: DefaultIncrement,
		Max:       DefaultMax,
	}
}

func (c Config) normalize() Config {
	if c == (Config{}) {
		return DefaultConfig()
	}
	if c.Initial < 0 {
		c.Initial = 0
	}
	if c.Increment < 0 {
		c.Increment = 0
	}
	if c.Max < c.Initial {
		c.Max = c.Initial
	}
	return c
}

// State tracks the current delay of a single sequence of consecutive failures.
// It is not safe for concurrent use, and is not meant to be shared.
type State struct {
	cfg     Config
	current time.Duration
}

func NewState(cfg Config) *State {
	cfg = cfg.normalize()
	return &State{cfg: cfg, current: cfg.Initial}
}

// Next returns the delay to wait after a failure,
// and advances the state for the next consecutive one.
func (s *State) Next() time.Duration {
	d := s.current
	s.current = min(s.current+s.cfg.Increment, s.cfg.Max)
	return d
}

// Reset returns the delay to its initial value, after a success.
func (s *State) Reset() {
	s.current = s.cfg.Initial
}

// Current returns the delay that [State.Next] will return.
func (s *State) Current() time.Duration {
	return s.current
}
