package registrar

import "time"

const (
	// DefaultMinCommitmentAge is the minimum delay between commit and register.
	DefaultMinCommitmentAge = 100 * time.Second

	// DefaultLockPeriod is both the initial lock length and the renewal extension.
	DefaultLockPeriod = 30 * 24 * time.Hour
)

// Config holds the registrar's timing parameters.
type Config struct {
	// MinCommitmentAge guards against revealing in the same block/instant as committing.
	MinCommitmentAge time.Duration

	// LockPeriod is added to the current time on register and to the end date on renew.
	LockPeriod time.Duration
}

// DefaultConfig returns the registrar's default parameters.
func DefaultConfig() Config {
	return Config{
		MinCommitmentAge: DefaultMinCommitmentAge,
		LockPeriod:       DefaultLockPeriod,
	}
}

func (c Config) withDefaults() Config {
	if c.MinCommitmentAge <= 0 {
		c.MinCommitmentAge = DefaultMinCommitmentAge
	}
	if c.LockPeriod <= 0 {
		c.LockPeriod = DefaultLockPeriod
	}
	return c
}
