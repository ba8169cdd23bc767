package delay

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/matst80/delayline/internal/obs"
)

// ErrNegative is returned when a delay below zero is supplied.
var ErrNegative = errors.New("delay must be non-negative")

// Engine holds the artificial latency applied to backend-to-client forwarding.
// It is mutated only from the relay loop (via admin commands), but the metrics
// endpoint and tests read it concurrently, so the value is kept in an atomic.
type Engine struct {
	nanos atomic.Int64
}

// NewEngine creates an engine with the given initial delay.
func NewEngine(initial time.Duration) (*Engine, error) {
	e := &Engine{}
	if err := e.Set(initial); err != nil {
		return nil, err
	}
	return e, nil
}

// Get returns the current delay.
func (e *Engine) Get() time.Duration {
	return time.Duration(e.nanos.Load())
}

// Set replaces the current delay. Negative values are rejected and leave the
// previous value in place.
func (e *Engine) Set(d time.Duration) error {
	if d < 0 {
		return ErrNegative
	}
	e.nanos.Store(int64(d))
	obs.DelaySeconds.Set(d.Seconds())
	return nil
}

// FromMillis converts a millisecond count to a duration. Unit conversion from
// the external interfaces (startup argument, admin command) happens only here.
func FromMillis(ms float64) time.Duration {
	return time.Duration(ms * float64(time.Millisecond))
}
