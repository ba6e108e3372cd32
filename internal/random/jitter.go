// Package random implements engine.Jitter: the uniform delay RFC 6762 §6
// requires before answering with a shared record, so that multiple
// responders on the same link don't all answer in lockstep.
package random

import (
	"math/rand/v2"
	"time"

	"github.com/hollowpath/mdnsengine/engine"
)

// Uniform picks a delay uniformly within [Min, Max] on every call.
type Uniform struct {
	Min, Max time.Duration
}

// NewUniform builds a Uniform jitter source bounded by the engine's
// standard shared-record pause window.
func NewUniform() Uniform {
	return Uniform{Min: engine.SharedJitterMin, Max: engine.SharedJitterMax}
}

func (u Uniform) PauseDelayMillis() int64 {
	lo, hi := u.Min.Milliseconds(), u.Max.Milliseconds()
	if hi <= lo {
		return lo
	}
	return lo + rand.Int64N(hi-lo+1)
}
