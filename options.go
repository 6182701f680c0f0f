package subvisor

import (
	"time"

	"github.com/subvisor/subvisor/logger"
)

// Option configures a Subscription at construction time.
type Option func(*Subscription)

// WithLogger sets the logger used by the Subscription. By default no
// logging output is produced.
func WithLogger(l logger.Logger) Option {
	return func(s *Subscription) {
		s.logger = l
	}
}

// WithStopGracePeriod overrides how long StopListening waits for the
// listener to terminate cooperatively before detaching it.
// Non-positive values are ignored.
func WithStopGracePeriod(d time.Duration) Option {
	return func(s *Subscription) {
		if d > 0 {
			s.stopGracePeriod = d
		}
	}
}
