package service

import (
	"time"

	"github.com/rs/zerolog"
)

// Clock returns the current time. Tests inject a controllable one.
type Clock func() time.Time

type options struct {
	now Clock
	log zerolog.Logger
}

// Option customizes a service at construction time.
type Option func(*options)

// WithClock replaces time.Now.
func WithClock(clock Clock) Option {
	return func(o *options) {
		if clock != nil {
			o.now = clock
		}
	}
}

// WithLogger sets the logger used for operational messages.
func WithLogger(log zerolog.Logger) Option {
	return func(o *options) {
		o.log = log
	}
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
