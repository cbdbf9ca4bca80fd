package repository

import "time"

// Option applies a configuration option to a store.
type Option func(*options)

type options struct {
	initialRating int64
	now           func() time.Time
	maxOpenConns  int
}

func defaultOptions() options {
	return options{
		initialRating: DefaultInitialRating,
		now:           time.Now,
	}
}

func applyOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithInitialRating sets the rating assigned to new profiles.
func WithInitialRating(r int64) Option {
	return func(o *options) {
		o.initialRating = r
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithMaxOpenConns caps the SQL connection pool. Ignored by the memory store.
func WithMaxOpenConns(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxOpenConns = n
		}
	}
}
