package ledger

import (
	"time"

	"github.com/google/uuid"
)

// Option configures a ledger backend.
type Option func(*options)

type options struct {
	retention time.Duration
	prefix    string
	newID     func() string
}

func applyOptions(opts []Option) options {
	o := options{
		retention: DefaultRetention,
		prefix:    "ranked:",
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithRetention sets how long unresolved tokens outlive their expiry.
func WithRetention(d time.Duration) Option {
	return func(o *options) {
		if d >= 0 {
			o.retention = d
		}
	}
}

// WithKeyPrefix namespaces Redis keys.
func WithKeyPrefix(p string) Option {
	return func(o *options) {
		if p != "" {
			o.prefix = p
		}
	}
}

// WithIDGenerator overrides vote id generation.
func WithIDGenerator(f func() string) Option {
	return func(o *options) {
		if f != nil {
			o.newID = f
		}
	}
}
