package repository

import (
	"time"

	"github.com/okian/faceoff/pkg/logger"
)

// Option configures the networked stores.
type Option func(*storeOptions)

type storeOptions struct {
	ttl       time.Duration
	keyPrefix string
	log       logger.Logger
}

func defaultOptions() storeOptions {
	return storeOptions{keyPrefix: "faceoff:session:"}
}

// WithTTL expires idle sessions after d. Zero keeps them forever.
func WithTTL(d time.Duration) Option {
	return func(o *storeOptions) {
		if d >= 0 {
			o.ttl = d
		}
	}
}

// WithKeyPrefix changes the redis key prefix.
func WithKeyPrefix(prefix string) Option {
	return func(o *storeOptions) {
		if prefix != "" {
			o.keyPrefix = prefix
		}
	}
}

// WithLogger attaches a logger for background failures such as Count.
func WithLogger(l logger.Logger) Option {
	return func(o *storeOptions) {
		if l != nil {
			o.log = l
		}
	}
}
