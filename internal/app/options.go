package service

import (
	"time"

	"github.com/okian/faceoff/internal/adapters/repository"
	"github.com/okian/faceoff/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithSessionStore sets where sessions are persisted. Defaults to memory.
func WithSessionStore(store repository.SessionStore) Option {
	return func(s *Service) {
		if store != nil {
			s.sessions = store
		}
	}
}

// WithDatasetStore sets where datasets are kept. Defaults to memory.
func WithDatasetStore(store repository.DatasetStore) Option {
	return func(s *Service) {
		if store != nil {
			s.datasets = store
		}
	}
}

// WithCatalog enables dataset import and artist lookup.
func WithCatalog(c Catalog) Option {
	return func(s *Service) {
		if c != nil {
			s.catalog = c
		}
	}
}

// WithDedupeSize sets the size of the choice idempotency cache.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithMaxItems caps how many items one session may rank.
func WithMaxItems(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxItems = n
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the time source used for updated_at.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithSessionIDs overrides session id generation.
func WithSessionIDs(gen func() string) Option {
	return func(s *Service) {
		if gen != nil {
			s.newSessionID = gen
		}
	}
}
