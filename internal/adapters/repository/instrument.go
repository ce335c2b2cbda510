package repository

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/okian/faceoff/pkg/metrics"
)

// Backend labels used on store metrics.
const (
	backendMemory   = "memory"
	backendRedis    = "redis"
	backendPostgres = "postgres"
)

// observe records latency for every call and an error for real failures.
// A miss is an answer, not a failure.
func observe(backend, operation string, start time.Time, err error) {
	metrics.RecordStoreLatency(backend, operation, float64(time.Since(start).Microseconds())/1000.0)
	if err != nil && !errors.Is(err, ErrNotFound) {
		metrics.RecordStoreError(backend, operation)
	}
}

func encodeSession(s Session) ([]byte, error) {
	if s.ItemIDs == nil {
		s.ItemIDs = []string{}
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode session %s: %w", s.UserID, err)
	}
	return b, nil
}

func decodeSession(b []byte) (Session, error) {
	var s Session
	if err := json.Unmarshal(b, &s); err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	return s, nil
}
