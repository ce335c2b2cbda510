// Package repository persists ranking sessions and the datasets they rank.
package repository

import (
	"context"
	"time"

	"github.com/okian/faceoff/internal/domain/merge"
)

// Session is the persisted record of one user's ranking session.
type Session struct {
	UserID    string      `json:"user_id"`
	SessionID string      `json:"session_id"`
	ItemIDs   []string    `json:"item_ids"`
	State     merge.State `json:"state"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// SessionStore provides read/write access to ranking sessions keyed by user id.
type SessionStore interface {
	// Save creates or replaces the session for s.UserID.
	Save(ctx context.Context, s Session) error

	// Load returns the session for a user.
	// Returns ErrNotFound if the user has no prior state.
	Load(ctx context.Context, userID string) (Session, error)

	// Delete removes a user's session.
	// Returns ErrNotFound if there was nothing to remove.
	Delete(ctx context.Context, userID string) error

	// Count returns the number of stored sessions.
	Count(ctx context.Context) int
}

// DatasetStore holds ordered item id lists keyed by dataset name.
type DatasetStore interface {
	// Put replaces the dataset stored under key.
	Put(ctx context.Context, key string, ids []string) error

	// ItemIDs returns the dataset in stored order.
	// Returns ErrNotFound if the key is unknown.
	ItemIDs(ctx context.Context, key string) ([]string, error)
}
