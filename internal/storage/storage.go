// Package storage defines the persistence interface and its implementations.
package storage

import (
	"context"

	"matchpoller/internal/model"
)

// Storage is the interface for all persistence operations. It is the sole
// source of truth for the restart-resume decision.
type Storage interface {
	// LoadSession returns the persisted session, or the defaults when the
	// poller has never been configured.
	LoadSession(ctx context.Context) (model.Session, error)
	// SaveSession persists the full session.
	SaveSession(ctx context.Context, s model.Session) error

	// LastActiveCount returns the persisted count baseline. The second
	// return value is false when no observation has been recorded yet.
	LastActiveCount(ctx context.Context) (int, bool, error)
	// SaveLastActiveCount persists a new count baseline.
	SaveLastActiveCount(ctx context.Context, count int) error

	Close() error
}
