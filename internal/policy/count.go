package policy

import (
	"context"
	"fmt"

	"matchpoller/internal/storage"
)

// Increase describes a detected rise in the nearby active-match count.
type Increase struct {
	Previous int
	New      int
}

// CountPolicy decides whether an active-count observation warrants an
// increase notification, keeping its baseline in persistent storage.
type CountPolicy struct {
	store storage.Storage
}

// NewCountPolicy creates a CountPolicy backed by the given store.
func NewCountPolicy(store storage.Storage) *CountPolicy {
	return &CountPolicy{store: store}
}

// Observe records one count observation. It returns a non-nil Increase only
// when the count rose above the persisted baseline. The very first
// observation just seeds the baseline so a cold start never notifies;
// decreases update the baseline silently.
func (p *CountPolicy) Observe(ctx context.Context, count int) (*Increase, error) {
	prev, known, err := p.store.LastActiveCount(ctx)
	if err != nil {
		return nil, fmt.Errorf("load baseline: %w", err)
	}

	if !known {
		if err := p.store.SaveLastActiveCount(ctx, count); err != nil {
			return nil, fmt.Errorf("seed baseline: %w", err)
		}
		return nil, nil
	}

	if count > prev {
		if err := p.store.SaveLastActiveCount(ctx, count); err != nil {
			return nil, fmt.Errorf("save baseline: %w", err)
		}
		return &Increase{Previous: prev, New: count}, nil
	}

	if count != prev {
		if err := p.store.SaveLastActiveCount(ctx, count); err != nil {
			return nil, fmt.Errorf("save baseline: %w", err)
		}
	}
	return nil, nil
}
