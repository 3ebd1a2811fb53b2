// Package notify delivers local notifications through pluggable sinks.
// Delivery is best-effort: a failing sink must never abort a poll cycle.
package notify

import (
	"context"

	"matchpoller/internal/client"
)

// Notifier is the interface for surfacing the three notification kinds.
type Notifier interface {
	// MatchFound announces a new nearby match.
	MatchFound(ctx context.Context, check client.MatchCheck) error
	// CountIncreased announces a rise in the nearby active-match count.
	CountIncreased(ctx context.Context, previous, newCount int) error
	// ServiceActive announces that background matching started. It maps to
	// the persistent low-priority notification of the mobile original.
	ServiceActive(ctx context.Context) error
}
