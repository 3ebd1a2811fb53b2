package notify

import (
	"context"
	"log/slog"

	"matchpoller/internal/client"
)

// Log writes notifications to the structured log. Used when no delivery
// channel is configured, and as a quiet sink in tests.
type Log struct {
	log *slog.Logger
}

// NewLog creates a Log notifier.
func NewLog(log *slog.Logger) *Log {
	return &Log{log: log}
}

// MatchFound implements Notifier.
func (l *Log) MatchFound(_ context.Context, check client.MatchCheck) error {
	l.log.Info("notification: match found",
		"match_id", check.MatchID, "distance_m", check.DistanceM, "score", check.MatchScore)
	return nil
}

// CountIncreased implements Notifier.
func (l *Log) CountIncreased(_ context.Context, previous, newCount int) error {
	l.log.Info("notification: active count increased", "previous", previous, "new", newCount)
	return nil
}

// ServiceActive implements Notifier.
func (l *Log) ServiceActive(context.Context) error {
	l.log.Info("notification: background matching active")
	return nil
}
