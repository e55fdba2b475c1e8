package notification

import "context"

// Ledger is the durable record of notification attempts. It is both the audit
// trail and the deduplication source of truth: at most one entry with
// StatusSent may exist per (pass, configuration, channel).
type Ledger interface {
	// FindSent returns the sent entry for the unit, or an error wrapping
	// database.ErrNotificationNotFound when the unit has not been delivered yet.
	FindSent(ctx context.Context, passID, configID int64, channel Channel) (*LogEntry, error)
	Append(ctx context.Context, entry *LogEntry) error
	ListRecent(ctx context.Context, limit int) ([]*LogEntry, error)
	ListByPass(ctx context.Context, passID int64) ([]*LogEntry, error)
}
