// internal/infra/database/postgres_notification_repository.go
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"bus_pass_service/internal/domain/notification"

	"github.com/jmoiron/sqlx"
)

const sentUniqueConstraint = "notification_logs_sent_unique"

const ledgerColumns = `id, user_id, pass_id, alert_config_id, notification_type, recipient, message, status, error_message, sent_at, created_at`

// PostgresNotificationRepository is the notification ledger backed by the
// 'notification_logs' table. Rows are only ever inserted.
type PostgresNotificationRepository struct {
	db *sqlx.DB
}

func NewPostgresNotificationRepository(db *sqlx.DB) *PostgresNotificationRepository {
	return &PostgresNotificationRepository{db: db}
}

// FindSent uses idx_notification_logs_unit for the point lookup.
func (r *PostgresNotificationRepository) FindSent(ctx context.Context, passID, configID int64, channel notification.Channel) (*notification.LogEntry, error) {
	query := `SELECT ` + ledgerColumns + `
               FROM notification_logs
               WHERE pass_id = $1 AND alert_config_id = $2 AND notification_type = $3 AND status = $4
               LIMIT 1`
	entry := &notification.LogEntry{}
	err := r.db.GetContext(ctx, entry, query, passID, configID, channel, notification.StatusSent)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotificationNotFound
		}
		return nil, fmt.Errorf("error looking up sent notification: %w", err)
	}
	return entry, nil
}

func (r *PostgresNotificationRepository) Append(ctx context.Context, entry *notification.LogEntry) error {
	query := `INSERT INTO notification_logs
               (user_id, pass_id, alert_config_id, notification_type, recipient, message, status, error_message, sent_at)
               VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
               RETURNING id, created_at`
	err := r.db.QueryRowxContext(ctx, query,
		entry.UserID, entry.PassID, entry.AlertConfigID, entry.Channel, entry.Recipient,
		entry.Message, entry.Status, entry.ErrorMessage, entry.SentAt,
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		if isUniqueViolation(err, sentUniqueConstraint) {
			return ErrDuplicateSentNotification
		}
		return fmt.Errorf("error appending notification log entry: %w", err)
	}
	return nil
}

func (r *PostgresNotificationRepository) ListRecent(ctx context.Context, limit int) ([]*notification.LogEntry, error) {
	query := `SELECT ` + ledgerColumns + ` FROM notification_logs ORDER BY created_at DESC, id DESC LIMIT $1`
	var entries []*notification.LogEntry
	if err := r.db.SelectContext(ctx, &entries, query, limit); err != nil {
		return nil, fmt.Errorf("error listing recent notifications: %w", err)
	}
	return entries, nil
}

func (r *PostgresNotificationRepository) ListByPass(ctx context.Context, passID int64) ([]*notification.LogEntry, error) {
	query := `SELECT ` + ledgerColumns + ` FROM notification_logs WHERE pass_id = $1 ORDER BY created_at, id`
	var entries []*notification.LogEntry
	if err := r.db.SelectContext(ctx, &entries, query, passID); err != nil {
		return nil, fmt.Errorf("error listing notifications for pass %d: %w", passID, err)
	}
	return entries, nil
}
