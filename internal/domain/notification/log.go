// internal/domain/notification/log.go
package notification

import (
	"database/sql"
	"time"
)

// Channel identifies the transport a notification went out on.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// Status is the outcome of a single dispatch attempt.
type Status string

const (
	StatusPending Status = "pending"
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
)

// LogEntry is one row of the notification ledger: a single (pass, configuration,
// channel) dispatch attempt. Corresponds to the 'notification_logs' table.
type LogEntry struct {
	ID            int64          `db:"id" json:"id"`
	UserID        int64          `db:"user_id" json:"user_id"`
	PassID        int64          `db:"pass_id" json:"pass_id"`
	AlertConfigID int64          `db:"alert_config_id" json:"alert_config_id"`
	Channel       Channel        `db:"notification_type" json:"notification_type"`
	Recipient     string         `db:"recipient" json:"recipient"` // email address or phone number
	Message       string         `db:"message" json:"message"`
	Status        Status         `db:"status" json:"status"`
	ErrorMessage  sql.NullString `db:"error_message" json:"-"`
	SentAt        sql.NullTime   `db:"sent_at" json:"-"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
}
