// internal/domain/alert/configuration.go
package alert

import "time"

// Configuration is a day-offset rule pairing an expiry offset with the message
// templates for both notification channels.
// Corresponds to the 'alert_configurations' table.
type Configuration struct {
	ID            int64     `db:"id" json:"id"`
	Name          string    `db:"name" json:"name"`               // e.g. "1 Week Before Expiry"
	DaysBefore    int       `db:"days_before" json:"days_before"` // fires when expiry == today + DaysBefore
	EmailTemplate string    `db:"email_template" json:"email_template"`
	SMSTemplate   string    `db:"sms_template" json:"sms_template"`
	IsActive      bool      `db:"is_active" json:"is_active"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}
