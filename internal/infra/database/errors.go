package database

import (
	"errors"
	"fmt"

	"github.com/lib/pq"
)

var ErrAlertConfigNotFound = fmt.Errorf("alert configuration not found")
var ErrNotificationNotFound = fmt.Errorf("notification log entry not found")
var ErrDuplicateSentNotification = fmt.Errorf("a sent notification already exists for (pass, alert configuration, channel)")

var ErrPassNotFound = fmt.Errorf("pass not found")
var ErrUserNotFound = fmt.Errorf("user not found")
var ErrProfileNotFound = fmt.Errorf("profile not found")
var ErrRouteNotFound = fmt.Errorf("route not found")
var ErrPricingNotFound = fmt.Errorf("pricing not found for location")
var ErrDuplicatePassNumber = fmt.Errorf("pass number already assigned to another profile")
var ErrDuplicateEmail = fmt.Errorf("a user with this email already exists")
var ErrDuplicatePRN = fmt.Errorf("PRN already assigned to another profile")

const uniqueViolation = "23505"

// Default constraint names Postgres gives the UNIQUE columns in 000001.
const (
	usersEmailKey     = "users_email_key"
	profilesPRNKey    = "profiles_prn_key"
	profilesPassNoKey = "profiles_pass_no_key"
)

// isUniqueViolation reports whether err is a Postgres unique violation,
// optionally on a specific constraint.
func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	if pqErr.Code != uniqueViolation {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}
