package app

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"bus_pass_service/internal/domain/buspass"
)

const notAvailable = "N/A"

const displayDateLayout = "02/01/2006"

// PlaceholderContext carries the values a message template may reference.
// Profile and Route are optional; missing values render as "N/A".
type PlaceholderContext struct {
	User    *buspass.User
	Profile *buspass.Profile
	Route   *buspass.Route
	Pass    *buspass.Pass
	Now     time.Time // reference for {days_until_expiry}
}

// RenderTemplate substitutes the known placeholders in tmpl. Unknown tokens are
// left verbatim and every occurrence of a known token is replaced.
func RenderTemplate(tmpl string, pc PlaceholderContext) string {
	return placeholderReplacer(pc).Replace(tmpl)
}

func placeholderReplacer(pc PlaceholderContext) *strings.Replacer {
	name, email, phone := notAvailable, notAvailable, notAvailable
	if pc.User != nil {
		name, email, phone = pc.User.Name, pc.User.Email, pc.User.Phone
	}

	passNo := notAvailable
	if pc.Profile != nil && pc.Profile.PassNo.Valid && pc.Profile.PassNo.String != "" {
		passNo = pc.Profile.PassNo.String
	}

	routeName, busNumber := notAvailable, notAvailable
	if pc.Route != nil {
		routeName, busNumber = pc.Route.Name, pc.Route.BusNumber
	}

	issueDate, expiryDate, daysLeft, amount := notAvailable, notAvailable, notAvailable, notAvailable
	if pc.Pass != nil {
		issueDate = formatDisplayDate(pc.Pass.IssueDate)
		expiryDate = formatDisplayDate(pc.Pass.ExpiryDate)
		daysLeft = strconv.Itoa(DaysBetween(pc.Now, pc.Pass.ExpiryDate))
		amount = FormatAmount(pc.Pass.AmountPaid)
	}

	return strings.NewReplacer(
		"{name}", name,
		"{email}", email,
		"{phone}", phone,
		"{pass_no}", passNo,
		"{route_name}", routeName,
		"{bus_number}", busNumber,
		"{issue_date}", issueDate,
		"{expiry_date}", expiryDate,
		"{days_until_expiry}", daysLeft,
		"{amount_paid}", amount,
	)
}

func formatDisplayDate(t time.Time) string {
	if t.IsZero() {
		return notAvailable
	}
	return t.Format(displayDateLayout)
}

// FormatAmount renders a rupee amount with two decimals, e.g. "₹1500.00".
func FormatAmount(amount float64) string {
	return fmt.Sprintf("₹%.2f", amount)
}

// CalendarDate returns midnight UTC of t's calendar date in t's own location.
// Two CalendarDate values can be compared and subtracted without DST drift.
func CalendarDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the number of calendar days from the date of from to the
// date of to. It is negative when to lies before from.
func DaysBetween(from, to time.Time) int {
	return int(CalendarDate(to).Sub(CalendarDate(from)).Hours() / 24)
}
