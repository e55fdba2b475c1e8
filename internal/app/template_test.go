package app

import (
	"database/sql"
	"testing"
	"time"

	"bus_pass_service/internal/domain/buspass"

	"github.com/stretchr/testify/assert"
)

func TestRenderTemplate(t *testing.T) {
	pc := PlaceholderContext{
		User:    &buspass.User{Name: "Asha", Email: "asha@example.com", Phone: "+919800000001"},
		Profile: &buspass.Profile{PassNo: sql.NullString{String: "BP00001234", Valid: true}},
		Route:   &buspass.Route{Name: "Kothrud - Campus", BusNumber: "MH12 AB 1234"},
		Pass: &buspass.Pass{
			IssueDate:  date(2024, 7, 1),
			ExpiryDate: date(2025, 3, 1),
			AmountPaid: 1500,
		},
		Now: time.Date(2025, 2, 22, 18, 30, 0, 0, time.UTC),
	}

	tests := []struct {
		name string
		tmpl string
		want string
	}{
		{"basic", "Hello {name}, expires {expiry_date}", "Hello Asha, expires 01/03/2025"},
		{"all fields",
			"{email} {phone} {pass_no} {route_name} {bus_number} {issue_date} {days_until_expiry} {amount_paid}",
			"asha@example.com +919800000001 BP00001234 Kothrud - Campus MH12 AB 1234 01/07/2024 7 ₹1500.00"},
		{"repeated token", "{name} {name}", "Asha Asha"},
		{"unknown token kept", "{name} {unknown}", "Asha {unknown}"},
		{"no tokens", "plain text", "plain text"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RenderTemplate(tt.tmpl, pc))
		})
	}
}

func TestRenderTemplate_MissingValues(t *testing.T) {
	pc := PlaceholderContext{
		User:    &buspass.User{Name: "Asha"},
		Profile: &buspass.Profile{},
		Pass:    &buspass.Pass{ExpiryDate: date(2025, 3, 1)},
		Now:     date(2025, 3, 1),
	}
	assert.Equal(t, "N/A N/A N/A N/A 0", RenderTemplate("{pass_no} {route_name} {bus_number} {issue_date} {days_until_expiry}", pc))
}

func TestDaysBetween(t *testing.T) {
	assert.Equal(t, 7, DaysBetween(time.Date(2025, 2, 22, 23, 59, 0, 0, time.UTC), date(2025, 3, 1)))
	assert.Equal(t, -1, DaysBetween(date(2025, 3, 2), date(2025, 3, 1)))
	assert.Equal(t, 0, DaysBetween(date(2025, 3, 1), time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)))
}
