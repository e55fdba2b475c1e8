// internal/domain/buspass/pass.go
package buspass

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx/types"
)

// PassStatus is the approval state of a bus pass.
type PassStatus string

const (
	PassStatusPending  PassStatus = "Pending"
	PassStatusApproved PassStatus = "Approved"
	PassStatusRejected PassStatus = "Rejected"
)

const RoleStudent = "student"

// User is a registered student or administrator.
type User struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Email     string    `db:"email" json:"email"`
	Phone     string    `db:"phone" json:"phone"`
	Role      string    `db:"role" json:"role"` // student or admin
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Profile holds the student's route assignment and pass number.
type Profile struct {
	ID              int64          `db:"id"`
	UserID          int64          `db:"user_id"`
	PRN             sql.NullString `db:"prn"`
	PassNo          sql.NullString `db:"pass_no"`
	Location        sql.NullString `db:"location"`
	Semester        sql.NullString `db:"semester"`
	SemesterEndDate sql.NullTime   `db:"semester_end_date"`
	RouteID         sql.NullInt64  `db:"route_id"`
	BusNumber       sql.NullString `db:"bus_number"`
	IsComplete      bool           `db:"is_complete"`
	CreatedAt       time.Time      `db:"created_at"`
}

// Stop is one pickup point on a route.
type Stop struct {
	Name string  `json:"name" validate:"required"`
	Lat  float64 `json:"lat,omitempty"`
	Lng  float64 `json:"lng,omitempty"`
}

// Stops is stored as a JSON array in a TEXT column.
type Stops []Stop

func (s Stops) Value() (driver.Value, error) {
	if len(s) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (s *Stops) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*s = nil
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("cannot scan %T into Stops", src)
	}
	if len(raw) == 0 {
		*s = nil
		return nil
	}
	return json.Unmarshal(raw, s)
}

// Has reports whether a stop with the given name is on the route, ignoring case.
func (s Stops) Has(name string) bool {
	name = strings.TrimSpace(name)
	for _, st := range s {
		if strings.EqualFold(st.Name, name) {
			return true
		}
	}
	return false
}

// Route is a bus route from the catalog.
type Route struct {
	ID        int64          `db:"id" json:"id"`
	Name      string         `db:"name" json:"name"`
	BusNumber string         `db:"bus_number" json:"bus_number"`
	Stops     Stops          `db:"stops" json:"stops"`
	Timings   types.JSONText `db:"timings" json:"timings"` // free-form timetable
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
}

// Pricing is the semester price of a pass for a pickup location.
type Pricing struct {
	ID       int64   `db:"id" json:"id"`
	Location string  `db:"location" json:"location"`
	Price    float64 `db:"price" json:"price"`
}

// Pass belongs to exactly one user and one route. ExpiryDate is a calendar
// date fixed at creation.
type Pass struct {
	ID         int64      `db:"id" json:"id"`
	UserID     int64      `db:"user_id" json:"user_id"`
	RouteID    int64      `db:"route_id" json:"route_id"`
	AmountPaid float64    `db:"amount_paid" json:"amount_paid"`
	IssueDate  time.Time  `db:"issue_date" json:"issue_date"`
	ExpiryDate time.Time  `db:"expiry_date" json:"expiry_date"`
	Status     PassStatus `db:"status" json:"status"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
}

// Payment is the (mock) payment backing a pass.
type Payment struct {
	ID            int64     `db:"id" json:"id"`
	UserID        int64     `db:"user_id" json:"user_id"`
	PassID        int64     `db:"pass_id" json:"pass_id"`
	Amount        float64   `db:"amount" json:"amount"`
	PaymentMethod string    `db:"payment_method" json:"payment_method"`
	TransactionID string    `db:"transaction_id" json:"transaction_id"`
	Status        string    `db:"status" json:"status"` // Completed, Failed
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}
