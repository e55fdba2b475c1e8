package buspass

import (
	"context"
	"time"
)

// Repository defines the pass-side persistence the alert engine and the pass
// service depend on.
type Repository interface {
	// ListApprovedPassesExpiringOn matches expiry_date exactly against the calendar date of day.
	ListApprovedPassesExpiringOn(ctx context.Context, day time.Time) ([]*Pass, error)
	ListPassesByStatus(ctx context.Context, status PassStatus) ([]*Pass, error)
	GetPass(ctx context.Context, id int64) (*Pass, error)
	UpdatePassStatus(ctx context.Context, id int64, status PassStatus) error

	GetUser(ctx context.Context, id int64) (*User, error)
	GetProfileByUserID(ctx context.Context, userID int64) (*Profile, error)
	GetRoute(ctx context.Context, id int64) (*Route, error)
	GetPricingByLocation(ctx context.Context, location string) (*Pricing, error)

	// CreateIssuedPass stores pass, payment and the profile update in one transaction.
	CreateIssuedPass(ctx context.Context, pass *Pass, payment *Payment, profile *Profile) error
}

// CatalogRepository covers the admin-maintained data a pass is issued
// against: routes, pricing, students and their profiles, and payments.
type CatalogRepository interface {
	ListRoutes(ctx context.Context) ([]*Route, error)
	CreateRoute(ctx context.Context, route *Route) error
	ListPricing(ctx context.Context) ([]*Pricing, error)
	// UpsertPricing creates the location's price or replaces the existing one.
	UpsertPricing(ctx context.Context, pricing *Pricing) error

	ListStudents(ctx context.Context) ([]*User, error)
	CreateUser(ctx context.Context, user *User, passwordHash string) error
	// UpsertProfile inserts or replaces the profile keyed by UserID.
	UpsertProfile(ctx context.Context, profile *Profile) error

	ListPayments(ctx context.Context) ([]*Payment, error)
}
