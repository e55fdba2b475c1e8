package database

import (
	"context"
	"fmt"

	"bus_pass_service/internal/domain/buspass"

	"github.com/jmoiron/sqlx"
)

type PostgresCatalogRepository struct {
	db *sqlx.DB
}

func NewPostgresCatalogRepository(db *sqlx.DB) *PostgresCatalogRepository {
	return &PostgresCatalogRepository{db: db}
}

func (r *PostgresCatalogRepository) ListRoutes(ctx context.Context) ([]*buspass.Route, error) {
	query := `SELECT ` + routeColumns + ` FROM routes ORDER BY id`
	var routes []*buspass.Route
	if err := r.db.SelectContext(ctx, &routes, query); err != nil {
		return nil, fmt.Errorf("error listing routes: %w", err)
	}
	return routes, nil
}

func (r *PostgresCatalogRepository) CreateRoute(ctx context.Context, route *buspass.Route) error {
	query := `INSERT INTO routes (name, bus_number, stops, timings)
               VALUES ($1, $2, $3, $4)
               RETURNING id, created_at`
	err := r.db.QueryRowxContext(ctx, query, route.Name, route.BusNumber, route.Stops, route.Timings).
		Scan(&route.ID, &route.CreatedAt)
	if err != nil {
		return fmt.Errorf("error creating route: %w", err)
	}
	return nil
}

func (r *PostgresCatalogRepository) ListPricing(ctx context.Context) ([]*buspass.Pricing, error) {
	var pricing []*buspass.Pricing
	if err := r.db.SelectContext(ctx, &pricing, `SELECT id, location, price FROM pricing ORDER BY location`); err != nil {
		return nil, fmt.Errorf("error listing pricing: %w", err)
	}
	return pricing, nil
}

func (r *PostgresCatalogRepository) UpsertPricing(ctx context.Context, pricing *buspass.Pricing) error {
	query := `INSERT INTO pricing (location, price) VALUES ($1, $2)
               ON CONFLICT (location) DO UPDATE SET price = EXCLUDED.price
               RETURNING id`
	if err := r.db.QueryRowxContext(ctx, query, pricing.Location, pricing.Price).Scan(&pricing.ID); err != nil {
		return fmt.Errorf("error saving pricing for %q: %w", pricing.Location, err)
	}
	return nil
}

func (r *PostgresCatalogRepository) ListStudents(ctx context.Context) ([]*buspass.User, error) {
	query := `SELECT id, name, email, phone, role, created_at FROM users WHERE role = $1 ORDER BY id`
	var users []*buspass.User
	if err := r.db.SelectContext(ctx, &users, query, buspass.RoleStudent); err != nil {
		return nil, fmt.Errorf("error listing students: %w", err)
	}
	return users, nil
}

func (r *PostgresCatalogRepository) CreateUser(ctx context.Context, user *buspass.User, passwordHash string) error {
	query := `INSERT INTO users (name, email, phone, password, role)
               VALUES ($1, $2, $3, $4, $5)
               RETURNING id, created_at`
	err := r.db.QueryRowxContext(ctx, query, user.Name, user.Email, user.Phone, passwordHash, user.Role).
		Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err, usersEmailKey) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("error creating user: %w", err)
	}
	return nil
}

func (r *PostgresCatalogRepository) UpsertProfile(ctx context.Context, p *buspass.Profile) error {
	var semesterEnd any
	if p.SemesterEndDate.Valid {
		semesterEnd = p.SemesterEndDate.Time.Format(dateLayout)
	}
	query := `INSERT INTO profiles (user_id, prn, pass_no, location, semester, semester_end_date, route_id, bus_number, is_complete)
               VALUES ($1, $2, $3, $4, $5, $6::date, $7, $8, $9)
               ON CONFLICT (user_id) DO UPDATE SET
                   prn = EXCLUDED.prn,
                   pass_no = EXCLUDED.pass_no,
                   location = EXCLUDED.location,
                   semester = EXCLUDED.semester,
                   semester_end_date = EXCLUDED.semester_end_date,
                   route_id = EXCLUDED.route_id,
                   bus_number = EXCLUDED.bus_number,
                   is_complete = EXCLUDED.is_complete
               RETURNING id, created_at`
	err := r.db.QueryRowxContext(ctx, query,
		p.UserID, p.PRN, p.PassNo, p.Location, p.Semester, semesterEnd, p.RouteID, p.BusNumber, p.IsComplete,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		switch {
		case isUniqueViolation(err, profilesPRNKey):
			return ErrDuplicatePRN
		case isUniqueViolation(err, profilesPassNoKey):
			return ErrDuplicatePassNumber
		}
		return fmt.Errorf("error saving profile for user %d: %w", p.UserID, err)
	}
	return nil
}

func (r *PostgresCatalogRepository) ListPayments(ctx context.Context) ([]*buspass.Payment, error) {
	query := `SELECT id, user_id, pass_id, amount, payment_method, transaction_id, status, created_at
               FROM payments ORDER BY created_at DESC, id DESC`
	var payments []*buspass.Payment
	if err := r.db.SelectContext(ctx, &payments, query); err != nil {
		return nil, fmt.Errorf("error listing payments: %w", err)
	}
	return payments, nil
}
