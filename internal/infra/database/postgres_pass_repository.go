package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"bus_pass_service/internal/domain/buspass"

	"github.com/jmoiron/sqlx"
)

const dateLayout = "2006-01-02"

const passColumns = `id, user_id, route_id, amount_paid, issue_date, expiry_date, status, created_at`

const routeColumns = `id, name, bus_number, stops, timings, created_at`

const profileColumns = `id, user_id, prn, pass_no, location, semester, semester_end_date, route_id, bus_number, is_complete, created_at`

type PostgresPassRepository struct {
	db *sqlx.DB
}

func NewPostgresPassRepository(db *sqlx.DB) *PostgresPassRepository {
	return &PostgresPassRepository{db: db}
}

func (r *PostgresPassRepository) ListApprovedPassesExpiringOn(ctx context.Context, day time.Time) ([]*buspass.Pass, error) {
	query := `SELECT ` + passColumns + ` FROM passes WHERE status = $1 AND expiry_date = $2::date ORDER BY id`
	var passes []*buspass.Pass
	// The calendar date is sent as text so the session time zone cannot shift it.
	if err := r.db.SelectContext(ctx, &passes, query, buspass.PassStatusApproved, day.Format(dateLayout)); err != nil {
		return nil, fmt.Errorf("error listing approved passes expiring on %s: %w", day.Format(dateLayout), err)
	}
	return passes, nil
}

func (r *PostgresPassRepository) ListPassesByStatus(ctx context.Context, status buspass.PassStatus) ([]*buspass.Pass, error) {
	query := `SELECT ` + passColumns + ` FROM passes WHERE status = $1 ORDER BY created_at DESC`
	var passes []*buspass.Pass
	if err := r.db.SelectContext(ctx, &passes, query, status); err != nil {
		return nil, fmt.Errorf("error listing passes with status %s: %w", status, err)
	}
	return passes, nil
}

func (r *PostgresPassRepository) GetPass(ctx context.Context, id int64) (*buspass.Pass, error) {
	query := `SELECT ` + passColumns + ` FROM passes WHERE id = $1`
	p := &buspass.Pass{}
	if err := r.db.GetContext(ctx, p, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPassNotFound
		}
		return nil, fmt.Errorf("error getting pass by ID: %w", err)
	}
	return p, nil
}

func (r *PostgresPassRepository) UpdatePassStatus(ctx context.Context, id int64, status buspass.PassStatus) error {
	res, err := r.db.ExecContext(ctx, `UPDATE passes SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("error updating pass status: %w", err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrPassNotFound
	}
	return nil
}

func (r *PostgresPassRepository) GetUser(ctx context.Context, id int64) (*buspass.User, error) {
	query := `SELECT id, name, email, phone, role, created_at FROM users WHERE id = $1`
	u := &buspass.User{}
	if err := r.db.GetContext(ctx, u, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("error getting user by ID: %w", err)
	}
	return u, nil
}

func (r *PostgresPassRepository) GetProfileByUserID(ctx context.Context, userID int64) (*buspass.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE user_id = $1`
	p := &buspass.Profile{}
	if err := r.db.GetContext(ctx, p, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("error getting profile for user %d: %w", userID, err)
	}
	return p, nil
}

func (r *PostgresPassRepository) GetRoute(ctx context.Context, id int64) (*buspass.Route, error) {
	query := `SELECT ` + routeColumns + ` FROM routes WHERE id = $1`
	rt := &buspass.Route{}
	if err := r.db.GetContext(ctx, rt, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRouteNotFound
		}
		return nil, fmt.Errorf("error getting route by ID: %w", err)
	}
	return rt, nil
}

func (r *PostgresPassRepository) GetPricingByLocation(ctx context.Context, location string) (*buspass.Pricing, error) {
	query := `SELECT id, location, price FROM pricing WHERE location = $1`
	pr := &buspass.Pricing{}
	if err := r.db.GetContext(ctx, pr, query, location); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPricingNotFound
		}
		return nil, fmt.Errorf("error getting pricing for %q: %w", location, err)
	}
	return pr, nil
}

// CreateIssuedPass inserts the pass and its payment and stores the profile's
// new route assignment in a single transaction.
func (r *PostgresPassRepository) CreateIssuedPass(ctx context.Context, p *buspass.Pass, payment *buspass.Payment, profile *buspass.Profile) error {
	txn, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for pass issuance: %w", err)
	}
	defer txn.Rollback() // no-op after commit

	err = txn.QueryRowxContext(ctx,
		`INSERT INTO passes (user_id, route_id, amount_paid, issue_date, expiry_date, status)
         VALUES ($1, $2, $3, $4::date, $5::date, $6)
         RETURNING id, created_at`,
		p.UserID, p.RouteID, p.AmountPaid, p.IssueDate.Format(dateLayout), p.ExpiryDate.Format(dateLayout), p.Status,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return fmt.Errorf("error inserting pass: %w", err)
	}

	payment.PassID = p.ID
	err = txn.QueryRowxContext(ctx,
		`INSERT INTO payments (user_id, pass_id, amount, payment_method, transaction_id, status)
         VALUES ($1, $2, $3, $4, $5, $6)
         RETURNING id, created_at`,
		payment.UserID, payment.PassID, payment.Amount, payment.PaymentMethod, payment.TransactionID, payment.Status,
	).Scan(&payment.ID, &payment.CreatedAt)
	if err != nil {
		return fmt.Errorf("error inserting payment for pass %d: %w", p.ID, err)
	}

	_, err = txn.ExecContext(ctx,
		`UPDATE profiles SET location = $1, route_id = $2, bus_number = $3, pass_no = $4 WHERE id = $5`,
		profile.Location, profile.RouteID, profile.BusNumber, profile.PassNo, profile.ID,
	)
	if err != nil {
		if isUniqueViolation(err, "") {
			return ErrDuplicatePassNumber
		}
		return fmt.Errorf("error updating profile %d: %w", profile.ID, err)
	}

	return txn.Commit()
}
