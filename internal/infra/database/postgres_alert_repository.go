package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"bus_pass_service/internal/domain/alert"

	"github.com/jmoiron/sqlx"
)

const alertColumns = `id, name, days_before, email_template, sms_template, is_active, created_at, updated_at`

type PostgresAlertRepository struct {
	db *sqlx.DB
}

func NewPostgresAlertRepository(db *sqlx.DB) *PostgresAlertRepository {
	return &PostgresAlertRepository{db: db}
}

func (r *PostgresAlertRepository) ListActive(ctx context.Context) ([]*alert.Configuration, error) {
	query := `SELECT ` + alertColumns + ` FROM alert_configurations WHERE is_active = TRUE ORDER BY days_before DESC, id`
	var configs []*alert.Configuration
	if err := r.db.SelectContext(ctx, &configs, query); err != nil {
		return nil, fmt.Errorf("error listing active alert configurations: %w", err)
	}
	return configs, nil
}

func (r *PostgresAlertRepository) ListAll(ctx context.Context) ([]*alert.Configuration, error) {
	query := `SELECT ` + alertColumns + ` FROM alert_configurations ORDER BY days_before DESC, id`
	var configs []*alert.Configuration
	if err := r.db.SelectContext(ctx, &configs, query); err != nil {
		return nil, fmt.Errorf("error listing alert configurations: %w", err)
	}
	return configs, nil
}

func (r *PostgresAlertRepository) GetByID(ctx context.Context, id int64) (*alert.Configuration, error) {
	query := `SELECT ` + alertColumns + ` FROM alert_configurations WHERE id = $1`
	cfg := &alert.Configuration{}
	if err := r.db.GetContext(ctx, cfg, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAlertConfigNotFound
		}
		return nil, fmt.Errorf("error getting alert configuration by ID: %w", err)
	}
	return cfg, nil
}

func (r *PostgresAlertRepository) GetByDaysBefore(ctx context.Context, daysBefore int) (*alert.Configuration, error) {
	query := `SELECT ` + alertColumns + ` FROM alert_configurations WHERE days_before = $1 ORDER BY id LIMIT 1`
	cfg := &alert.Configuration{}
	if err := r.db.GetContext(ctx, cfg, query, daysBefore); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAlertConfigNotFound
		}
		return nil, fmt.Errorf("error getting alert configuration by days_before: %w", err)
	}
	return cfg, nil
}

func (r *PostgresAlertRepository) Create(ctx context.Context, cfg *alert.Configuration) error {
	query := `INSERT INTO alert_configurations (name, days_before, email_template, sms_template, is_active)
               VALUES ($1, $2, $3, $4, $5)
               RETURNING id, created_at, updated_at`
	err := r.db.QueryRowxContext(ctx, query, cfg.Name, cfg.DaysBefore, cfg.EmailTemplate, cfg.SMSTemplate, cfg.IsActive).
		Scan(&cfg.ID, &cfg.CreatedAt, &cfg.UpdatedAt)
	if err != nil {
		return fmt.Errorf("error creating alert configuration: %w", err)
	}
	return nil
}

func (r *PostgresAlertRepository) Update(ctx context.Context, cfg *alert.Configuration) error {
	query := `UPDATE alert_configurations
               SET name = $1, days_before = $2, email_template = $3, sms_template = $4, is_active = $5, updated_at = NOW()
               WHERE id = $6
               RETURNING updated_at`
	err := r.db.QueryRowxContext(ctx, query, cfg.Name, cfg.DaysBefore, cfg.EmailTemplate, cfg.SMSTemplate, cfg.IsActive, cfg.ID).
		Scan(&cfg.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrAlertConfigNotFound
		}
		return fmt.Errorf("error updating alert configuration: %w", err)
	}
	return nil
}

func (r *PostgresAlertRepository) ToggleActive(ctx context.Context, id int64) (*alert.Configuration, error) {
	query := `UPDATE alert_configurations
               SET is_active = NOT is_active, updated_at = NOW()
               WHERE id = $1
               RETURNING ` + alertColumns
	cfg := &alert.Configuration{}
	if err := r.db.GetContext(ctx, cfg, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAlertConfigNotFound
		}
		return nil, fmt.Errorf("error toggling alert configuration: %w", err)
	}
	return cfg, nil
}
