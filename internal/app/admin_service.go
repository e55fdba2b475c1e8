package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"bus_pass_service/internal/domain/alert"
	"bus_pass_service/internal/domain/notification"
	idb "bus_pass_service/internal/infra/database"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

// Custom application-level errors for admin service
var ErrAdminNotAuthorized = fmt.Errorf("performing user is not authorized as an admin")
var ErrInvalidAlertConfig = fmt.Errorf("invalid alert configuration")

const (
	defaultRecentNotifications = 20
	maxRecentNotifications     = 500
)

const defaultEmailTemplate = "Hello {name}, your bus pass ({pass_no}) for {route_name} " +
	"expires on {expiry_date} (in {days_until_expiry} days). " +
	"Please renew to avoid interruption."

const defaultSMSTemplate = "Bus Pass {pass_no} expires in {days_until_expiry} days (on {expiry_date}). " +
	"Renew soon."

// DefaultAlertConfigurations are seeded on startup when no configuration with
// the same offset exists yet.
var DefaultAlertConfigurations = []AlertConfigInput{
	{Name: "3 Weeks Before Expiry", DaysBefore: 21, EmailTemplate: defaultEmailTemplate, SMSTemplate: defaultSMSTemplate, IsActive: true},
	{Name: "1 Week Before Expiry", DaysBefore: 7, EmailTemplate: defaultEmailTemplate, SMSTemplate: defaultSMSTemplate, IsActive: true},
}

// AlertConfigInput is the admin-editable part of an alert configuration.
type AlertConfigInput struct {
	Name          string `json:"name" validate:"required,max=100"`
	DaysBefore    int    `json:"days_before" validate:"gte=0,lte=3650"`
	EmailTemplate string `json:"email_template" validate:"required"`
	SMSTemplate   string `json:"sms_template" validate:"required"`
	IsActive      bool   `json:"is_active"`
}

// AdminService manages alert configurations and exposes the notification ledger.
type AdminService struct {
	alertRepo alert.Repository
	ledger    notification.Ledger
	validate  *validator.Validate
	logger    *logrus.Entry
}

func NewAdminService(ar alert.Repository, ledger notification.Ledger, logger *logrus.Entry) *AdminService {
	return &AdminService{
		alertRepo: ar,
		ledger:    ledger,
		validate:  validator.New(),
		logger:    logger,
	}
}

func (s *AdminService) validateInput(in *AlertConfigInput) error {
	in.Name = strings.TrimSpace(in.Name)
	if err := s.validate.Struct(in); err != nil {
		return validationError(ErrInvalidAlertConfig, err)
	}
	return nil
}

// validationError wraps kind with the list of failed fields.
func validationError(kind, err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fmt.Sprintf("%s failed '%s'", fe.Field(), fe.Tag()))
		}
		return fmt.Errorf("%w: %s", kind, strings.Join(fields, ", "))
	}
	return fmt.Errorf("%w: %v", kind, err)
}

func (s *AdminService) ListAlertConfigurations(ctx context.Context) ([]*alert.Configuration, error) {
	configs, err := s.alertRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list alert configurations: %w", err)
	}
	return configs, nil
}

// AddAlertConfiguration validates and stores a new configuration.
func (s *AdminService) AddAlertConfiguration(ctx context.Context, in AlertConfigInput) (*alert.Configuration, error) {
	if err := s.validateInput(&in); err != nil {
		return nil, err
	}

	cfg := &alert.Configuration{
		Name:          in.Name,
		DaysBefore:    in.DaysBefore,
		EmailTemplate: in.EmailTemplate,
		SMSTemplate:   in.SMSTemplate,
		IsActive:      in.IsActive,
	}
	if err := s.alertRepo.Create(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to create alert configuration in repository: %w", err)
	}

	s.logger.WithFields(logrus.Fields{"config_id": cfg.ID, "days_before": cfg.DaysBefore}).Info("Alert configuration added")
	return cfg, nil
}

// EditAlertConfiguration replaces the editable fields of an existing configuration.
func (s *AdminService) EditAlertConfiguration(ctx context.Context, id int64, in AlertConfigInput) (*alert.Configuration, error) {
	if err := s.validateInput(&in); err != nil {
		return nil, err
	}

	cfg, err := s.alertRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, idb.ErrAlertConfigNotFound) {
			return nil, idb.ErrAlertConfigNotFound
		}
		return nil, fmt.Errorf("failed to get alert configuration %d: %w", id, err)
	}

	cfg.Name = in.Name
	cfg.DaysBefore = in.DaysBefore
	cfg.EmailTemplate = in.EmailTemplate
	cfg.SMSTemplate = in.SMSTemplate
	cfg.IsActive = in.IsActive
	if err := s.alertRepo.Update(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to update alert configuration %d: %w", id, err)
	}

	s.logger.WithField("config_id", cfg.ID).Info("Alert configuration updated")
	return cfg, nil
}

// ToggleAlertConfiguration flips IsActive. Disabled configurations are skipped
// by the next sweep.
func (s *AdminService) ToggleAlertConfiguration(ctx context.Context, id int64) (*alert.Configuration, error) {
	cfg, err := s.alertRepo.ToggleActive(ctx, id)
	if err != nil {
		if errors.Is(err, idb.ErrAlertConfigNotFound) {
			return nil, idb.ErrAlertConfigNotFound
		}
		return nil, fmt.Errorf("failed to toggle alert configuration %d: %w", id, err)
	}

	s.logger.WithFields(logrus.Fields{"config_id": cfg.ID, "is_active": cfg.IsActive}).Info("Alert configuration toggled")
	return cfg, nil
}

// RecentNotifications returns the newest ledger entries. limit <= 0 means the default of 20.
func (s *AdminService) RecentNotifications(ctx context.Context, limit int) ([]*notification.LogEntry, error) {
	if limit <= 0 {
		limit = defaultRecentNotifications
	}
	if limit > maxRecentNotifications {
		limit = maxRecentNotifications
	}
	entries, err := s.ledger.ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent notifications: %w", err)
	}
	return entries, nil
}

func (s *AdminService) PassNotifications(ctx context.Context, passID int64) ([]*notification.LogEntry, error) {
	entries, err := s.ledger.ListByPass(ctx, passID)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications for pass %d: %w", passID, err)
	}
	return entries, nil
}

// EnsureDefaultAlertConfigurations seeds the default offsets. An offset that
// already has a configuration (active or not) is left untouched.
func (s *AdminService) EnsureDefaultAlertConfigurations(ctx context.Context) (int, error) {
	created := 0
	for _, def := range DefaultAlertConfigurations {
		_, err := s.alertRepo.GetByDaysBefore(ctx, def.DaysBefore)
		if err == nil {
			continue
		}
		if !errors.Is(err, idb.ErrAlertConfigNotFound) {
			return created, fmt.Errorf("failed to check alert configuration for %d days: %w", def.DaysBefore, err)
		}
		if _, err := s.AddAlertConfiguration(ctx, def); err != nil {
			return created, err
		}
		created++
	}
	return created, nil
}
