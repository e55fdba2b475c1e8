package alert

import "context"

// Repository defines persistence operations for alert configurations.
// Configurations are never hard-deleted; they are disabled through IsActive.
type Repository interface {
	ListActive(ctx context.Context) ([]*Configuration, error)
	ListAll(ctx context.Context) ([]*Configuration, error)
	GetByID(ctx context.Context, id int64) (*Configuration, error)
	GetByDaysBefore(ctx context.Context, daysBefore int) (*Configuration, error)
	Create(ctx context.Context, cfg *Configuration) error
	Update(ctx context.Context, cfg *Configuration) error // Name, DaysBefore, templates, IsActive
	// ToggleActive flips IsActive in a single statement and returns the stored row.
	ToggleActive(ctx context.Context, id int64) (*Configuration, error)
}
