// internal/app/expiry_alert_engine.go
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"bus_pass_service/internal/domain/alert"
	"bus_pass_service/internal/domain/buspass"
	"bus_pass_service/internal/domain/notification"
	idb "bus_pass_service/internal/infra/database"
	"bus_pass_service/internal/infra/metrics"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const defaultChannelTimeout = 10 * time.Second

var ErrSweepCancelled = fmt.Errorf("alert sweep cancelled before it could start")

// SweepReport summarizes one execution of the expiry alert sweep.
type SweepReport struct {
	ID               string    `json:"id"`
	StartedAt        time.Time `json:"started_at"`
	FinishedAt       time.Time `json:"finished_at"`
	ConfigsEvaluated int       `json:"configs_evaluated"`
	PassesMatched    int       `json:"passes_matched"`
	Sent             int       `json:"sent"`
	Failed           int       `json:"failed"`
	AlreadySent      int       `json:"already_sent"`   // units skipped by the ledger check
	PassesSkipped    int       `json:"passes_skipped"` // user/profile/route lookup failures
	UnitsSkipped     int       `json:"units_skipped"`  // ledger lookup failures, unknown channels
	Interrupted      bool      `json:"interrupted"`    // ctx ended mid-sweep; remaining units left for the next run
}

// AlertSweeper is the trigger surface used by the scheduler and the admin surfaces.
type AlertSweeper interface {
	RunSweepNow(ctx context.Context) (*SweepReport, error)
}

type unitOutcome int

const (
	unitSent unitOutcome = iota
	unitFailed
	unitAlreadySent
	unitSkipped
)

// ExpiryAlertEngine finds approved passes whose expiry matches an active alert
// configuration and notifies their owners over every configured channel.
// Sweeps are serialized; a caller arriving during a sweep waits for it to finish.
type ExpiryAlertEngine struct {
	alertRepo      alert.Repository
	passRepo       buspass.Repository
	ledger         notification.Ledger
	senders        []notification.Sender
	logger         *logrus.Entry
	channelTimeout time.Duration
	location       *time.Location
	clock          func() time.Time
	sweepSlot      chan struct{}
}

type EngineOption func(*ExpiryAlertEngine)

// WithChannelTimeout bounds every single Send call.
func WithChannelTimeout(d time.Duration) EngineOption {
	return func(e *ExpiryAlertEngine) {
		if d > 0 {
			e.channelTimeout = d
		}
	}
}

// WithLocation sets the time zone whose calendar defines "today".
func WithLocation(loc *time.Location) EngineOption {
	return func(e *ExpiryAlertEngine) {
		if loc != nil {
			e.location = loc
		}
	}
}

func WithClock(clock func() time.Time) EngineOption {
	return func(e *ExpiryAlertEngine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

func NewExpiryAlertEngine(
	ar alert.Repository,
	pr buspass.Repository,
	ledger notification.Ledger,
	senders []notification.Sender,
	logger *logrus.Entry,
	opts ...EngineOption,
) *ExpiryAlertEngine {
	e := &ExpiryAlertEngine{
		alertRepo:      ar,
		passRepo:       pr,
		ledger:         ledger,
		senders:        senders,
		logger:         logger,
		channelTimeout: defaultChannelTimeout,
		location:       time.Local,
		clock:          time.Now,
		sweepSlot:      make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RunSweepNow runs a sweep for the current moment. The periodic scheduler and
// the admin "run now" actions both go through here.
func (e *ExpiryAlertEngine) RunSweepNow(ctx context.Context) (*SweepReport, error) {
	return e.RunAlertSweep(ctx, e.clock())
}

// RunAlertSweep evaluates every active configuration against the calendar date
// of now. Only a failure to load the configurations is returned as an error;
// everything else is recorded in the ledger and the report.
func (e *ExpiryAlertEngine) RunAlertSweep(ctx context.Context, now time.Time) (*SweepReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSweepCancelled, err)
	}
	select {
	case e.sweepSlot <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrSweepCancelled, ctx.Err())
	}
	defer func() { <-e.sweepSlot }()

	started := time.Now()
	report := &SweepReport{ID: uuid.NewString(), StartedAt: e.clock()}
	sweepLog := e.logger.WithField("sweep_id", report.ID)

	configs, err := e.alertRepo.ListActive(ctx)
	if err != nil {
		metrics.SweepsTotal.WithLabelValues("error").Inc()
		sweepLog.WithError(err).Error("Failed to load active alert configurations, aborting sweep")
		return nil, fmt.Errorf("failed to load active alert configurations: %w", err)
	}
	if len(configs) == 0 {
		sweepLog.Info("No active alert configurations; nothing to do")
	}

	today := CalendarDate(now.In(e.location))
	for _, cfg := range configs {
		if ctx.Err() != nil {
			report.Interrupted = true
			break
		}
		report.ConfigsEvaluated++
		e.processConfiguration(ctx, sweepLog, cfg, today, report)
	}

	if ctx.Err() != nil {
		report.Interrupted = true
		sweepLog.WithError(ctx.Err()).Warn("Alert sweep interrupted, unsent units are left for the next sweep")
	}
	report.FinishedAt = e.clock()
	metrics.SweepsTotal.WithLabelValues("ok").Inc()
	metrics.SweepDuration.Observe(time.Since(started).Seconds())

	sweepLog.WithFields(logrus.Fields{
		"configs_evaluated": report.ConfigsEvaluated,
		"passes_matched":    report.PassesMatched,
		"sent":              report.Sent,
		"failed":            report.Failed,
		"already_sent":      report.AlreadySent,
		"passes_skipped":    report.PassesSkipped,
	}).Info("Expiry alert sweep completed")
	return report, nil
}

func (e *ExpiryAlertEngine) processConfiguration(ctx context.Context, log *logrus.Entry, cfg *alert.Configuration, today time.Time, report *SweepReport) {
	cfgLog := log.WithFields(logrus.Fields{"config_id": cfg.ID, "days_before": cfg.DaysBefore})
	if cfg.DaysBefore < 0 {
		cfgLog.Warn("Alert configuration has a negative offset, skipping")
		return
	}

	targetDate := today.AddDate(0, 0, cfg.DaysBefore)
	passes, err := e.passRepo.ListApprovedPassesExpiringOn(ctx, targetDate)
	if err != nil {
		cfgLog.WithError(err).Error("Failed to list passes expiring on target date")
		return
	}
	cfgLog.WithFields(logrus.Fields{
		"target_date": targetDate.Format("2006-01-02"),
		"passes":      len(passes),
	}).Debug("Evaluated alert configuration")

	for _, p := range passes {
		if ctx.Err() != nil {
			return
		}
		// Only approved passes are ever alerted.
		if p.Status != buspass.PassStatusApproved {
			continue
		}
		report.PassesMatched++
		e.processPass(ctx, cfgLog.WithField("pass_id", p.ID), cfg, p, report)
	}
}

func (e *ExpiryAlertEngine) processPass(ctx context.Context, log *logrus.Entry, cfg *alert.Configuration, p *buspass.Pass, report *SweepReport) {
	pc, err := e.placeholderContext(ctx, p)
	if err != nil {
		log.WithError(err).Error("Failed to load pass details, skipping pass")
		report.PassesSkipped++
		return
	}

	outcomes := make([]unitOutcome, len(e.senders))
	var g errgroup.Group
	for i, sender := range e.senders {
		g.Go(func() error {
			outcomes[i] = e.dispatchUnit(ctx, log, cfg, p, pc, sender)
			return nil
		})
	}
	_ = g.Wait() // units never return errors; failures live in the ledger

	for _, o := range outcomes {
		switch o {
		case unitSent:
			report.Sent++
		case unitFailed:
			report.Failed++
		case unitAlreadySent:
			report.AlreadySent++
		case unitSkipped:
			report.UnitsSkipped++
		}
	}
}

// placeholderContext loads the user (required) plus profile and route (optional).
func (e *ExpiryAlertEngine) placeholderContext(ctx context.Context, p *buspass.Pass) (PlaceholderContext, error) {
	pc := PlaceholderContext{Pass: p}

	user, err := e.passRepo.GetUser(ctx, p.UserID)
	if err != nil {
		return pc, fmt.Errorf("failed to get user %d: %w", p.UserID, err)
	}
	pc.User = user

	profile, err := e.passRepo.GetProfileByUserID(ctx, p.UserID)
	switch {
	case err == nil:
		pc.Profile = profile
	case !errors.Is(err, idb.ErrProfileNotFound):
		return pc, fmt.Errorf("failed to get profile for user %d: %w", p.UserID, err)
	}

	route, err := e.passRepo.GetRoute(ctx, p.RouteID)
	switch {
	case err == nil:
		pc.Route = route
	case !errors.Is(err, idb.ErrRouteNotFound):
		return pc, fmt.Errorf("failed to get route %d: %w", p.RouteID, err)
	}

	return pc, nil
}

// dispatchUnit handles one (pass, configuration, channel) unit: ledger check,
// render, send, record.
func (e *ExpiryAlertEngine) dispatchUnit(ctx context.Context, log *logrus.Entry, cfg *alert.Configuration, p *buspass.Pass, pc PlaceholderContext, sender notification.Sender) unitOutcome {
	channel := sender.Channel()
	unitLog := log.WithField("channel", channel)

	if ctx.Err() != nil {
		return unitSkipped
	}

	tmpl, recipient, ok := channelTarget(cfg, pc.User, channel)
	if !ok {
		unitLog.Warn("No template for channel, skipping")
		return unitSkipped
	}

	_, err := e.ledger.FindSent(ctx, p.ID, cfg.ID, channel)
	if err == nil {
		return unitAlreadySent
	}
	if !errors.Is(err, idb.ErrNotificationNotFound) {
		unitLog.WithError(err).Error("Ledger lookup failed, not sending")
		return unitSkipped
	}

	pc.Now = e.clock().In(e.location)
	message := RenderTemplate(tmpl, pc)
	subject := fmt.Sprintf("Bus Pass Expiry Alert - %s", cfg.Name)

	entry := &notification.LogEntry{
		UserID:        pc.User.ID,
		PassID:        p.ID,
		AlertConfigID: cfg.ID,
		Channel:       channel,
		Recipient:     recipient,
		Message:       message,
	}

	outcome := unitSent
	if sendErr := e.send(ctx, sender, recipient, subject, message); sendErr != nil {
		outcome = unitFailed
		entry.Status = notification.StatusFailed
		entry.ErrorMessage = sql.NullString{String: sendErr.Error(), Valid: true}
		unitLog.WithError(sendErr).WithField("recipient", recipient).Warn("Notification dispatch failed")
	} else {
		entry.Status = notification.StatusSent
		entry.SentAt = sql.NullTime{Time: e.clock(), Valid: true}
		unitLog.WithField("recipient", recipient).Info("Notification sent")
	}
	metrics.NotificationsTotal.WithLabelValues(string(channel), string(entry.Status)).Inc()

	// The attempt already happened, so it is recorded even when the trigger went away.
	if err := e.ledger.Append(context.WithoutCancel(ctx), entry); err != nil {
		if errors.Is(err, idb.ErrDuplicateSentNotification) {
			unitLog.Warn("Concurrent sweep already recorded this notification as sent")
			return unitAlreadySent
		}
		unitLog.WithError(err).Error("Failed to record notification in ledger")
	}
	return outcome
}

// send runs one Send call bounded by the channel timeout, even when the sender
// ignores its context. A started send is not aborted when ctx is cancelled;
// only the channel timeout can cut it short.
func (e *ExpiryAlertEngine) send(ctx context.Context, sender notification.Sender, recipient, subject, body string) error {
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.channelTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- sender.Send(sendCtx, recipient, subject, body) }()

	select {
	case err := <-done:
		return err
	case <-sendCtx.Done():
		select {
		case err := <-done:
			return err
		default:
		}
		return fmt.Errorf("%s channel did not respond within %s: %w", sender.Channel(), e.channelTimeout, sendCtx.Err())
	}
}

func channelTarget(cfg *alert.Configuration, user *buspass.User, channel notification.Channel) (tmpl, recipient string, ok bool) {
	switch channel {
	case notification.ChannelEmail:
		return cfg.EmailTemplate, user.Email, true
	case notification.ChannelSMS:
		return cfg.SMSTemplate, user.Phone, true
	default:
		return "", "", false
	}
}
