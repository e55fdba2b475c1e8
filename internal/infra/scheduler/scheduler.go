package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"bus_pass_service/internal/app"
	"bus_pass_service/internal/domain/telegram"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const defaultSweepTimeout = 30 * time.Minute

// AlertScheduler triggers the expiry alert sweep on a cron spec.
type AlertScheduler struct {
	cronEngine   *cron.Cron
	sweeper      app.AlertSweeper
	logger       *logrus.Entry
	spec         string
	runOnStart   bool
	sweepTimeout time.Duration

	notifier    telegram.Client // optional admin summary
	adminChatID int64

	baseCtx context.Context
	cancel  context.CancelFunc
	startup sync.WaitGroup // run-on-start sweep, outside cron's job tracking
}

type Option func(*AlertScheduler)

// WithRunOnStart makes Start trigger one sweep immediately.
func WithRunOnStart(v bool) Option {
	return func(s *AlertScheduler) { s.runOnStart = v }
}

// WithAdminNotifier sends a short summary to the admin chat when a sweep had failures.
func WithAdminNotifier(c telegram.Client, chatID int64) Option {
	return func(s *AlertScheduler) {
		s.notifier = c
		s.adminChatID = chatID
	}
}

func WithSweepTimeout(d time.Duration) Option {
	return func(s *AlertScheduler) {
		if d > 0 {
			s.sweepTimeout = d
		}
	}
}

func NewAlertScheduler(sweeper app.AlertSweeper, spec string, loc *time.Location, logger *logrus.Entry, opts ...Option) *AlertScheduler {
	if loc == nil {
		loc = time.Local
	}
	cronLogger := cron.PrintfLogger(logger)
	ctx, cancel := context.WithCancel(context.Background())
	s := &AlertScheduler{
		cronEngine: cron.New(
			cron.WithLocation(loc),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		sweeper:      sweeper,
		logger:       logger,
		spec:         spec,
		sweepTimeout: defaultSweepTimeout,
		baseCtx:      ctx,
		cancel:       cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start registers the sweep job and starts the cron engine.
func (s *AlertScheduler) Start() error {
	s.logger.WithField("spec", s.spec).Info("Starting alert scheduler")

	if _, err := s.cronEngine.AddFunc(s.spec, s.runSweep); err != nil {
		return fmt.Errorf("could not add alert sweep job %q: %w", s.spec, err)
	}
	s.cronEngine.Start()

	if s.runOnStart {
		s.startup.Add(1)
		go func() {
			defer s.startup.Done()
			s.runSweep()
		}()
	}
	s.logger.Info("Alert scheduler started")
	return nil
}

func (s *AlertScheduler) runSweep() {
	ctx, cancel := context.WithTimeout(s.baseCtx, s.sweepTimeout)
	defer cancel()

	s.logger.Info("Scheduled alert sweep triggered")
	report, err := s.sweeper.RunSweepNow(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Scheduled alert sweep failed")
		s.notifyAdmin(fmt.Sprintf("Expiry alert sweep failed: %v", err))
		return
	}

	if report.Failed > 0 {
		s.notifyAdmin(fmt.Sprintf("Expiry alert sweep %s: %d sent, %d failed, %d already sent.",
			report.ID, report.Sent, report.Failed, report.AlreadySent))
	}
}

func (s *AlertScheduler) notifyAdmin(text string) {
	if s.notifier == nil || s.adminChatID == 0 {
		return
	}
	if err := s.notifier.SendText(s.adminChatID, text); err != nil {
		s.logger.WithError(err).Warn("Failed to send sweep summary to admin")
	}
}

// Stop stops scheduling new sweeps, cancels the running ones and waits for
// them, including the run-on-start sweep.
func (s *AlertScheduler) Stop() {
	s.logger.Info("Stopping alert scheduler...")
	s.cancel()
	ctx := s.cronEngine.Stop()
	<-ctx.Done()
	s.startup.Wait()
	s.logger.Info("Alert scheduler gracefully stopped")
}
