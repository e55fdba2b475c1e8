package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"bus_pass_service/internal/app"
	"bus_pass_service/internal/domain/notification"
	"bus_pass_service/internal/infra/channel"
	"bus_pass_service/internal/infra/config"
	idb "bus_pass_service/internal/infra/database"
	"bus_pass_service/internal/infra/httpapi"
	"bus_pass_service/internal/infra/logger"
	"bus_pass_service/internal/infra/metrics"
	"bus_pass_service/internal/infra/scheduler"
	"bus_pass_service/internal/infra/telegram"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
	"gopkg.in/telebot.v3"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Could not load application configuration: %v", err)
	}

	logger.Init(cfg)
	mainLogger := logger.For("main")
	mainLogger.WithFields(logrus.Fields{
		"environment": cfg.Environment,
		"http_addr":   cfg.HTTPAddr,
		"sweep_spec":  cfg.AlertSweepSpec,
		"timezone":    cfg.AlertLocation.String(),
	}).Info("Configuration loaded")

	db, err := idb.NewPostgresConnection(cfg.DatabaseURL, cfg.DBMaxOpenConns, cfg.DBMaxIdleConns)
	if err != nil {
		mainLogger.WithError(err).Fatal("Could not connect to database")
	}
	defer db.Close()
	mainLogger.Info("Database connection established")

	if err := idb.RunMigrations(db); err != nil {
		mainLogger.WithError(err).Fatal("Could not apply database migrations")
	}

	alertRepo := idb.NewPostgresAlertRepository(db)
	notificationRepo := idb.NewPostgresNotificationRepository(db)
	passRepo := idb.NewPostgresPassRepository(db)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	adminService := app.NewAdminService(alertRepo, notificationRepo, logger.For("admin_service"))
	if cfg.SeedDefaultAlerts {
		created, err := adminService.EnsureDefaultAlertConfigurations(ctx)
		if err != nil {
			mainLogger.WithError(err).Fatal("Could not seed default alert configurations")
		}
		mainLogger.WithField("created", created).Info("Default alert configurations ensured")
	}
	passService := app.NewPassService(passRepo, logger.For("pass_service"), cfg.AlertLocation)
	catalogService := app.NewCatalogService(passRepo, idb.NewPostgresCatalogRepository(db), logger.For("catalog_service"))

	senders := buildSenders(cfg)
	engine := app.NewExpiryAlertEngine(
		alertRepo,
		passRepo,
		notificationRepo,
		senders,
		logger.For("expiry_alert_engine"),
		app.WithChannelTimeout(cfg.AlertChannelTimeout),
		app.WithLocation(cfg.AlertLocation),
	)
	metrics.Register()

	var bot *telebot.Bot
	if cfg.BotEnabled() {
		bot, err = newBot(cfg)
		if err != nil {
			mainLogger.WithError(err).Fatal("Could not create Telegram bot")
		}
		botLogger := logger.For("telegram")
		telegram.RegisterBotCommands(bot, cfg.AdminTelegramID, botLogger)
		telegram.RegisterAdminHandlers(ctx, bot, telegram.AdminDeps{
			Alerts:  adminService,
			Passes:  passService,
			Sweeper: engine,
		}, cfg.AdminTelegramID, botLogger)
		mainLogger.Info("Telegram admin bot handlers registered")
	}

	schedOpts := []scheduler.Option{scheduler.WithRunOnStart(cfg.AlertSweepOnStart)}
	if bot != nil {
		schedOpts = append(schedOpts, scheduler.WithAdminNotifier(telegram.NewTelebotAdapter(bot), cfg.AdminTelegramID))
	}
	alertScheduler := scheduler.NewAlertScheduler(engine, cfg.AlertSweepSpec, cfg.AlertLocation, logger.For("scheduler"), schedOpts...)
	if err := alertScheduler.Start(); err != nil {
		mainLogger.WithError(err).Fatal("Could not start alert scheduler")
	}

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(adminService, passService, catalogService, engine, cfg.AdminAPIToken, logger.For("http")),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		mainLogger.WithField("addr", cfg.HTTPAddr).Info("Admin HTTP API listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			mainLogger.WithError(err).Error("HTTP server stopped unexpectedly")
			stop()
		}
	}()

	if bot != nil {
		go bot.Start()
	}

	mainLogger.Info("Application setup complete")
	<-ctx.Done()

	mainLogger.Info("Shutting down application...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		mainLogger.WithError(err).Warn("HTTP server shutdown did not complete cleanly")
	}
	if bot != nil {
		bot.Stop()
	}
	alertScheduler.Stop()
	mainLogger.Info("Application shut down gracefully")
}

func buildSenders(cfg *config.AppConfig) []notification.Sender {
	email := channel.NewEmailSender(cfg.SMTP, logger.For("email"))

	var backends []channel.SMSBackend
	if cfg.Twilio.Enabled() {
		backends = append(backends, channel.NewTwilioBackend(cfg.Twilio))
	}
	sms := channel.NewSMSSender(logger.For("sms"), cfg.SMS.FallbackOnError, backends...)

	var limiter *rate.Limiter
	if cfg.SMS.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.SMS.RatePerSecond), 1)
	}
	return []notification.Sender{email, channel.RateLimited(sms, limiter)}
}

func newBot(cfg *config.AppConfig) (*telebot.Bot, error) {
	botLogger := logger.For("telebot")
	return telebot.NewBot(telebot.Settings{
		Token:  cfg.TelegramToken,
		Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c telebot.Context) {
			entry := botLogger.WithError(err)
			if c != nil && c.Sender() != nil {
				entry = entry.WithField("sender_id", c.Sender().ID)
			}
			entry.Error("Telegram handler error")
		},
	})
}
