package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"bus_pass_service/internal/app"
	"bus_pass_service/internal/domain/buspass"
	idb "bus_pass_service/internal/infra/database"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

const unauthorizedReply = "Error: you are not allowed to run this command."

// AdminDeps groups the services the admin commands operate on.
type AdminDeps struct {
	Alerts  *app.AdminService
	Passes  *app.PassService
	Sweeper app.AlertSweeper
}

// RegisterAdminHandlers registers the admin commands and the alert toggle callback.
func RegisterAdminHandlers(ctx context.Context, b *telebot.Bot, deps AdminDeps, adminTelegramID int64, baseLogger *logrus.Entry) {
	// adminOnly wraps a handler with the sender check and per-command logging.
	adminOnly := func(command string, fn func(c telebot.Context, log *logrus.Entry) error) telebot.HandlerFunc {
		return func(c telebot.Context) error {
			handlerLogger := baseLogger.WithFields(logrus.Fields{
				"handler":   command,
				"sender_id": c.Sender().ID,
			})
			handlerLogger.Info("Command received")
			if c.Sender().ID != adminTelegramID {
				handlerLogger.WithError(app.ErrAdminNotAuthorized).Warn("Unauthorized access attempt")
				return c.Send(unauthorizedReply)
			}
			return fn(c, handlerLogger)
		}
	}

	b.Handle("/alerts", adminOnly("/alerts", func(c telebot.Context, log *logrus.Entry) error {
		configs, err := deps.Alerts.ListAlertConfigurations(ctx)
		if err != nil {
			log.WithError(err).Error("Failed to list alert configurations")
			return c.Send("An error occurred while loading alert configurations.")
		}
		return c.Send(formatAlertConfigs(configs), alertToggleMarkup(configs))
	}))

	b.Handle("/run_alerts", adminOnly("/run_alerts", func(c telebot.Context, log *logrus.Entry) error {
		_ = c.Send("Running the expiry alert sweep...")
		report, err := deps.Sweeper.RunSweepNow(ctx)
		if err != nil {
			log.WithError(err).Error("Manual alert sweep failed")
			return c.Send(fmt.Sprintf("Alert sweep failed: %s", err.Error()))
		}
		return c.Send(formatSweepReport(report))
	}))

	b.Handle("/notifications", adminOnly("/notifications", func(c telebot.Context, log *logrus.Entry) error {
		limit := 0
		if args := c.Args(); len(args) > 0 {
			n, err := strconv.Atoi(args[0])
			if err != nil || n <= 0 {
				return c.Send("Invalid format. Use: /notifications [n]")
			}
			limit = n
		}
		entries, err := deps.Alerts.RecentNotifications(ctx, limit)
		if err != nil {
			log.WithError(err).Error("Failed to list notifications")
			return c.Send("An error occurred while loading notifications.")
		}
		return c.Send(formatNotifications(entries))
	}))

	b.Handle("/pending", adminOnly("/pending", func(c telebot.Context, log *logrus.Entry) error {
		passes, err := deps.Passes.PendingPasses(ctx)
		if err != nil {
			log.WithError(err).Error("Failed to list pending passes")
			return c.Send("An error occurred while loading pending passes.")
		}
		return c.Send(formatPendingPasses(passes))
	}))

	passTransition := func(command string, apply func(context.Context, int64) (*buspass.Pass, error)) telebot.HandlerFunc {
		return adminOnly(command, func(c telebot.Context, log *logrus.Entry) error {
			args := c.Args()
			if len(args) != 1 {
				return c.Send(fmt.Sprintf("Invalid format. Use: %s <pass_id>", command))
			}
			passID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return c.Send("Error: pass id must be a number.")
			}
			log = log.WithField("pass_id", passID)

			p, err := apply(ctx, passID)
			switch {
			case err == nil:
				log.WithField("status", p.Status).Info("Pass status updated")
				return c.Send(fmt.Sprintf("Pass #%d is now %s.", p.ID, p.Status))
			case errors.Is(err, idb.ErrPassNotFound):
				return c.Send(fmt.Sprintf("Pass #%d not found.", passID))
			case errors.Is(err, app.ErrPassNotPending):
				return c.Send(fmt.Sprintf("Pass #%d is already %s.", passID, p.Status))
			default:
				log.WithError(err).Error("Failed to update pass status")
				return c.Send(fmt.Sprintf("An error occurred: %s", err.Error()))
			}
		})
	}
	b.Handle("/approve", passTransition("/approve", deps.Passes.ApprovePass))
	b.Handle("/reject", passTransition("/reject", deps.Passes.RejectPass))

	b.Handle(telebot.OnCallback, func(c telebot.Context) error {
		data := c.Callback().Data
		if c.Sender().ID != adminTelegramID {
			return c.Respond(&telebot.CallbackResponse{Text: unauthorizedReply})
		}

		id, ok := parseToggleData(data)
		if !ok {
			c.Bot().OnError(fmt.Errorf("unhandled callback data: %s", data), c)
			return c.Respond(&telebot.CallbackResponse{Text: "Unknown action."})
		}

		cfg, err := deps.Alerts.ToggleAlertConfiguration(ctx, id)
		if err != nil {
			c.Bot().OnError(fmt.Errorf("error toggling alert configuration %d: %w", id, err), c)
			return c.Respond(&telebot.CallbackResponse{Text: "An error occurred."})
		}

		if configs, err := deps.Alerts.ListAlertConfigurations(ctx); err == nil {
			_ = c.Edit(formatAlertConfigs(configs), alertToggleMarkup(configs))
		}
		state := "disabled"
		if cfg.IsActive {
			state = "enabled"
		}
		return c.Respond(&telebot.CallbackResponse{Text: fmt.Sprintf("%s %s.", cfg.Name, state)})
	})
}
