// internal/infra/telegram/bot_commands_handler.go
package telegram

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

const adminHelpText = "Available admin commands:\n\n" +
	"`/alerts`\n - List alert configurations with toggle buttons.\n\n" +
	"`/run_alerts`\n - Run the expiry alert sweep now.\n\n" +
	"`/notifications [n]`\n - Show the latest n notification log entries (default 20).\n\n" +
	"`/pending`\n - List passes waiting for approval.\n\n" +
	"`/approve <pass_id>`, `/reject <pass_id>`\n - Change a pass status.\n\n" +
	"`/help`\n - Show this message."

func RegisterBotCommands(b *telebot.Bot, adminTelegramID int64, baseLogger *logrus.Entry) {
	startHelpLogger := baseLogger.WithField("handler_group", "start_help")

	b.Handle("/start", func(c telebot.Context) error {
		senderID := c.Sender().ID
		logCtx := startHelpLogger.WithField("command", "/start").WithField("sender_id", senderID)
		logCtx.Info("Processing /start command")

		if senderID == adminTelegramID {
			return c.Send(fmt.Sprintf("Hello, %s! Bus pass admin bot is ready. Use /help for the command list.", c.Sender().FirstName))
		}
		logCtx.Info("User is unknown")
		return c.Send("Hello! This bot is for bus pass administrators only.")
	})

	b.Handle("/help", func(c telebot.Context) error {
		senderID := c.Sender().ID
		startHelpLogger.WithField("command", "/help").WithField("sender_id", senderID).Info("Processing /help command")

		if senderID != adminTelegramID {
			return c.Send("No commands are available for you.")
		}
		return c.Send(strings.TrimSpace(adminHelpText), &telebot.SendOptions{ParseMode: telebot.ModeMarkdown})
	})
}
