package telegram

import (
	"fmt"
	"strconv"
	"strings"

	"bus_pass_service/internal/app"
	"bus_pass_service/internal/domain/alert"
	"bus_pass_service/internal/domain/buspass"
	"bus_pass_service/internal/domain/notification"

	"gopkg.in/telebot.v3"
)

const toggleAlertPrefix = "toggle_alert_"

func formatAlertConfigs(configs []*alert.Configuration) string {
	if len(configs) == 0 {
		return "No alert configurations defined."
	}
	var b strings.Builder
	b.WriteString("--- Alert configurations ---\n")
	for _, c := range configs {
		status := "disabled"
		if c.IsActive {
			status = "active"
		}
		fmt.Fprintf(&b, "#%d %s: %d days before expiry (%s)\n", c.ID, c.Name, c.DaysBefore, status)
	}
	return b.String()
}

// alertToggleMarkup renders one inline button per configuration.
func alertToggleMarkup(configs []*alert.Configuration) *telebot.ReplyMarkup {
	markup := &telebot.ReplyMarkup{}
	for _, c := range configs {
		label := "Enable"
		if c.IsActive {
			label = "Disable"
		}
		markup.InlineKeyboard = append(markup.InlineKeyboard, []telebot.InlineButton{{
			Text: fmt.Sprintf("%s #%d %s", label, c.ID, c.Name),
			Data: toggleAlertPrefix + strconv.FormatInt(c.ID, 10),
		}})
	}
	return markup
}

// parseToggleData extracts the configuration id from "toggle_alert_<id>".
func parseToggleData(data string) (int64, bool) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(data), toggleAlertPrefix)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func formatSweepReport(r *app.SweepReport) string {
	return fmt.Sprintf("Alert sweep %s finished.\nConfigurations: %d\nPasses matched: %d\nSent: %d\nFailed: %d\nAlready sent: %d\nSkipped passes: %d",
		r.ID, r.ConfigsEvaluated, r.PassesMatched, r.Sent, r.Failed, r.AlreadySent, r.PassesSkipped)
}

func formatNotifications(entries []*notification.LogEntry) string {
	if len(entries) == 0 {
		return "No notifications recorded yet."
	}
	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "%s pass #%d cfg #%d %s -> %s [%s]",
			e.CreatedAt.Format("2006-01-02 15:04"), e.PassID, e.AlertConfigID, e.Channel, e.Recipient, e.Status)
		if e.ErrorMessage.Valid {
			fmt.Fprintf(&b, ": %s", e.ErrorMessage.String)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func formatPendingPasses(passes []*buspass.Pass) string {
	if len(passes) == 0 {
		return "No pending passes."
	}
	var b strings.Builder
	b.WriteString("--- Pending passes ---\n")
	for _, p := range passes {
		fmt.Fprintf(&b, "#%d user %d route %d, %s, expires %s\n",
			p.ID, p.UserID, p.RouteID, app.FormatAmount(p.AmountPaid), p.ExpiryDate.Format("02/01/2006"))
	}
	return b.String()
}
