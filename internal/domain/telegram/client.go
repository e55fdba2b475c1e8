package telegram

// Client posts plain-text messages to a Telegram chat. The scheduler uses it
// to push sweep summaries to the admin without depending on the bot library.
type Client interface {
	SendText(chatID int64, text string) error
}
