package telegram

// Client defines an interface for sending operator messages via a Telegram bot.
// This keeps the application layer independent of the bot library.
type Client interface {
	SendMessage(recipientChatID int64, text string) error
}
