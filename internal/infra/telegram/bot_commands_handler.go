// internal/infra/telegram/bot_commands_handler.go
package telegram

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// StartReply answers /start. Only the admin is told what the bot can do.
func StartReply(senderID, adminTelegramID int64, firstName string) string {
	if senderID == adminTelegramID {
		return fmt.Sprintf("Hello, %s! License expiry notifications are running. Use /help for the command list.", firstName)
	}
	return "Hello! This bot reports license expiry notifications to its administrator only."
}

// HelpReply answers /help.
func HelpReply(senderID, adminTelegramID int64) string {
	if senderID != adminTelegramID {
		return "There are no commands available to you."
	}
	var helpText strings.Builder
	helpText.WriteString("Admin commands:\n\n")
	helpText.WriteString("`/check_now`\n - Run the expiry check immediately.\n\n")
	helpText.WriteString("`/settings`\n - Show the current notification settings.\n\n")
	helpText.WriteString("`/set_time HH:MM [Timezone]`\n - Change the daily run time, e.g. `/set_time 08:30 Europe/Berlin`.\n\n")
	helpText.WriteString("`/set_days 45,30,15,7,5,1,0`\n - Choose the days before expiry that trigger a reminder.\n\n")
	helpText.WriteString("`/notifications on|off`\n - Enable or disable reminders.\n\n")
	helpText.WriteString("`/history [count]`\n - Show the latest send attempts.\n\n")
	helpText.WriteString("`/help`\n - Show this message.")
	return helpText.String()
}

func RegisterBotCommands(b *telebot.Bot, adminTelegramID int64, baseLogger *logrus.Entry) {
	startHelpLogger := baseLogger.WithField("handler_group", "start_help")

	b.Handle("/start", func(c telebot.Context) error {
		startHelpLogger.WithField("command", "/start").WithField("sender_id", c.Sender().ID).Info("Processing /start command")
		return c.Send(StartReply(c.Sender().ID, adminTelegramID, c.Sender().FirstName))
	})

	b.Handle("/help", func(c telebot.Context) error {
		startHelpLogger.WithField("command", "/help").WithField("sender_id", c.Sender().ID).Info("Processing /help command")
		if c.Sender().ID == adminTelegramID {
			return c.Send(HelpReply(c.Sender().ID, adminTelegramID), &telebot.SendOptions{ParseMode: telebot.ModeMarkdown})
		}
		return c.Send(HelpReply(c.Sender().ID, adminTelegramID))
	})
}
