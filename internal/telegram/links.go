package telegram

import (
	"encoding/base64"
	"errors"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Callback data carried by the bot's inline buttons
const (
	CallbackGetReport = "get_report"
	CallbackStart     = "start_command"
)

// ButtonKeyboard is a one-button inline keyboard
func ButtonKeyboard(text, data string) *tgbotapi.InlineKeyboardMarkup {
	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(text, data)),
	)
	return &kb
}

// ChatLink opens a private chat with the bot
func ChatLink(botUsername string) string {
	return "https://t.me/" + botUsername
}

// StartLink opens a private chat with the bot carrying the chat user id as
// the start payload. Start payloads allow only [A-Za-z0-9_-].
func StartLink(botUsername string, chatUserID int64) string {
	payload := base64.RawURLEncoding.EncodeToString([]byte(strconv.FormatInt(chatUserID, 10)))
	return ChatLink(botUsername) + "?start=" + payload
}

// redactToken removes the bot token from transport errors, which embed the
// request URL.
func redactToken(err error, token string) error {
	if err == nil || token == "" || !strings.Contains(err.Error(), token) {
		return err
	}
	return errors.New(strings.ReplaceAll(err.Error(), token, "<token>"))
}
