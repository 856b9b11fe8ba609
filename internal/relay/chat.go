package relay

import (
	"context"
	"fmt"
	"html"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/fuomag9/boardrelay/internal/models"
	"github.com/fuomag9/boardrelay/internal/report"
	"github.com/fuomag9/boardrelay/internal/telegram"
)

const (
	textGeneratingReport = "Generating a report..."
	textLinked           = "Your Trello account has been successfully linked! You can now receive task reports."
	textGreeting         = "Hi! Click the button below to get started."
	textAuthLink         = `Your Trello account is not linked. Please link your Trello account to your Telegram by clicking the following link: <a href="%s">Login to Trello</a>.`
	textGroupHello       = "Hello, %s! Glad to see you in our bot!"
	textPrivateChat      = "Please start a private chat with me by clicking [here](%s)."
)

func (r *Router) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) error {
	if cq.From == nil || cq.Message == nil || cq.Message.Chat == nil || cq.ID == "" {
		r.log.Warn("callback query missing id, chat or user")
		return nil
	}
	chatID := cq.Message.Chat.ID
	userID := cq.From.ID

	switch cq.Data {
	case telegram.CallbackGetReport:
		r.chat.AnswerCallback(ctx, cq.ID, textGeneratingReport, false)

		state, _, err := r.store.LinkState(ctx, userID)
		if err != nil {
			return fmt.Errorf("failed to resolve link state for %d: %w", userID, err)
		}
		if state == models.Linked {
			r.deliverReport(ctx, chatID)
			return nil
		}
		// Link completion requires a known chat identity.
		if err := r.recordIdentity(ctx, cq.From); err != nil {
			return err
		}
		r.sendAuthLink(ctx, chatID, userID)

	case telegram.CallbackStart:
		r.chat.AnswerCallback(ctx, cq.ID, "", false)
		r.send(ctx, telegram.Outgoing{
			ChatID:    chatID,
			Text:      fmt.Sprintf(textPrivateChat, telegram.StartLink(r.chat.BotUsername(), userID)),
			ParseMode: telegram.ModeMarkdown,
		})

	default:
		r.log.Debug("ignoring callback", zap.String("data", cq.Data))
	}
	return nil
}

func (r *Router) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil || msg.Chat == nil {
		return nil
	}
	userID := msg.From.ID

	if err := r.recordIdentity(ctx, msg.From); err != nil {
		return err
	}

	if !isStartCommand(msg.Text, r.chat.BotUsername()) {
		return nil
	}

	if msg.Chat.IsPrivate() {
		return r.handlePrivateStart(ctx, msg.Chat.ID, userID)
	}
	r.handleGroupStart(ctx, msg)
	return nil
}

func (r *Router) recordIdentity(ctx context.Context, user *tgbotapi.User) error {
	_, err := r.store.UpsertChatIdentity(ctx, user.ID, models.ChatProfile{
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Username:  user.UserName,
	})
	if err != nil {
		return fmt.Errorf("failed to record chat identity %d: %w", user.ID, err)
	}
	return nil
}

func (r *Router) handlePrivateStart(ctx context.Context, chatID, userID int64) error {
	state, _, err := r.store.LinkState(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to resolve link state for %d: %w", userID, err)
	}

	if state == models.Linked {
		r.sendReportButton(ctx, chatID)
		return nil
	}
	r.sendAuthLink(ctx, chatID, userID)
	return nil
}

func (r *Router) handleGroupStart(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	status, err := r.chat.GetChatMember(ctx, chatID, msg.From.ID)
	if err != nil {
		r.log.Warn("failed to check chat membership", zap.Int64("chat_id", chatID), zap.Error(err))
	} else if status == "left" || status == "kicked" {
		r.log.Debug("ignoring /start from non-member", zap.Int64("chat_id", chatID), zap.String("status", status))
		return
	}

	r.send(ctx, telegram.Outgoing{
		ChatID:    chatID,
		Text:      fmt.Sprintf(textGroupHello, html.EscapeString(msg.From.FirstName)),
		ParseMode: telegram.ModeHTML,
	})
	r.send(ctx, telegram.Outgoing{
		ChatID:    chatID,
		Text:      fmt.Sprintf(textPrivateChat, telegram.ChatLink(r.chat.BotUsername())),
		ParseMode: telegram.ModeMarkdown,
	})
}

// handleMembership greets a group the bot has just joined
func (r *Router) handleMembership(ctx context.Context, update *tgbotapi.ChatMemberUpdated) {
	if update.Chat.IsPrivate() || update.NewChatMember.Status != "member" {
		return
	}
	if old := update.OldChatMember.Status; old != "left" && old != "kicked" {
		return
	}
	r.send(ctx, telegram.Outgoing{
		ChatID:   update.Chat.ID,
		Text:     textGreeting,
		Keyboard: telegram.ButtonKeyboard("Start", telegram.CallbackStart),
	})
}

// SendReport generates the report and delivers it to chatID. An empty report
// is replaced by a short notice.
func (r *Router) SendReport(ctx context.Context, chatID int64) error {
	text, err := r.reports.Generate(ctx)
	if err != nil {
		return fmt.Errorf("failed to generate report: %w", err)
	}
	if text == "" {
		text = report.EmptyReportText
	}

	_, err = r.chat.SendMessage(ctx, telegram.Outgoing{ChatID: chatID, Text: text})
	return err
}

func (r *Router) deliverReport(ctx context.Context, chatID int64) {
	if err := r.SendReport(ctx, chatID); err != nil {
		r.log.Warn("failed to deliver report", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (r *Router) sendAuthLink(ctx context.Context, chatID, userID int64) {
	link := r.auth.GetAuthorizationURL(userID)
	r.send(ctx, telegram.Outgoing{
		ChatID:    chatID,
		Text:      fmt.Sprintf(textAuthLink, html.EscapeString(link)),
		ParseMode: telegram.ModeHTML,
	})
}

func (r *Router) sendReportButton(ctx context.Context, chatID int64) {
	r.send(ctx, telegram.Outgoing{
		ChatID:    chatID,
		Text:      textLinked,
		ParseMode: telegram.ModeHTML,
		Keyboard:  telegram.ButtonKeyboard("Get report", telegram.CallbackGetReport),
	})
}

// isStartCommand matches "/start", "/start <payload>" and "/start@<bot>"
// addressed to this bot.
func isStartCommand(text, botUsername string) bool {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return false
	}
	cmd, target, addressed := strings.Cut(fields[0], "@")
	if cmd != "/start" {
		return false
	}
	return !addressed || strings.EqualFold(target, botUsername)
}
