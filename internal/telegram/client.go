// Package telegram is the chat-side client used by the relay.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/fuomag9/boardrelay/internal/apperrors"
	"github.com/fuomag9/boardrelay/internal/metrics"
)

// Parse modes accepted by SendMessage
const (
	ModeNone     = ""
	ModeHTML     = tgbotapi.ModeHTML
	ModeMarkdown = tgbotapi.ModeMarkdown
)

// Options configures a Client
type Options struct {
	Token            string
	APIEndpoint      string // printf pattern taking token and method
	FallbackUsername string
	Timeout          time.Duration
	HTTPClient       *http.Client
	Logger           *zap.Logger
}

// Outgoing is a message to deliver to a chat
type Outgoing struct {
	ChatID    int64
	Text      string
	ParseMode string
	Keyboard  *tgbotapi.InlineKeyboardMarkup
}

// Client wraps the Bot API. It is safe for concurrent use.
type Client struct {
	bot      *tgbotapi.BotAPI
	username string
	log      *zap.Logger
}

// NewClient builds the client and resolves the bot's username once. When
// getMe fails the fallback username is used so link text stays constructible.
func NewClient(opts Options) (*Client, error) {
	if opts.Token == "" {
		return nil, fmt.Errorf("telegram bot token is required")
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	bot := &tgbotapi.BotAPI{
		Token:  opts.Token,
		Client: httpClient,
		Buffer: 100,
	}
	if opts.APIEndpoint != "" {
		bot.SetAPIEndpoint(opts.APIEndpoint)
	} else {
		bot.SetAPIEndpoint(tgbotapi.APIEndpoint)
	}

	c := &Client{
		bot:      bot,
		username: opts.FallbackUsername,
		log:      log.Named("telegram"),
	}

	me, err := bot.GetMe()
	if err != nil || me.UserName == "" {
		metrics.UpstreamErrors.WithLabelValues("telegram").Inc()
		c.log.Warn("failed to fetch bot identity, using fallback username",
			zap.String("fallback", opts.FallbackUsername),
			zap.Error(err),
		)
	} else {
		bot.Self = me
		c.username = me.UserName
	}

	return c, nil
}

// BotUsername is the bot's username without the leading @
func (c *Client) BotUsername() string {
	return c.username
}

// SendMessage delivers msg and returns the new message id. A response
// without a message id, or a Bot API refusal, is a DeliveryError; transport
// failures are UpstreamErrors.
func (c *Client) SendMessage(ctx context.Context, msg Outgoing) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	cfg := tgbotapi.NewMessage(msg.ChatID, msg.Text)
	cfg.ParseMode = msg.ParseMode
	if msg.Keyboard != nil {
		cfg.ReplyMarkup = msg.Keyboard
	}

	sent, err := c.bot.Send(cfg)
	if err != nil {
		return 0, c.classify("sendMessage", msg.ChatID, err)
	}
	if sent.MessageID == 0 {
		c.log.Warn("message not delivered", zap.Int64("chat_id", msg.ChatID))
		return 0, &apperrors.DeliveryError{ChatID: msg.ChatID}
	}
	return sent.MessageID, nil
}

// AnswerCallback acknowledges a button press. Failures are logged only.
func (c *Client) AnswerCallback(ctx context.Context, callbackID, text string, showAlert bool) {
	if ctx.Err() != nil {
		return
	}

	cfg := tgbotapi.NewCallback(callbackID, text)
	cfg.ShowAlert = showAlert
	if _, err := c.bot.Request(cfg); err != nil {
		metrics.UpstreamErrors.WithLabelValues("telegram").Inc()
		c.log.Warn("failed to answer callback query",
			zap.String("callback_id", callbackID),
			zap.Error(err),
		)
	}
}

// GetChatMember returns the member status of userID in chatID, e.g.
// "member", "administrator", "left" or "kicked".
func (c *Client) GetChatMember(ctx context.Context, chatID, userID int64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	member, err := c.bot.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{ChatID: chatID, UserID: userID},
	})
	if err != nil {
		return "", c.upstream("getChatMember", err)
	}
	return member.Status, nil
}

// RegisterWebhook points the bot's update delivery at callbackURL
func (c *Client) RegisterWebhook(ctx context.Context, callbackURL string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	wh, err := tgbotapi.NewWebhook(callbackURL)
	if err != nil {
		return fmt.Errorf("invalid webhook url: %w", err)
	}

	resp, err := c.bot.Request(wh)
	if err != nil {
		return c.upstream("setWebhook", err)
	}
	if !resp.Ok {
		return c.upstream("setWebhook", errors.New(resp.Description))
	}

	c.log.Info("webhook registered", zap.String("url", callbackURL))
	return nil
}

func (c *Client) classify(method string, chatID int64, err error) error {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		metrics.UpstreamErrors.WithLabelValues("telegram").Inc()
		c.log.Warn("bot api refused message",
			zap.String("method", method),
			zap.Int64("chat_id", chatID),
			zap.Int("code", apiErr.Code),
			zap.String("description", apiErr.Message),
		)
		return &apperrors.DeliveryError{ChatID: chatID, Err: err}
	}
	return c.upstream(method, err)
}

func (c *Client) upstream(method string, err error) error {
	metrics.UpstreamErrors.WithLabelValues("telegram").Inc()

	ue := &apperrors.UpstreamError{Service: "telegram", Endpoint: method, Err: redactToken(err, c.bot.Token)}
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		ue.StatusCode = apiErr.Code
		ue.Body = apiErr.Message
	}

	c.log.Warn("telegram request failed",
		zap.String("endpoint", method),
		zap.Int("status", ue.StatusCode),
		zap.String("body", ue.Body),
		zap.Error(ue.Err),
	)
	return ue
}
