// Package relay routes inbound chat and board events to the identity store,
// the chat and board clients, and the report generator.
package relay

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/fuomag9/boardrelay/internal/metrics"
	"github.com/fuomag9/boardrelay/internal/models"
	"github.com/fuomag9/boardrelay/internal/notification"
	"github.com/fuomag9/boardrelay/internal/telegram"
	"github.com/fuomag9/boardrelay/internal/trello"
)

// IdentityStore is the persistence the router needs
type IdentityStore interface {
	FindChatIdentity(ctx context.Context, chatUserID int64) (*models.ChatIdentity, error)
	UpsertChatIdentity(ctx context.Context, chatUserID int64, profile models.ChatProfile) (*models.ChatIdentity, error)
	UpsertBoardIdentity(ctx context.Context, chatUserID int64, token string, profile models.BoardProfile) (*models.BoardIdentity, error)
	LinkState(ctx context.Context, chatUserID int64) (models.LinkState, *models.BoardIdentity, error)
}

// ChatClient is the chat platform surface the router needs
type ChatClient interface {
	SendMessage(ctx context.Context, msg telegram.Outgoing) (int, error)
	AnswerCallback(ctx context.Context, callbackID, text string, showAlert bool)
	GetChatMember(ctx context.Context, chatID, userID int64) (string, error)
	BotUsername() string
}

// BoardClient is the board platform surface the router needs
type BoardClient interface {
	GetMemberProfile(ctx context.Context, token string) (*models.BoardProfile, error)
	ListBoards(ctx context.Context, token string) ([]trello.Board, error)
	ComputeTaskStats(ctx context.Context, token string) (trello.TaskStats, error)
}

// Reporter produces the task digest
type Reporter interface {
	Generate(ctx context.Context) (string, error)
}

// Notifier announces card moves to the broadcast chat
type Notifier interface {
	NotifyCardMoved(ctx context.Context, move *notification.CardMove) error
}

// AuthLinker builds board authorization links
type AuthLinker interface {
	GetAuthorizationURL(chatUserID int64) string
}

// Deps bundles the router's collaborators
type Deps struct {
	Store    IdentityStore
	Chat     ChatClient
	Board    BoardClient
	Reports  Reporter
	Notifier Notifier
	Auth     AuthLinker
	Logger   *zap.Logger
}

// Router handles inbound events from both platforms
type Router struct {
	store    IdentityStore
	chat     ChatClient
	board    BoardClient
	reports  Reporter
	notifier Notifier
	auth     AuthLinker
	log      *zap.Logger
}

// NewRouter creates a router
func NewRouter(deps Deps) *Router {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Router{
		store:    deps.Store,
		chat:     deps.Chat,
		board:    deps.Board,
		reports:  deps.Reports,
		notifier: deps.Notifier,
		auth:     deps.Auth,
		log:      log.Named("relay"),
	}
}

// HandleUpdate dispatches one chat update. Callback queries are checked
// first, then messages, then membership changes; anything else is ignored.
// Errors from side-effect deliveries are logged, not returned.
func (r *Router) HandleUpdate(ctx context.Context, update *tgbotapi.Update) error {
	switch {
	case update.CallbackQuery != nil:
		metrics.ChatUpdates.WithLabelValues("callback").Inc()
		return r.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		metrics.ChatUpdates.WithLabelValues("message").Inc()
		return r.handleMessage(ctx, update.Message)
	case update.MyChatMember != nil:
		metrics.ChatUpdates.WithLabelValues("membership").Inc()
		r.handleMembership(ctx, update.MyChatMember)
		return nil
	default:
		metrics.ChatUpdates.WithLabelValues("ignored").Inc()
		r.log.Debug("ignoring update", zap.Int("update_id", update.UpdateID))
		return nil
	}
}

// send delivers a message produced as a side effect of an inbound event.
// Delivery failures are logged only.
func (r *Router) send(ctx context.Context, msg telegram.Outgoing) {
	if _, err := r.chat.SendMessage(ctx, msg); err != nil {
		r.log.Warn("failed to deliver message", zap.Int64("chat_id", msg.ChatID), zap.Error(err))
	}
}
