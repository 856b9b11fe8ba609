package api

import (
	"context"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fuomag9/boardrelay/internal/config"
	"github.com/fuomag9/boardrelay/internal/models"
	"github.com/fuomag9/boardrelay/internal/oauth"
	"github.com/fuomag9/boardrelay/internal/relay"
	"github.com/fuomag9/boardrelay/internal/telegram"
	"github.com/fuomag9/boardrelay/internal/trello"
)

// Relay is the event routing surface served over HTTP
type Relay interface {
	HandleUpdate(ctx context.Context, update *tgbotapi.Update) error
	HandleBoardEvent(ctx context.Context, event *relay.BoardEvent) (bool, error)
	CompleteLink(ctx context.Context, token string, chatUserID int64) (*models.BoardIdentity, error)
	UserBoards(ctx context.Context, chatUserID int64) ([]trello.Board, error)
	UserStats(ctx context.Context, chatUserID int64) (trello.TaskStats, error)
}

// ChatClient is the chat platform surface used by the manual endpoints
type ChatClient interface {
	SendMessage(ctx context.Context, msg telegram.Outgoing) (int, error)
	RegisterWebhook(ctx context.Context, callbackURL string) error
}

// BoardClient is the board platform surface used by the manual endpoints
type BoardClient interface {
	CreateWebhook(ctx context.Context, callbackURL, boardID, description string) (*trello.Webhook, error)
}

// Deps bundles what the HTTP layer needs
type Deps struct {
	Config *config.Config
	Relay  Relay
	Chat   ChatClient
	Board  BoardClient
	CSRF   *oauth.CSRF
	Logger *zap.Logger
}

// NewRouter creates a new HTTP router
func NewRouter(ctx context.Context, deps Deps) http.Handler {
	cfg := deps.Config
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("http")

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(log))
	r.Use(middleware.Recoverer)
	r.Use(SecurityHeadersMiddleware(cfg))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "HEAD", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		MaxAge:         300,
	}))

	// Inbound webhooks are bursty; link completion is user-driven.
	webhookLimiter := NewRateLimiter(rate.Limit(20), 40)
	webhookLimiter.CleanupOldLimiters(ctx)
	linkLimiter := NewRateLimiter(rate.Limit(1), 5)
	linkLimiter.CleanupOldLimiters(ctx)

	r.Route("/telegram", func(r chi.Router) {
		r.With(RateLimitMiddleware(webhookLimiter)).Post("/webhook", HandleTelegramWebhook(deps.Relay, log))
		r.Post("/set-webhook", HandleSetTelegramWebhook(deps.Chat, cfg.TelegramWebhookURL()))
	})

	r.Post("/send-message", HandleSendMessage(deps.Chat))

	r.Route("/trello", func(r chi.Router) {
		r.Head("/webhook", HandleTrelloWebhookProbe())
		r.With(RateLimitMiddleware(webhookLimiter)).Post("/webhook", HandleTrelloWebhook(deps.Relay, log))
		r.Post("/set-webhook", HandleSetTrelloWebhook(deps.Board, cfg.Trello.WebhookURL, cfg.Trello.BoardID, log))
		r.Get("/callback", HandleTrelloCallback(deps.CSRF, cfg.Trello.SiteURL, log))
		r.With(StrictRateLimitMiddleware(linkLimiter)).Post("/store-user-data", HandleStoreUserData(deps.Relay, deps.CSRF, log))
	})

	// Per-user board data, only when an admin token is configured
	if cfg.AdminToken != "" {
		r.Route("/api/users/{chatUserID}", func(r chi.Router) {
			r.Use(AdminAuthMiddleware(cfg.AdminToken))
			r.Get("/boards", HandleGetUserBoards(deps.Relay, log))
			r.Get("/stats", HandleGetUserStats(deps.Relay, log))
		})
	}

	// Prometheus metrics endpoint (no auth required)
	r.Handle("/metrics", promhttp.Handler())

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return r
}
