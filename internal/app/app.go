// Package app wires the relay's components from configuration.
package app

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fuomag9/boardrelay/internal/cache"
	"github.com/fuomag9/boardrelay/internal/config"
	"github.com/fuomag9/boardrelay/internal/database"
	"github.com/fuomag9/boardrelay/internal/identity"
	"github.com/fuomag9/boardrelay/internal/notification"
	"github.com/fuomag9/boardrelay/internal/oauth"
	"github.com/fuomag9/boardrelay/internal/relay"
	"github.com/fuomag9/boardrelay/internal/report"
	"github.com/fuomag9/boardrelay/internal/secrets"
	"github.com/fuomag9/boardrelay/internal/telegram"
	"github.com/fuomag9/boardrelay/internal/trello"
)

// App holds the process-wide components. Clients are created once and
// shared by every request.
type App struct {
	Config   *config.Config
	DB       *gorm.DB
	Store    *identity.Store
	Board    *trello.Client
	Chat     *telegram.Client
	Auth     *oauth.Client
	CSRF     *oauth.CSRF
	Notifier *notification.Dispatcher
	Reports  *report.Generator
	Router   *relay.Router

	sqlDB *sql.DB
}

// NewBoardClient builds the board client alone, for tooling that needs no
// database.
func NewBoardClient(cfg *config.Config, log *zap.Logger) *trello.Client {
	return trello.NewClient(trello.Options{
		BaseURL:     cfg.Trello.APIURL,
		APIKey:      cfg.Trello.APIKey,
		StaticToken: cfg.Trello.Token,
		BoardID:     cfg.Trello.BoardID,
		Timeout:     cfg.UpstreamTimeout,
		CacheTTL:    cfg.CacheTTL,
		Cache:       cache.New(cfg.CacheSize, cfg.CacheTTL),
		Logger:      log,
	})
}

// NewChatClient builds the chat client alone
func NewChatClient(cfg *config.Config, log *zap.Logger) (*telegram.Client, error) {
	return telegram.NewClient(telegram.Options{
		Token:            cfg.Telegram.BotToken,
		APIEndpoint:      cfg.Telegram.APIEndpoint,
		FallbackUsername: cfg.Telegram.FallbackUsername,
		Timeout:          cfg.UpstreamTimeout,
		Logger:           log,
	})
}

// New connects to the database, applies migrations and wires every component
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	db, err := database.Connect(ctx, cfg.Database, log)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database connection: %w", err)
	}

	if err := database.Migrate(db, log); err != nil {
		sqlDB.Close()
		return nil, err
	}

	sealer, err := secrets.NewSealer(cfg.TokenKey)
	if err != nil {
		sqlDB.Close()
		return nil, err
	}

	chat, err := NewChatClient(cfg, log)
	if err != nil {
		sqlDB.Close()
		return nil, err
	}

	auth, err := oauth.NewClient(cfg.Trello.AuthorizeURL, cfg.Trello.APIKey, cfg.CallbackURL())
	if err != nil {
		sqlDB.Close()
		return nil, err
	}

	a := &App{
		Config: cfg,
		DB:     db,
		Store:  identity.NewStore(db, sealer),
		Board:  NewBoardClient(cfg, log),
		Chat:   chat,
		Auth:   auth,
		CSRF:   oauth.NewCSRF(cfg.CSRFSecret),
		sqlDB:  sqlDB,
	}
	a.Notifier = notification.NewDispatcher(a.Chat, cfg.Telegram.GroupID, log)
	a.Reports = report.NewGenerator(a.Store, a.Board, log)
	a.Router = relay.NewRouter(relay.Deps{
		Store:    a.Store,
		Chat:     a.Chat,
		Board:    a.Board,
		Reports:  a.Reports,
		Notifier: a.Notifier,
		Auth:     a.Auth,
		Logger:   log,
	})

	return a, nil
}

// Close releases the database connection
func (a *App) Close() error {
	return a.sqlDB.Close()
}
