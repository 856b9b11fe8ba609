package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/fuomag9/boardrelay/internal/api"
	"github.com/fuomag9/boardrelay/internal/app"
	"github.com/fuomag9/boardrelay/internal/config"
	"github.com/fuomag9/boardrelay/internal/jobs"
	"github.com/fuomag9/boardrelay/internal/logging"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := tgbotapi.SetLogger(logging.NewPrintfLogger(log, "tgbotapi")); err != nil {
		log.Warn("failed to install bot api logger", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize components
	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to initialize", zap.Error(err))
	}
	defer a.Close()

	// Initialize job scheduler
	scheduler := jobs.NewScheduler(log)
	if cfg.ReportSchedule != "" {
		if err := scheduler.AddReportJob(cfg.ReportSchedule, a.Router, cfg.Telegram.GroupID, 2*time.Minute); err != nil {
			log.Fatal("failed to schedule report", zap.Error(err))
		}
	}
	scheduler.Start()
	defer scheduler.Stop()

	// Setup API router
	router := api.NewRouter(ctx, api.Deps{
		Config: cfg,
		Relay:  a.Router,
		Chat:   a.Chat,
		Board:  a.Board,
		CSRF:   a.CSRF,
		Logger: log,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2*cfg.UpstreamTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info("server starting",
			zap.Int("port", cfg.Port),
			zap.String("bot", a.Chat.BotUsername()),
			zap.String("board_id", cfg.Trello.BoardID),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed to start", zap.Error(err))
		}
	}()

	// Graceful shutdown
	<-ctx.Done()
	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server exited")
}
