// Package jobs runs the optional scheduled report.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/fuomag9/boardrelay/internal/logging"
)

// ReportSender delivers the task report to a chat
type ReportSender interface {
	SendReport(ctx context.Context, chatID int64) error
}

// Scheduler manages background jobs
type Scheduler struct {
	cron *cron.Cron
	log  *zap.Logger
}

// NewScheduler creates a new job scheduler
func NewScheduler(log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	cronLog := cron.PrintfLogger(logging.NewPrintfLogger(log, "cron"))

	return &Scheduler{
		cron: cron.New(cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog))),
		log:  log.Named("jobs"),
	}
}

// AddReportJob posts the report to chatID on the given cron schedule. Each
// run is bounded by timeout.
func (s *Scheduler) AddReportJob(spec string, sender ReportSender, chatID int64, timeout time.Duration) error {
	_, err := s.cron.AddFunc(spec, func() {
		s.runReport(sender, chatID, timeout)
	})
	if err != nil {
		return fmt.Errorf("invalid report schedule %q: %w", spec, err)
	}

	s.log.Info("scheduled report registered", zap.String("schedule", spec), zap.Int64("chat_id", chatID))
	return nil
}

func (s *Scheduler) runReport(sender ReportSender, chatID int64, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	start := time.Now()
	if err := sender.SendReport(ctx, chatID); err != nil {
		s.log.Error("scheduled report failed", zap.Int64("chat_id", chatID), zap.Error(err))
		return
	}
	s.log.Info("scheduled report sent", zap.Int64("chat_id", chatID), zap.Duration("duration", time.Since(start)))
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("job scheduler started", zap.Int("jobs", len(s.cron.Entries())))
}

// Stop stops the scheduler and waits for running jobs
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info("job scheduler stopped")
}
