// Package report renders the per-user task digest.
package report

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/fuomag9/boardrelay/internal/apperrors"
	"github.com/fuomag9/boardrelay/internal/metrics"
	"github.com/fuomag9/boardrelay/internal/models"
	"github.com/fuomag9/boardrelay/internal/trello"
)

// EmptyReportText is sent in place of a report with no entries
const EmptyReportText = "No users have interacted with the bot yet."

// Identities enumerates chat users and their board links
type Identities interface {
	ListChatIdentities(ctx context.Context) ([]models.ChatIdentity, error)
	FindBoardIdentity(ctx context.Context, chatUserID int64) (*models.BoardIdentity, error)
}

// StatsSource computes task statistics for one board token
type StatsSource interface {
	ComputeTaskStats(ctx context.Context, token string) (trello.TaskStats, error)
}

// Generator builds reports over every known chat user
type Generator struct {
	identities Identities
	stats      StatsSource
	log        *zap.Logger
}

// NewGenerator creates a report generator
func NewGenerator(identities Identities, stats StatsSource, log *zap.Logger) *Generator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Generator{identities: identities, stats: stats, log: log.Named("report")}
}

// Generate returns one entry per chat user in insertion order, separated by a
// blank line. A failure for one user only affects that user's entry. With no
// chat users the result is empty.
func (g *Generator) Generate(ctx context.Context) (string, error) {
	chats, err := g.identities.ListChatIdentities(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to list chat identities: %w", err)
	}

	entries := make([]string, 0, len(chats))
	for i := range chats {
		entries = append(entries, g.entry(ctx, &chats[i]))
	}

	metrics.Reports.Inc()
	return strings.Join(entries, "\n\n"), nil
}

func (g *Generator) entry(ctx context.Context, chat *models.ChatIdentity) string {
	name := chat.DisplayName()

	board, err := g.identities.FindBoardIdentity(ctx, chat.UserID)
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		g.log.Error("failed to load board identity", zap.Int64("chat_user_id", chat.UserID), zap.Error(err))
		return name + ": error fetching tasks"
	}
	if models.LinkStateOf(chat, board) != models.Linked {
		return name + ": no data, account not linked"
	}

	stats, err := g.stats.ComputeTaskStats(ctx, board.Token)
	if err != nil {
		g.log.Error("failed to fetch tasks", zap.Int64("chat_user_id", chat.UserID), zap.Error(err))
		return name + ": error fetching tasks"
	}

	return fmt.Sprintf("%s:\nIn Progress: %d\nDone: %d", name, stats.InProgress, stats.Done)
}
