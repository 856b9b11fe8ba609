package relay

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/fuomag9/boardrelay/internal/apperrors"
	"github.com/fuomag9/boardrelay/internal/logging"
	"github.com/fuomag9/boardrelay/internal/models"
	"github.com/fuomag9/boardrelay/internal/trello"
)

// CompleteLink stores the board account behind token for chatUserID. The
// chat user must already be known; otherwise ErrNotFound is returned and
// nothing is written. Repeating the call with the same input is harmless.
func (r *Router) CompleteLink(ctx context.Context, token string, chatUserID int64) (*models.BoardIdentity, error) {
	if _, err := r.store.FindChatIdentity(ctx, chatUserID); err != nil {
		return nil, err
	}

	profile, err := r.board.GetMemberProfile(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch board profile: %w", err)
	}

	board, err := r.store.UpsertBoardIdentity(ctx, chatUserID, token, *profile)
	if err != nil {
		return nil, err
	}

	r.log.Info("board account linked",
		zap.Int64("chat_user_id", chatUserID),
		zap.String("board_user_id", board.BoardUserID),
		logging.Redacted("token", token),
	)

	// Private chat ids equal user ids.
	r.sendReportButton(ctx, chatUserID)
	return board, nil
}

// UserBoards lists the boards visible to a linked chat user
func (r *Router) UserBoards(ctx context.Context, chatUserID int64) ([]trello.Board, error) {
	board, err := r.linkedBoard(ctx, chatUserID)
	if err != nil {
		return nil, err
	}
	return r.board.ListBoards(ctx, board.Token)
}

// UserStats computes task statistics on the configured board for a linked
// chat user.
func (r *Router) UserStats(ctx context.Context, chatUserID int64) (trello.TaskStats, error) {
	board, err := r.linkedBoard(ctx, chatUserID)
	if err != nil {
		return trello.TaskStats{}, err
	}
	return r.board.ComputeTaskStats(ctx, board.Token)
}

func (r *Router) linkedBoard(ctx context.Context, chatUserID int64) (*models.BoardIdentity, error) {
	state, board, err := r.store.LinkState(ctx, chatUserID)
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}
	if state != models.Linked {
		return nil, &apperrors.NotLinkedError{ChatUserID: chatUserID}
	}
	return board, nil
}
