package relay

import (
	"context"

	"go.uber.org/zap"

	"github.com/fuomag9/boardrelay/internal/metrics"
	"github.com/fuomag9/boardrelay/internal/notification"
	"github.com/fuomag9/boardrelay/internal/trello"
)

// BoardEvent is the webhook payload posted by the board platform. Only the
// fields needed to detect card moves are decoded.
type BoardEvent struct {
	Action struct {
		ID   string `json:"id"`
		Type string `json:"type"`
		Data struct {
			Card       *namedRef `json:"card"`
			ListBefore *namedRef `json:"listBefore"`
			ListAfter  *namedRef `json:"listAfter"`
		} `json:"data"`
	} `json:"action"`
}

type namedRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// CardMove extracts a reportable move from the event. Only updateCard
// actions that move a card between two different lists, both named
// InProgress or Done, qualify.
func (e *BoardEvent) CardMove() (*notification.CardMove, bool) {
	if e.Action.Type != "updateCard" {
		return nil, false
	}
	data := e.Action.Data
	if data.Card == nil || data.ListBefore == nil || data.ListAfter == nil {
		return nil, false
	}

	before, after := data.ListBefore.Name, data.ListAfter.Name
	if before == after || !tracked(before) || !tracked(after) {
		return nil, false
	}

	return &notification.CardMove{
		CardID:     data.Card.ID,
		CardName:   data.Card.Name,
		ListBefore: before,
		ListAfter:  after,
	}, true
}

func tracked(listName string) bool {
	switch trello.Classify(listName) {
	case trello.CategoryInProgress, trello.CategoryDone:
		return true
	default:
		return false
	}
}

// HandleBoardEvent notifies the broadcast chat about qualifying card moves.
// It reports whether a notification was sent.
func (r *Router) HandleBoardEvent(ctx context.Context, event *BoardEvent) (bool, error) {
	move, ok := event.CardMove()
	if !ok {
		metrics.BoardEvents.WithLabelValues("ignored").Inc()
		return false, nil
	}

	if err := r.notifier.NotifyCardMoved(ctx, move); err != nil {
		metrics.BoardEvents.WithLabelValues("failed").Inc()
		r.log.Warn("failed to notify card move", zap.String("action_id", event.Action.ID), zap.Error(err))
		return false, err
	}

	metrics.BoardEvents.WithLabelValues("notified").Inc()
	return true, nil
}
