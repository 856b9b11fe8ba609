// Package notification posts board activity to the broadcast chat.
package notification

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fuomag9/boardrelay/internal/telegram"
)

// Dispatcher sends notifications to the deployment's broadcast chat
type Dispatcher struct {
	sender Sender
	chatID int64
	log    *zap.Logger
}

// NewDispatcher creates a new notification dispatcher
func NewDispatcher(sender Sender, chatID int64, log *zap.Logger) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{sender: sender, chatID: chatID, log: log.Named("notification")}
}

// ChatID is the broadcast chat
func (d *Dispatcher) ChatID() int64 {
	return d.chatID
}

// NotifyCardMoved announces a card move
func (d *Dispatcher) NotifyCardMoved(ctx context.Context, move *CardMove) error {
	if err := d.Broadcast(ctx, move.Text()); err != nil {
		return fmt.Errorf("failed to notify card move %s: %w", move.CardID, err)
	}

	d.log.Info("card move notified",
		zap.String("card_id", move.CardID),
		zap.String("from", move.ListBefore),
		zap.String("to", move.ListAfter),
	)
	return nil
}

// Broadcast sends plain text to the broadcast chat
func (d *Dispatcher) Broadcast(ctx context.Context, text string) error {
	_, err := d.sender.SendMessage(ctx, telegram.Outgoing{ChatID: d.chatID, Text: text})
	return err
}
