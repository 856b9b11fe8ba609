package notification

import (
	"context"
	"fmt"

	"github.com/fuomag9/boardrelay/internal/telegram"
)

// Sender delivers a chat message
type Sender interface {
	SendMessage(ctx context.Context, msg telegram.Outgoing) (int, error)
}

// CardMove describes a card that changed lists on the board
type CardMove struct {
	CardID     string
	CardName   string
	ListBefore string
	ListAfter  string
}

// Text renders the broadcast line for the move
func (m *CardMove) Text() string {
	return fmt.Sprintf("Card '%s' moved from '%s' to '%s'", m.CardName, m.ListBefore, m.ListAfter)
}
