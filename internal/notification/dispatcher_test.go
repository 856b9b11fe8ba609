package notification

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fuomag9/boardrelay/internal/telegram"
)

type recordingSender struct {
	sent []telegram.Outgoing
	err  error
}

func (r *recordingSender) SendMessage(_ context.Context, msg telegram.Outgoing) (int, error) {
	if r.err != nil {
		return 0, r.err
	}
	r.sent = append(r.sent, msg)
	return len(r.sent), nil
}

func TestNotifyCardMoved(t *testing.T) {
	sender := &recordingSender{}
	d := NewDispatcher(sender, -100, nil)

	err := d.NotifyCardMoved(context.Background(), &CardMove{
		CardID: "c1", CardName: "Ship it", ListBefore: "InProgress", ListAfter: "Done",
	})
	require.NoError(t, err)

	require.Len(t, sender.sent, 1)
	assert.Equal(t, int64(-100), sender.sent[0].ChatID)
	assert.Equal(t, "Card 'Ship it' moved from 'InProgress' to 'Done'", sender.sent[0].Text)
	assert.Empty(t, sender.sent[0].ParseMode)
}

func TestNotifyCardMoved_SendFailure(t *testing.T) {
	d := NewDispatcher(&recordingSender{err: errors.New("down")}, -100, nil)

	err := d.NotifyCardMoved(context.Background(), &CardMove{CardID: "c1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "c1")
}
