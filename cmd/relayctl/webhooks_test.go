package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fuomag9/boardrelay/internal/trello"
)

type fakeWebhooks struct {
	hooks   []trello.Webhook
	deleted []string
	created int
}

func (f *fakeWebhooks) ListWebhooks(context.Context, string) ([]trello.Webhook, error) {
	return f.hooks, nil
}

func (f *fakeWebhooks) DeleteWebhook(_ context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeWebhooks) CreateWebhook(_ context.Context, callbackURL, boardID, description string) (*trello.Webhook, error) {
	f.created++
	return &trello.Webhook{ID: "new", CallbackURL: callbackURL, IDModel: boardID, Description: description}, nil
}

const cbURL = "https://relay.example/trello/webhook"

func TestSyncWebhooks_CreatesWhenMissing(t *testing.T) {
	f := &fakeWebhooks{hooks: []trello.Webhook{{ID: "other", CallbackURL: "https://elsewhere", IDModel: "b1"}}}
	var out bytes.Buffer

	require.NoError(t, syncWebhooks(context.Background(), &out, f, cbURL, "b1", false))
	assert.Equal(t, 1, f.created)
	assert.Empty(t, f.deleted)
	assert.Contains(t, out.String(), "created new")
}

func TestSyncWebhooks_KeepsExisting(t *testing.T) {
	f := &fakeWebhooks{hooks: []trello.Webhook{{ID: "w1", CallbackURL: cbURL, IDModel: "b1"}}}
	var out bytes.Buffer

	require.NoError(t, syncWebhooks(context.Background(), &out, f, cbURL, "b1", false))
	assert.Zero(t, f.created)
	assert.Contains(t, out.String(), "already registered")
}

func TestSyncWebhooks_Replace(t *testing.T) {
	f := &fakeWebhooks{hooks: []trello.Webhook{
		{ID: "w1", CallbackURL: cbURL, IDModel: "b1"},
		{ID: "w2", CallbackURL: cbURL, IDModel: "b1"},
		{ID: "w3", CallbackURL: cbURL, IDModel: "b2"},
	}}
	var out bytes.Buffer

	require.NoError(t, syncWebhooks(context.Background(), &out, f, cbURL, "b1", true))
	assert.Equal(t, []string{"w1", "w2"}, f.deleted)
	assert.Equal(t, 1, f.created)
}
