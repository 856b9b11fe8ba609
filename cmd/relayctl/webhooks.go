package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/fuomag9/boardrelay/internal/app"
	"github.com/fuomag9/boardrelay/internal/trello"
)

const webhookDescription = "boardrelay"

func newTelegramWebhookCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "telegram-webhook",
		Short: "Register APP_URL/telegram/webhook with the Bot API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			chat, err := app.NewChatClient(e.cfg, e.log)
			if err != nil {
				return err
			}
			url := e.cfg.TelegramWebhookURL()
			if err := chat.RegisterWebhook(cmd.Context(), url); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Webhook set to %s\n", url)
			return nil
		},
	}
}

// webhookManager is the board client surface used by syncWebhooks
type webhookManager interface {
	ListWebhooks(ctx context.Context, token string) ([]trello.Webhook, error)
	DeleteWebhook(ctx context.Context, id string) error
	CreateWebhook(ctx context.Context, callbackURL, boardID, description string) (*trello.Webhook, error)
}

func newTrelloWebhookCmd(e *env) *cobra.Command {
	var replace bool

	cmd := &cobra.Command{
		Use:   "trello-webhook",
		Short: "Register TRELLO_WEBHOOK_URL for the configured board",
		Long: "Lists the webhooks owned by TRELLO_TOKEN. Without --replace an existing " +
			"subscription for the same callback and board is kept; with --replace it is " +
			"deleted and recreated.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			board := app.NewBoardClient(e.cfg, e.log)
			return syncWebhooks(cmd.Context(), cmd.OutOrStdout(), board,
				e.cfg.Trello.WebhookURL, e.cfg.Trello.BoardID, replace)
		},
	}
	cmd.Flags().BoolVar(&replace, "replace", false, "delete matching webhooks before creating a new one")
	return cmd
}

func syncWebhooks(ctx context.Context, out io.Writer, board webhookManager, callbackURL, boardID string, replace bool) error {
	hooks, err := board.ListWebhooks(ctx, "")
	if err != nil {
		return fmt.Errorf("failed to list webhooks: %w", err)
	}

	var matching []trello.Webhook
	for _, h := range hooks {
		fmt.Fprintf(out, "existing %s model=%s active=%t %s\n", h.ID, h.IDModel, h.Active, h.CallbackURL)
		if h.CallbackURL == callbackURL && h.IDModel == boardID {
			matching = append(matching, h)
		}
	}

	if len(matching) > 0 && !replace {
		fmt.Fprintf(out, "Webhook already registered (%s); use --replace to recreate\n", matching[0].ID)
		return nil
	}

	for _, h := range matching {
		if err := board.DeleteWebhook(ctx, h.ID); err != nil {
			return fmt.Errorf("failed to delete webhook %s: %w", h.ID, err)
		}
		fmt.Fprintf(out, "deleted %s\n", h.ID)
	}

	hook, err := board.CreateWebhook(ctx, callbackURL, boardID, webhookDescription)
	if err != nil {
		return fmt.Errorf("failed to create webhook: %w", err)
	}
	fmt.Fprintf(out, "created %s for board %s -> %s\n", hook.ID, hook.IDModel, hook.CallbackURL)
	return nil
}
