package api

import (
	"encoding/json"
	"net/http"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/fuomag9/boardrelay/internal/apperrors"
	"github.com/fuomag9/boardrelay/internal/telegram"
)

// HandleTelegramWebhook accepts chat updates. Processing errors are logged
// and still acknowledged so the platform does not redeliver indefinitely.
func HandleTelegramWebhook(relay Relay, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var update tgbotapi.Update
		if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		if err := relay.HandleUpdate(r.Context(), &update); err != nil {
			log.Error("failed to handle chat update", zap.Int("update_id", update.UpdateID), zap.Error(err))
		}

		w.WriteHeader(http.StatusOK)
	}
}

// HandleSetTelegramWebhook registers webhookURL with the chat platform
func HandleSetTelegramWebhook(chat ChatClient, webhookURL string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := chat.RegisterWebhook(r.Context(), webhookURL); err != nil {
			writeJSON(w, http.StatusInternalServerError, messageResponse{Message: "Failed to set webhook."})
			return
		}
		writeJSON(w, http.StatusOK, messageResponse{Message: "Webhook set successfully."})
	}
}

// HandleSendMessage sends a plain message to any chat
func HandleSendMessage(chat ChatClient) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ChatID  chatID `json:"chat_id"`
			Message string `json:"message"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, messageResponse{Message: "Invalid request body"})
			return
		}
		if req.ChatID == 0 || strings.TrimSpace(req.Message) == "" {
			writeJSON(w, http.StatusBadRequest, messageResponse{Message: "chat_id and message are required"})
			return
		}

		_, err := chat.SendMessage(r.Context(), telegram.Outgoing{ChatID: int64(req.ChatID), Text: req.Message})
		switch {
		case err == nil:
			writeJSON(w, http.StatusOK, messageResponse{Message: "Message sent successfully!"})
		case apperrors.IsDelivery(err):
			writeJSON(w, http.StatusBadRequest, messageResponse{Message: "Failed to send message."})
		default:
			writeJSON(w, http.StatusInternalServerError, messageResponse{Message: "Error: " + err.Error()})
		}
	}
}
