package api

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/fuomag9/boardrelay/internal/apperrors"
	"github.com/fuomag9/boardrelay/internal/oauth"
	"github.com/fuomag9/boardrelay/internal/relay"
)

//go:embed templates/*.html
var templateFS embed.FS

var callbackPage = template.Must(template.ParseFS(templateFS, "templates/callback.html"))

const webhookDescription = "boardrelay"

// HandleTrelloWebhookProbe answers the HEAD request the board platform
// sends before accepting a callback URL
func HandleTrelloWebhookProbe() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}
}

// HandleTrelloWebhook accepts board actions and relays qualifying card moves
func HandleTrelloWebhook(rl Relay, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var event relay.BoardEvent
		if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"status": "error"})
			return
		}

		if _, err := rl.HandleBoardEvent(r.Context(), &event); err != nil {
			log.Error("failed to relay board event", zap.String("action_id", event.Action.ID), zap.Error(err))
		}

		writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
	}
}

// HandleSetTrelloWebhook subscribes callbackURL to the configured board
func HandleSetTrelloWebhook(board BoardClient, callbackURL, boardID string, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hook, err := board.CreateWebhook(r.Context(), callbackURL, boardID, webhookDescription)
		if err != nil {
			log.Error("Installation error Webhook", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Installation error Webhook"})
			return
		}
		writeJSON(w, http.StatusOK, hook)
	}
}

// HandleTrelloCallback serves the token-capture page. The board platform
// redirects here with the token in the URL fragment, which never reaches
// the server; the page posts it back together with a CSRF token.
func HandleTrelloCallback(csrf *oauth.CSRF, siteURL string, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := strconv.ParseInt(r.URL.Query().Get(oauth.UserIDParam), 10, 64)
		if err != nil || userID == 0 {
			http.Error(w, "Missing or invalid "+oauth.UserIDParam, http.StatusBadRequest)
			return
		}

		token, err := csrf.Issue(userID)
		if err != nil {
			http.Error(w, "Failed to prepare page", http.StatusInternalServerError)
			return
		}

		renderPage(w, callbackPage, map[string]any{
			"CSRFToken": token,
			"SiteURL":   siteURL,
			"StoreURL":  "/trello/store-user-data",
		}, log)
	}
}

// renderPage buffers the page so a failed render becomes a 500 instead of a
// truncated 200.
func renderPage(w http.ResponseWriter, page *template.Template, data any, log *zap.Logger) {
	var buf bytes.Buffer
	if err := page.Execute(&buf, data); err != nil {
		log.Error("failed to render page", zap.String("template", page.Name()), zap.Error(err))
		http.Error(w, "Failed to prepare page", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(buf.Bytes())
}

// HandleStoreUserData completes a link from the token-capture page
func HandleStoreUserData(rl Relay, csrf *oauth.CSRF, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Token  string `json:"token"`
			UserID chatID `json:"user_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, linkResponse{Error: "Invalid request body"})
			return
		}
		req.Token = strings.TrimSpace(req.Token)
		if req.Token == "" || req.UserID == 0 {
			writeJSON(w, http.StatusBadRequest, linkResponse{Error: "token and user_id are required"})
			return
		}

		if err := csrf.Verify(r.Header.Get("X-CSRF-Token"), int64(req.UserID)); err != nil {
			writeJSON(w, http.StatusForbidden, linkResponse{Error: "Invalid CSRF token"})
			return
		}

		_, err := rl.CompleteLink(r.Context(), req.Token, int64(req.UserID))
		switch {
		case err == nil:
			writeJSON(w, http.StatusOK, linkResponse{Success: true})
		case errors.Is(err, apperrors.ErrNotFound):
			writeJSON(w, http.StatusNotFound, linkResponse{Error: "Telegram user not found"})
		case apperrors.IsUpstream(err):
			writeJSON(w, http.StatusInternalServerError, linkResponse{Error: "Error from Trello API"})
		default:
			log.Error("failed to store board account", zap.Int64("chat_user_id", int64(req.UserID)), zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, linkResponse{Error: "Internal server error"})
		}
	}
}
