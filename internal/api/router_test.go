package api

import (
	"context"
	"encoding/json"
	"errors"
	"html/template"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/fuomag9/boardrelay/internal/apperrors"
	"github.com/fuomag9/boardrelay/internal/config"
	"github.com/fuomag9/boardrelay/internal/models"
	"github.com/fuomag9/boardrelay/internal/oauth"
	"github.com/fuomag9/boardrelay/internal/relay"
	"github.com/fuomag9/boardrelay/internal/telegram"
	"github.com/fuomag9/boardrelay/internal/trello"
)

type fakeRelay struct {
	updates    []*tgbotapi.Update
	events     []*relay.BoardEvent
	links      map[int64]string
	known      map[int64]bool
	linkErr    error
	updateErr  error
	linkedUser int64
}

func (f *fakeRelay) HandleUpdate(_ context.Context, u *tgbotapi.Update) error {
	f.updates = append(f.updates, u)
	return f.updateErr
}

func (f *fakeRelay) HandleBoardEvent(_ context.Context, e *relay.BoardEvent) (bool, error) {
	f.events = append(f.events, e)
	return false, nil
}

func (f *fakeRelay) CompleteLink(_ context.Context, token string, id int64) (*models.BoardIdentity, error) {
	if f.linkErr != nil {
		return nil, f.linkErr
	}
	if !f.known[id] {
		return nil, apperrors.ErrNotFound
	}
	f.links[id] = token
	return &models.BoardIdentity{ChatUserID: id}, nil
}

func (f *fakeRelay) UserBoards(_ context.Context, id int64) ([]trello.Board, error) {
	if id != f.linkedUser {
		return nil, &apperrors.NotLinkedError{ChatUserID: id}
	}
	return []trello.Board{{ID: "b1", Name: "Team"}}, nil
}

func (f *fakeRelay) UserStats(_ context.Context, id int64) (trello.TaskStats, error) {
	if id != f.linkedUser {
		return trello.TaskStats{}, &apperrors.NotLinkedError{ChatUserID: id}
	}
	return trello.TaskStats{InProgress: 1, Done: 2}, nil
}

type fakeChat struct {
	sent       []telegram.Outgoing
	sendErr    error
	webhookURL string
	webhookErr error
}

func (f *fakeChat) SendMessage(_ context.Context, msg telegram.Outgoing) (int, error) {
	if f.sendErr != nil {
		return 0, f.sendErr
	}
	f.sent = append(f.sent, msg)
	return 1, nil
}

func (f *fakeChat) RegisterWebhook(_ context.Context, url string) error {
	f.webhookURL = url
	return f.webhookErr
}

type fakeBoard struct {
	err error
}

func (f *fakeBoard) CreateWebhook(_ context.Context, callbackURL, boardID, description string) (*trello.Webhook, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &trello.Webhook{ID: "w1", CallbackURL: callbackURL, IDModel: boardID, Description: description, Active: true}, nil
}

type testServer struct {
	handler http.Handler
	relay   *fakeRelay
	chat    *fakeChat
	board   *fakeBoard
	csrf    *oauth.CSRF
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	cfg := &config.Config{
		Environment: "development",
		AppURL:      "https://relay.example",
		CORSOrigins: []string{"https://relay.example"},
		AdminToken:  "admin-secret",
		Trello: config.TrelloConfig{
			BoardID:    "b1",
			WebhookURL: "https://relay.example/trello/webhook",
			SiteURL:    "https://trello.com/",
		},
	}

	ts := &testServer{
		relay: &fakeRelay{links: map[int64]string{}, known: map[int64]bool{100: true}, linkedUser: 100},
		chat:  &fakeChat{},
		board: &fakeBoard{},
		csrf:  oauth.NewCSRF("csrf-secret"),
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	ts.handler = NewRouter(ctx, Deps{
		Config: cfg,
		Relay:  ts.relay,
		Chat:   ts.chat,
		Board:  ts.board,
		CSRF:   ts.csrf,
	})
	return ts
}

func (ts *testServer) do(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), "go_goroutines")
}

func TestTelegramWebhook(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPost, "/telegram/webhook", `{"update_id":7,"message":{"message_id":1,"text":"/start","chat":{"id":5,"type":"private"},"from":{"id":5,"first_name":"Ada"}}}`, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())
	require.Len(t, ts.relay.updates, 1)
	assert.Equal(t, "/start", ts.relay.updates[0].Message.Text)

	ts.relay.updateErr = errors.New("db down")
	rec = ts.do(http.MethodPost, "/telegram/webhook", `{"update_id":8}`, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(http.MethodPost, "/telegram/webhook", `not json`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSetTelegramWebhook(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPost, "/telegram/set-webhook", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Webhook set successfully.", decode(t, rec)["message"])
	assert.Equal(t, "https://relay.example/telegram/webhook", ts.chat.webhookURL)

	ts.chat.webhookErr = errors.New("nope")
	rec = ts.do(http.MethodPost, "/telegram/set-webhook", "", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Failed to set webhook.", decode(t, rec)["message"])
}

func TestSendMessage(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPost, "/send-message", `{"chat_id":"-100","message":"hello"}`, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Message sent successfully!", decode(t, rec)["message"])
	require.Len(t, ts.chat.sent, 1)
	assert.Equal(t, int64(-100), ts.chat.sent[0].ChatID)

	rec = ts.do(http.MethodPost, "/send-message", `{"chat_id":5}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	ts.chat.sendErr = &apperrors.DeliveryError{ChatID: 5}
	rec = ts.do(http.MethodPost, "/send-message", `{"chat_id":5,"message":"x"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Failed to send message.", decode(t, rec)["message"])

	ts.chat.sendErr = &apperrors.UpstreamError{Service: "telegram", Endpoint: "sendMessage", Err: errors.New("timeout")}
	rec = ts.do(http.MethodPost, "/send-message", `{"chat_id":5,"message":"x"}`, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.True(t, strings.HasPrefix(decode(t, rec)["message"].(string), "Error: "))
}

func TestTrelloWebhook(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodHead, "/trello/webhook", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(http.MethodPost, "/trello/webhook", `{"action":{"id":"a1","type":"updateCard"}}`, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "success", decode(t, rec)["status"])
	require.Len(t, ts.relay.events, 1)
	assert.Equal(t, "updateCard", ts.relay.events[0].Action.Type)
}

func TestSetTrelloWebhook(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPost, "/trello/set-webhook", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "b1", body["idModel"])
	assert.Equal(t, "https://relay.example/trello/webhook", body["callbackURL"])

	ts.board.err = errors.New("boom")
	rec = ts.do(http.MethodPost, "/trello/set-webhook", "", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Installation error Webhook", decode(t, rec)["error"])
}

func TestTrelloCallbackPage(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/trello/callback?telegram_user_id=100", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), `name="csrf-token"`)
	assert.Contains(t, rec.Body.String(), `content="https://trello.com/"`)

	rec = ts.do(http.MethodGet, "/trello/callback", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRenderPage_FailureIsLogged(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	broken := template.Must(template.New("broken").Parse(`<p>{{template "missing"}}</p>`))

	rec := httptest.NewRecorder()
	renderPage(rec, broken, nil, zap.New(core))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "<p>")
	entries := logs.FilterMessage("failed to render page").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "broken", entries[0].ContextMap()["template"])
}

func TestStoreUserData(t *testing.T) {
	ts := newTestServer(t)
	token, err := ts.csrf.Issue(100)
	require.NoError(t, err)
	headers := map[string]string{"X-CSRF-Token": token}

	rec := ts.do(http.MethodPost, "/trello/store-user-data", `{"token":"tok","user_id":"100"}`, headers)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["success"])
	assert.Equal(t, "tok", ts.relay.links[100])

	rec = ts.do(http.MethodPost, "/trello/store-user-data", `{"token":"tok","user_id":"100"}`, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(http.MethodPost, "/trello/store-user-data", `{"user_id":"100"}`, headers)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, false, decode(t, rec)["success"])
}

func TestStoreUserData_UnknownUser(t *testing.T) {
	ts := newTestServer(t)
	token, err := ts.csrf.Issue(999)
	require.NoError(t, err)

	rec := ts.do(http.MethodPost, "/trello/store-user-data", `{"token":"tok","user_id":999}`, map[string]string{"X-CSRF-Token": token})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Telegram user not found", body["error"])
	assert.Empty(t, ts.relay.links)
}

func TestStoreUserData_UpstreamFailure(t *testing.T) {
	ts := newTestServer(t)
	ts.relay.linkErr = &apperrors.UpstreamError{Service: "trello", Endpoint: "GET /members/me", StatusCode: 401}
	token, err := ts.csrf.Issue(100)
	require.NoError(t, err)

	rec := ts.do(http.MethodPost, "/trello/store-user-data", `{"token":"tok","user_id":100}`, map[string]string{"X-CSRF-Token": token})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Error from Trello API", decode(t, rec)["error"])
}

func TestUserRoutes(t *testing.T) {
	ts := newTestServer(t)
	auth := map[string]string{"Authorization": "Bearer admin-secret"}

	rec := ts.do(http.MethodGet, "/api/users/100/boards", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(http.MethodGet, "/api/users/100/boards", "", map[string]string{"Authorization": "Bearer wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(http.MethodGet, "/api/users/100/boards", "", auth)
	assert.Equal(t, http.StatusOK, rec.Code)
	var boards []trello.Board
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &boards))
	assert.Equal(t, "Team", boards[0].Name)

	rec = ts.do(http.MethodGet, "/api/users/100/stats", "", auth)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), decode(t, rec)["in_progress"])

	rec = ts.do(http.MethodGet, "/api/users/7/stats", "", auth)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Trello account not linked.", decode(t, rec)["message"])

	rec = ts.do(http.MethodGet, "/api/users/abc/stats", "", auth)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
