// Package trello is a thin client for the Trello REST API.
package trello

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fuomag9/boardrelay/internal/apperrors"
	"github.com/fuomag9/boardrelay/internal/cache"
	"github.com/fuomag9/boardrelay/internal/metrics"
	"github.com/fuomag9/boardrelay/internal/models"
)

const maxErrorBody = 512

// Card is a Trello card
type Card struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	ListID string `json:"idList"`
}

// List is a Trello list
type List struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Board is a Trello board as returned by /members/me/boards
type Board struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	URL    string `json:"url"`
	Closed bool   `json:"closed"`
}

// Webhook is a Trello webhook subscription
type Webhook struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	IDModel     string `json:"idModel"`
	CallbackURL string `json:"callbackURL"`
	Active      bool   `json:"active"`
}

// Options configures a Client
type Options struct {
	BaseURL     string
	APIKey      string
	StaticToken string // used for webhook management
	BoardID     string
	Timeout     time.Duration
	CacheTTL    time.Duration
	Cache       *cache.Cache
	HTTPClient  *http.Client
	Logger      *zap.Logger
}

// Client issues authenticated calls to the Trello API. Every call carries
// the board-wide API key plus a per-user (or static) token.
type Client struct {
	baseURL     string
	apiKey      string
	staticToken string
	boardID     string
	httpClient  *http.Client
	cache       *cache.Cache
	cacheTTL    time.Duration
	log         *zap.Logger
}

// NewClient creates a new Trello client
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = 300 * time.Second
	}
	c := opts.Cache
	if c == nil {
		c = cache.New(1024, ttl)
	}

	return &Client{
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		apiKey:      opts.APIKey,
		staticToken: opts.StaticToken,
		boardID:     opts.BoardID,
		httpClient:  httpClient,
		cache:       c,
		cacheTTL:    ttl,
		log:         log.Named("trello"),
	}
}

// BoardID is the board monitored by this deployment
func (c *Client) BoardID() string {
	return c.boardID
}

// GetMemberProfile fetches the profile of the token's owner
func (c *Client) GetMemberProfile(ctx context.Context, token string) (*models.BoardProfile, error) {
	var profile models.BoardProfile
	if err := c.do(ctx, http.MethodGet, "/members/me", "/members/me", token, nil, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// ListCards returns the cards on a board. Results are cached per token.
func (c *Client) ListCards(ctx context.Context, boardID, token string) ([]Card, error) {
	key := "cards:" + boardID + ":" + tokenKey(token)
	return cache.GetOrCompute(ctx, c.cache, key, c.cacheTTL, func(ctx context.Context) ([]Card, error) {
		var cards []Card
		path := "/boards/" + url.PathEscape(boardID) + "/cards"
		if err := c.do(ctx, http.MethodGet, path, path, token, nil, &cards); err != nil {
			return nil, err
		}
		return cards, nil
	})
}

// ListLists returns list id -> lowercased list name for a board. Results are
// cached per token.
func (c *Client) ListLists(ctx context.Context, boardID, token string) (map[string]string, error) {
	key := "lists:" + boardID + ":" + tokenKey(token)
	return cache.GetOrCompute(ctx, c.cache, key, c.cacheTTL, func(ctx context.Context) (map[string]string, error) {
		var lists []List
		path := "/boards/" + url.PathEscape(boardID) + "/lists"
		if err := c.do(ctx, http.MethodGet, path, path, token, nil, &lists); err != nil {
			return nil, err
		}
		names := make(map[string]string, len(lists))
		for _, l := range lists {
			names[l.ID] = strings.ToLower(l.Name)
		}
		return names, nil
	})
}

// ListBoards returns every board the token's owner belongs to. Results are
// cached per token.
func (c *Client) ListBoards(ctx context.Context, token string) ([]Board, error) {
	key := "boards:" + tokenKey(token)
	return cache.GetOrCompute(ctx, c.cache, key, c.cacheTTL, func(ctx context.Context) ([]Board, error) {
		var boards []Board
		if err := c.do(ctx, http.MethodGet, "/members/me/boards", "/members/me/boards", token, nil, &boards); err != nil {
			return nil, err
		}
		return boards, nil
	})
}

// ComputeTaskStats counts the token owner's view of the configured board
func (c *Client) ComputeTaskStats(ctx context.Context, token string) (TaskStats, error) {
	cards, err := c.ListCards(ctx, c.boardID, token)
	if err != nil {
		return TaskStats{}, fmt.Errorf("failed to fetch cards: %w", err)
	}

	lists, err := c.ListLists(ctx, c.boardID, token)
	if err != nil {
		return TaskStats{}, fmt.Errorf("failed to fetch lists: %w", err)
	}

	return CountTasks(cards, lists), nil
}

// CreateWebhook subscribes callbackURL to events on boardID using the static
// token. Duplicate subscriptions are not prevented here.
func (c *Client) CreateWebhook(ctx context.Context, callbackURL, boardID, description string) (*Webhook, error) {
	body := map[string]any{
		"description": description,
		"callbackURL": callbackURL,
		"idModel":     boardID,
		"active":      true,
	}

	var hook Webhook
	if err := c.do(ctx, http.MethodPost, "/webhooks", "/webhooks", c.staticToken, body, &hook); err != nil {
		return nil, err
	}
	return &hook, nil
}

// ListWebhooks lists the webhooks registered with token. An empty token
// means the static token.
func (c *Client) ListWebhooks(ctx context.Context, token string) ([]Webhook, error) {
	if token == "" {
		token = c.staticToken
	}

	var hooks []Webhook
	path := "/tokens/" + url.PathEscape(token) + "/webhooks"
	if err := c.do(ctx, http.MethodGet, path, "/tokens/{token}/webhooks", "", nil, &hooks); err != nil {
		return nil, err
	}
	return hooks, nil
}

// DeleteWebhook removes a webhook using the static token
func (c *Client) DeleteWebhook(ctx context.Context, id string) error {
	path := "/webhooks/" + url.PathEscape(id)
	return c.do(ctx, http.MethodDelete, path, path, c.staticToken, nil, nil)
}

// do performs a request. label is the loggable form of path; it never
// contains credentials.
func (c *Client) do(ctx context.Context, method, path, label, token string, body, out any) error {
	query := url.Values{}
	query.Set("key", c.apiKey)
	if token != "" {
		query.Set("token", token)
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path+"?"+query.Encode(), reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.fail(&apperrors.UpstreamError{Service: "trello", Endpoint: method + " " + label, Err: stripQuery(err)})
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return c.fail(&apperrors.UpstreamError{
			Service:    "trello",
			Endpoint:   method + " " + label,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(raw)),
		})
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return c.fail(&apperrors.UpstreamError{
			Service:    "trello",
			Endpoint:   method + " " + label,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("failed to decode response: %w", err),
		})
	}
	return nil
}

func (c *Client) fail(err *apperrors.UpstreamError) error {
	metrics.UpstreamErrors.WithLabelValues("trello").Inc()
	c.log.Warn("trello request failed",
		zap.String("endpoint", err.Endpoint),
		zap.Int("status", err.StatusCode),
		zap.String("body", err.Body),
		zap.Error(err.Err),
	)
	return err
}

// stripQuery removes the request URL (which carries key and token) from
// transport errors.
func stripQuery(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		return fmt.Errorf("%s: %w", ue.Op, ue.Err)
	}
	return err
}

// tokenKey keeps raw tokens out of cache keys
func tokenKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:8])
}
