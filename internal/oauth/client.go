// Package oauth builds the board authorization link and protects the
// token-capture handoff.
package oauth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// DefaultScope is the access requested from the board platform
const DefaultScope = "read,write"

// UserIDParam is the query parameter carrying the chat user id through the
// authorization redirect.
const UserIDParam = "telegram_user_id"

// Client builds authorization links for the board platform
type Client struct {
	authorizeURL string
	apiKey       string
	callbackURL  string
	scope        string
}

// NewClient creates a link builder. callbackURL is the token-capture page.
func NewClient(authorizeURL, apiKey, callbackURL string) (*Client, error) {
	if authorizeURL == "" || apiKey == "" || callbackURL == "" {
		return nil, fmt.Errorf("authorize url, api key and callback url are required")
	}
	if _, err := url.ParseRequestURI(callbackURL); err != nil {
		return nil, fmt.Errorf("invalid callback url: %w", err)
	}

	return &Client{
		authorizeURL: strings.TrimRight(authorizeURL, "?"),
		apiKey:       apiKey,
		callbackURL:  callbackURL,
		scope:        DefaultScope,
	}, nil
}

// RedirectURL is the callback address for one chat user
func (c *Client) RedirectURL(chatUserID int64) string {
	params := url.Values{}
	params.Set(UserIDParam, strconv.FormatInt(chatUserID, 10))
	return c.callbackURL + "?" + params.Encode()
}

// GetAuthorizationURL returns the link a chat user follows to grant access.
// Parameter order is fixed so links are stable across calls.
func (c *Client) GetAuthorizationURL(chatUserID int64) string {
	var b strings.Builder
	b.WriteString(c.authorizeURL)
	b.WriteString("?response_type=code")
	b.WriteString("&key=" + url.QueryEscape(c.apiKey))
	b.WriteString("&redirect_uri=" + url.QueryEscape(c.RedirectURL(chatUserID)))
	b.WriteString("&scope=" + c.scope)
	return b.String()
}

// GenerateState generates a random value used as a one-time token id
func GenerateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
