package oauth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// CSRFTTL bounds how long a token-capture page may wait before posting
const CSRFTTL = 15 * time.Minute

const csrfAudience = "store-user-data"

// ErrInvalidCSRF is returned for missing, expired, forged or mismatched tokens
var ErrInvalidCSRF = errors.New("invalid CSRF token")

// CSRF issues and verifies short-lived tokens bound to one chat user. The
// token-capture page embeds one and echoes it in the X-CSRF-Token header.
type CSRF struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewCSRF creates a CSRF issuer signing with secret
func NewCSRF(secret string) *CSRF {
	return &CSRF{secret: []byte(secret), ttl: CSRFTTL, now: time.Now}
}

// Issue returns a token valid for chatUserID
func (c *CSRF) Issue(chatUserID int64) (string, error) {
	jti, err := GenerateState()
	if err != nil {
		return "", err
	}

	now := c.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(chatUserID, 10),
		Audience:  jwt.ClaimStrings{csrfAudience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		ID:        jti,
	})

	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign CSRF token: %w", err)
	}
	return signed, nil
}

// Verify checks that raw was issued by this CSRF for chatUserID and has not
// expired.
func (c *CSRF) Verify(raw string, chatUserID int64) error {
	if raw == "" {
		return ErrInvalidCSRF
	}

	var claims jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(csrfAudience),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil || !token.Valid {
		return ErrInvalidCSRF
	}

	if claims.Subject != strconv.FormatInt(chatUserID, 10) {
		return ErrInvalidCSRF
	}
	return nil
}
