// Package apperrors defines the error taxonomy shared by the relay components.
package apperrors

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a requested identity does not exist.
var ErrNotFound = errors.New("not found")

// UpstreamError reports a non-2xx response or transport failure from an external API.
type UpstreamError struct {
	Service    string // "trello" or "telegram"
	Endpoint   string
	StatusCode int // 0 for transport failures
	Body       string
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: status %d: %s", e.Service, e.Endpoint, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("%s %s: %v", e.Service, e.Endpoint, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// NotLinkedError is returned when a chat user has no board identity with a token.
type NotLinkedError struct {
	ChatUserID int64
}

func (e *NotLinkedError) Error() string {
	return fmt.Sprintf("Trello account not linked for user %d", e.ChatUserID)
}

// DeliveryError is returned when a chat message was not delivered.
type DeliveryError struct {
	ChatID int64
	Err    error
}

func (e *DeliveryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("message to chat %d not delivered: %v", e.ChatID, e.Err)
	}
	return fmt.Sprintf("message to chat %d not delivered", e.ChatID)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// IsNotLinked reports whether err is or wraps a NotLinkedError.
func IsNotLinked(err error) bool {
	var nl *NotLinkedError
	return errors.As(err, &nl)
}

// IsUpstream reports whether err is or wraps an UpstreamError.
func IsUpstream(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue)
}

// IsDelivery reports whether err is or wraps a DeliveryError.
func IsDelivery(err error) bool {
	var de *DeliveryError
	return errors.As(err, &de)
}
