package models

import (
	"strconv"
	"strings"
	"time"
)

// ChatIdentity represents a Telegram user that has talked to the bot
type ChatIdentity struct {
	ID        uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	UserID    int64     `json:"user_id" gorm:"uniqueIndex;not null"`
	FirstName string    `json:"first_name" gorm:"size:64"`
	LastName  string    `json:"last_name" gorm:"size:64"`
	Username  string    `json:"username" gorm:"size:32"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for ChatIdentity
func (ChatIdentity) TableName() string {
	return "telegram_users"
}

// DisplayName is the name used in reports
func (c *ChatIdentity) DisplayName() string {
	name := strings.TrimSpace(c.FirstName + " " + c.LastName)
	if name != "" {
		return name
	}
	if c.Username != "" {
		return "@" + c.Username
	}
	return "User " + strconv.FormatInt(c.UserID, 10)
}

// ChatProfile holds the mutable display fields of a ChatIdentity
type ChatProfile struct {
	FirstName string
	LastName  string
	Username  string
}

// BoardIdentity represents the Trello account linked to a Telegram user
type BoardIdentity struct {
	ID              uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	ChatUserID      int64     `json:"chat_user_id" gorm:"uniqueIndex;not null"`
	BoardUserID     string    `json:"board_user_id" gorm:"size:24"`
	FullName        string    `json:"full_name" gorm:"size:100"`
	Username        string    `json:"username" gorm:"size:50"`
	AvatarURL       string    `json:"avatar_url" gorm:"size:255"`
	TokenCiphertext string    `json:"-" gorm:"column:token_ciphertext"` // sealed, never exposed
	Token           string    `json:"-" gorm:"-"`                       // plaintext, populated on read
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// TableName specifies the table name for BoardIdentity
func (BoardIdentity) TableName() string {
	return "trello_users"
}

// BoardProfile is the member profile returned by the board platform
type BoardProfile struct {
	BoardUserID string `json:"id"`
	FullName    string `json:"fullName"`
	Username    string `json:"username"`
	AvatarURL   string `json:"avatarUrl"`
}

// LinkState describes whether a chat user has a usable board link
type LinkState int

const (
	Unlinked LinkState = iota
	Linked
)

func (s LinkState) String() string {
	if s == Linked {
		return "linked"
	}
	return "unlinked"
}

// LinkStateOf derives the link state from the two stored entities.
// Either argument may be nil.
func LinkStateOf(chat *ChatIdentity, board *BoardIdentity) LinkState {
	if chat == nil || board == nil || board.Token == "" {
		return Unlinked
	}
	return Linked
}
