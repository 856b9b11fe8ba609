// Package identity persists chat identities and their linked board identities.
package identity

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fuomag9/boardrelay/internal/apperrors"
	"github.com/fuomag9/boardrelay/internal/models"
	"github.com/fuomag9/boardrelay/internal/secrets"
)

// Store is the gorm-backed identity store. Board tokens are sealed on
// write and opened on read; callers only ever see plaintext in memory.
type Store struct {
	db     *gorm.DB
	sealer *secrets.Sealer
}

// NewStore creates a new identity store
func NewStore(db *gorm.DB, sealer *secrets.Sealer) *Store {
	return &Store{db: db, sealer: sealer}
}

// FindChatIdentity returns the chat identity for a Telegram user id
func (s *Store) FindChatIdentity(ctx context.Context, chatUserID int64) (*models.ChatIdentity, error) {
	var chat models.ChatIdentity
	err := s.db.WithContext(ctx).Where("user_id = ?", chatUserID).First(&chat).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find chat identity %d: %w", chatUserID, err)
	}
	return &chat, nil
}

// UpsertChatIdentity creates the identity on first sight and otherwise
// refreshes its display fields. The user id itself is never rewritten.
func (s *Store) UpsertChatIdentity(ctx context.Context, chatUserID int64, profile models.ChatProfile) (*models.ChatIdentity, error) {
	row := models.ChatIdentity{
		UserID:    chatUserID,
		FirstName: profile.FirstName,
		LastName:  profile.LastName,
		Username:  profile.Username,
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"first_name", "last_name", "username", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return nil, fmt.Errorf("failed to upsert chat identity %d: %w", chatUserID, err)
	}

	return s.FindChatIdentity(ctx, chatUserID)
}

// ListChatIdentities returns every chat identity in insertion order
func (s *Store) ListChatIdentities(ctx context.Context) ([]models.ChatIdentity, error) {
	var chats []models.ChatIdentity
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&chats).Error; err != nil {
		return nil, fmt.Errorf("failed to list chat identities: %w", err)
	}
	return chats, nil
}

// FindBoardIdentity returns the board identity linked to a Telegram user id
func (s *Store) FindBoardIdentity(ctx context.Context, chatUserID int64) (*models.BoardIdentity, error) {
	var board models.BoardIdentity
	err := s.db.WithContext(ctx).Where("chat_user_id = ?", chatUserID).First(&board).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find board identity for %d: %w", chatUserID, err)
	}

	token, err := s.sealer.Open(board.TokenCiphertext)
	if err != nil {
		return nil, fmt.Errorf("failed to open board token for %d: %w", chatUserID, err)
	}
	board.Token = token

	return &board, nil
}

// UpsertBoardIdentity links a board account to a chat user, replacing any
// previous link. Repeating the call with the same data is a no-op.
func (s *Store) UpsertBoardIdentity(ctx context.Context, chatUserID int64, token string, profile models.BoardProfile) (*models.BoardIdentity, error) {
	sealed, err := s.sealer.Seal(token)
	if err != nil {
		return nil, fmt.Errorf("failed to seal board token: %w", err)
	}

	row := models.BoardIdentity{
		ChatUserID:      chatUserID,
		BoardUserID:     profile.BoardUserID,
		FullName:        profile.FullName,
		Username:        profile.Username,
		AvatarURL:       profile.AvatarURL,
		TokenCiphertext: sealed,
	}

	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "chat_user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"board_user_id", "full_name", "username", "avatar_url", "token_ciphertext", "updated_at",
		}),
	}).Create(&row).Error
	if err != nil {
		return nil, fmt.Errorf("failed to upsert board identity for %d: %w", chatUserID, err)
	}

	return s.FindBoardIdentity(ctx, chatUserID)
}

// LinkState resolves the link state of a chat user
func (s *Store) LinkState(ctx context.Context, chatUserID int64) (models.LinkState, *models.BoardIdentity, error) {
	chat, err := s.FindChatIdentity(ctx, chatUserID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return models.Unlinked, nil, nil
	}
	if err != nil {
		return models.Unlinked, nil, err
	}

	board, err := s.FindBoardIdentity(ctx, chatUserID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return models.Unlinked, nil, nil
	}
	if err != nil {
		return models.Unlinked, nil, err
	}

	return models.LinkStateOf(chat, board), board, nil
}
