package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLinkStateOf(t *testing.T) {
	chat := &ChatIdentity{UserID: 1}

	tests := []struct {
		name  string
		chat  *ChatIdentity
		board *BoardIdentity
		want  LinkState
	}{
		{"no chat identity", nil, &BoardIdentity{Token: "t"}, Unlinked},
		{"no board identity", chat, nil, Unlinked},
		{"tokenless board identity", chat, &BoardIdentity{BoardUserID: "abc"}, Unlinked},
		{"linked", chat, &BoardIdentity{Token: "t"}, Linked},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LinkStateOf(tt.chat, tt.board))
		})
	}
	assert.Equal(t, "linked", Linked.String())
	assert.Equal(t, "unlinked", Unlinked.String())
}

func TestChatIdentity_DisplayName(t *testing.T) {
	assert.Equal(t, "Ada Lovelace", (&ChatIdentity{FirstName: "Ada", LastName: "Lovelace"}).DisplayName())
	assert.Equal(t, "Ada", (&ChatIdentity{FirstName: "Ada"}).DisplayName())
	assert.Equal(t, "@ada", (&ChatIdentity{Username: "ada"}).DisplayName())
	assert.Equal(t, "User 99", (&ChatIdentity{UserID: 99}).DisplayName())
}
