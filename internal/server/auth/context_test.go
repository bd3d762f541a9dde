package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUserContext(t *testing.T) {
	_, ok := UserFromContext(context.Background())
	assert.False(t, ok)

	ctx := WithUser(context.Background(), alice)
	got, ok := UserFromContext(ctx)
	assert.True(t, ok)
	assert.Same(t, alice, got)

	_, ok = UserFromContext(WithUser(context.Background(), nil))
	assert.False(t, ok)
}

func TestExtractToken(t *testing.T) {
	tests := []struct {
		name   string
		cookie string
		header string
		want   string
	}{
		{"cookie only", "c-tok", "", "c-tok"},
		{"header only", "", "Bearer h-tok", "h-tok"},
		{"cookie wins", "c-tok", "Bearer h-tok", "c-tok"},
		{"case-insensitive scheme", "", "bearer h-tok", "h-tok"},
		{"wrong scheme", "", "Basic abc", ""},
		{"bare prefix", "", "Bearer ", ""},
		{"nothing", "", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractToken(tt.cookie, tt.header))
		})
	}
}
