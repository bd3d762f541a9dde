package common

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_UnwrapsKindAndCause(t *testing.T) {
	cause := errors.New("db down")
	err := Wrap(ErrorInternal, "something went wrong", cause)

	assert.ErrorIs(t, err, ErrorInternal)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrorUnauthorized)
	assert.Equal(t, "something went wrong", err.Error())
}

func TestError_EmptyMessageFallsBackToKind(t *testing.T) {
	err := NewError(ErrorNotFound, "")
	assert.Equal(t, "not found", err.Error())
}

func TestMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"typed", NewError(ErrorUnauthorized, "invalid user credentials"), "invalid user credentials"},
		{"wrapped typed", fmt.Errorf("login: %w", NewError(ErrorValidation, "password is required")), "password is required"},
		{"bare kind", fmt.Errorf("x: %w", ErrorAlreadyExists), "already exists"},
		{"unknown", errors.New("pq: connection refused"), "internal error"},
		{"nil", nil, "internal error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Message(tt.err))
		})
	}
}
