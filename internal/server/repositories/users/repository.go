// Package users is the Credential Store: persisted user records with their
// password hash and single active refresh token.
package users

import (
	"context"

	"github.com/dmitrijs2005/channelhub/internal/server/models"
)

// Repository persists users. Lookups of a missing user return
// common.ErrorNotFound; username or email collisions return
// common.ErrorAlreadyExists.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	// GetByUsernameOrEmail matches either field; blank arguments match nothing.
	GetByUsernameOrEmail(ctx context.Context, username, email string) (*models.User, error)

	// SetRefreshToken overwrites the stored refresh token; nil clears it.
	SetRefreshToken(ctx context.Context, id string, token *string) error
	// SwapRefreshToken replaces the stored refresh token with next only if it
	// currently equals current. It reports whether the swap happened.
	SwapRefreshToken(ctx context.Context, id, current, next string) (bool, error)

	UpdatePassword(ctx context.Context, id, passwordHash string) error
	UpdateAccount(ctx context.Context, id, fullName, email string) (*models.User, error)
	UpdateMediaKey(ctx context.Context, id string, kind models.MediaKind, key string) (*models.User, error)
}
