// Package client talks to the accounts server over gRPC and opens the
// CLI's local database.
package client

import (
	"context"

	"github.com/dmitrijs2005/channelhub/internal/client/models"
)

type Client interface {
	Close() error
	Ping(ctx context.Context) error
	Register(ctx context.Context, fullName, email, username, password string) (*models.User, error)
	// Login keeps the issued tokens for later calls.
	Login(ctx context.Context, username, email, password string) (*models.User, error)
	RefreshSession(ctx context.Context) error
	Logout(ctx context.Context) error
	CurrentUser(ctx context.Context) (*models.User, error)
	ChangePassword(ctx context.Context, oldPassword, newPassword string) error
	UpdateAccount(ctx context.Context, fullName, email string) (*models.User, error)
	UpdateAvatar(ctx context.Context) (*models.MediaUpload, error)
	UpdateCoverImage(ctx context.Context) (*models.MediaUpload, error)

	Tokens() models.Tokens
	SetTokens(t models.Tokens)
	// OnTokens registers a callback run whenever the client rotates tokens.
	OnTokens(fn func(ctx context.Context, t models.Tokens))
}
