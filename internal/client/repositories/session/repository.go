// Package session persists the CLI's login between runs.
package session

import (
	"context"

	"github.com/dmitrijs2005/channelhub/internal/client/models"
)

type Repository interface {
	// Load returns nil, nil when nothing is stored.
	Load(ctx context.Context) (*models.Session, error)
	Save(ctx context.Context, s models.Session) error
	SaveTokens(ctx context.Context, t models.Tokens) error
	Clear(ctx context.Context) error
}
