package auth

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/channelhub/internal/common"
	"github.com/dmitrijs2005/channelhub/internal/logging"
	"github.com/dmitrijs2005/channelhub/internal/server/models"
)

const (
	msgUnauthorizedRequest = "unauthorized request"
	msgInvalidAccessToken  = common.InvalidAccessTokenMessage
)

// UserFinder loads users by id.
type UserFinder interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// Guard resolves an access token to the user it was issued for. It is the
// only source of the caller's identity for protected operations.
type Guard struct {
	issuer *Issuer
	users  UserFinder
	logger logging.Logger
}

func NewGuard(issuer *Issuer, users UserFinder, l logging.Logger) *Guard {
	return &Guard{issuer: issuer, users: users, logger: l.With("module", "auth_guard")}
}

// Authenticate verifies token and loads its user. Missing, invalid or stale
// credentials fail with common.ErrorUnauthorized.
func (g *Guard) Authenticate(ctx context.Context, token string) (*models.PublicUser, error) {
	if token == "" {
		return nil, common.NewError(common.ErrorUnauthorized, msgUnauthorizedRequest)
	}

	claims, err := g.issuer.VerifyAccess(token)
	if err != nil {
		g.logger.Debug(ctx, "access token rejected", "error", err)
		return nil, common.Wrap(common.ErrorUnauthorized, msgInvalidAccessToken, err)
	}

	u, err := g.users.GetByID(ctx, claims.UserID())
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.NewError(common.ErrorUnauthorized, msgInvalidAccessToken)
		}
		return nil, common.Wrap(common.ErrorInternal, "", err)
	}

	return u.Public(), nil
}
