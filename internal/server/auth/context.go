package auth

import (
	"context"
	"strings"

	"github.com/dmitrijs2005/channelhub/internal/common"
	"github.com/dmitrijs2005/channelhub/internal/server/models"
)

type ctxKey string

const userKey ctxKey = "user"

// WithUser returns a copy of ctx carrying the authenticated user.
func WithUser(ctx context.Context, u *models.PublicUser) context.Context {
	return context.WithValue(ctx, userKey, u)
}

// UserFromContext returns the user attached by the guard, if any.
func UserFromContext(ctx context.Context) (*models.PublicUser, bool) {
	u, ok := ctx.Value(userKey).(*models.PublicUser)
	return u, ok && u != nil
}

// ExtractToken picks the access token from a cookie value or an
// "Authorization: Bearer <token>" header. The cookie wins.
func ExtractToken(cookieValue, authorization string) string {
	if t := strings.TrimSpace(cookieValue); t != "" {
		return t
	}
	authorization = strings.TrimSpace(authorization)
	if len(authorization) > len(common.BearerPrefix) &&
		strings.EqualFold(authorization[:len(common.BearerPrefix)], common.BearerPrefix) {
		return strings.TrimSpace(authorization[len(common.BearerPrefix):])
	}
	return ""
}
