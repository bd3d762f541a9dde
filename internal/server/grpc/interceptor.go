package grpc

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/dmitrijs2005/channelhub/internal/common"
	"github.com/dmitrijs2005/channelhub/internal/server/auth"
	"github.com/dmitrijs2005/channelhub/internal/server/models"
)

// Authenticator resolves an access token to a user.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.PublicUser, error)
}

var protectedMethods = map[string]bool{
	FullMethod("Logout"):           true,
	FullMethod("ChangePassword"):   true,
	FullMethod("CurrentUser"):      true,
	FullMethod("UpdateAccount"):    true,
	FullMethod("UpdateAvatar"):     true,
	FullMethod("UpdateCoverImage"): true,
}

func firstValue(md metadata.MD, key string) string {
	if values := md.Get(key); len(values) > 0 {
		return values[0]
	}
	return ""
}

// accessTokenInterceptor guards protected methods. The token comes from the
// access_token metadata key or an "authorization: Bearer" entry.
func (s *GRPCServer) accessTokenInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	if !protectedMethods[info.FullMethod] {
		return handler(ctx, req)
	}

	var token string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		token = auth.ExtractToken(
			firstValue(md, common.AccessTokenHeaderName),
			firstValue(md, common.AuthorizationHeaderName),
		)
	}

	u, err := s.guard.Authenticate(ctx, token)
	if err != nil {
		return nil, s.toStatus(ctx, "authenticate", err)
	}
	return handler(auth.WithUser(ctx, u), req)
}

func (s *GRPCServer) loggingInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	s.logger.Info(ctx, "grpc request",
		"method", info.FullMethod,
		"code", status.Code(err).String(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return resp, err
}
