package grpc

import (
	"context"
	"errors"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dmitrijs2005/channelhub/internal/common"
	"github.com/dmitrijs2005/channelhub/internal/server/auth"
	"github.com/dmitrijs2005/channelhub/internal/server/models"
	"github.com/dmitrijs2005/channelhub/internal/server/services"
)

// Accounts is the session and profile surface served over gRPC.
type Accounts interface {
	Register(ctx context.Context, in services.RegisterInput) (*models.PublicUser, error)
	Login(ctx context.Context, in services.LoginInput) (*services.LoginResult, error)
	Logout(ctx context.Context, userID string) error
	RefreshSession(ctx context.Context, token string) (*services.TokenPair, error)
	ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error
	CurrentUser(ctx context.Context) (*models.PublicUser, error)
	UpdateAccount(ctx context.Context, userID, fullName, email string) (*models.PublicUser, error)
}

// Media issues presigned upload URLs.
type Media interface {
	UpdateAvatar(ctx context.Context, userID string) (*models.MediaUpload, error)
	UpdateCoverImage(ctx context.Context, userID string) (*models.MediaUpload, error)
}

func (s *GRPCServer) Register(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	u, err := s.accounts.Register(ctx, services.RegisterInput{
		FullName: field(in, "fullname"),
		Email:    field(in, "email"),
		Username: field(in, "username"),
		Password: field(in, "password"),
	})
	if err != nil {
		return nil, s.toStatus(ctx, "register", err)
	}
	return userStruct(u)
}

func (s *GRPCServer) Login(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	res, err := s.accounts.Login(ctx, services.LoginInput{
		Username: field(in, "username"),
		Email:    field(in, "email"),
		Password: field(in, "password"),
	})
	if err != nil {
		return nil, s.toStatus(ctx, "login", err)
	}
	return newStruct(map[string]any{
		"user":         userMap(res.User),
		"accessToken":  res.Tokens.AccessToken,
		"refreshToken": res.Tokens.RefreshToken,
	})
}

func (s *GRPCServer) RefreshSession(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	pair, err := s.accounts.RefreshSession(ctx, field(in, "refreshToken"))
	if err != nil {
		return nil, s.toStatus(ctx, "refresh", err)
	}
	return newStruct(map[string]any{
		"accessToken":  pair.AccessToken,
		"refreshToken": pair.RefreshToken,
	})
}

func (s *GRPCServer) Logout(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	u, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.accounts.Logout(ctx, u.ID); err != nil {
		return nil, s.toStatus(ctx, "logout", err)
	}
	return &structpb.Struct{}, nil
}

func (s *GRPCServer) ChangePassword(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	u, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.accounts.ChangePassword(ctx, u.ID, field(in, "oldPassword"), field(in, "newPassword")); err != nil {
		return nil, s.toStatus(ctx, "change password", err)
	}
	return &structpb.Struct{}, nil
}

func (s *GRPCServer) CurrentUser(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	u, err := s.accounts.CurrentUser(ctx)
	if err != nil {
		return nil, s.toStatus(ctx, "current user", err)
	}
	return userStruct(u)
}

func (s *GRPCServer) UpdateAccount(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	u, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	updated, err := s.accounts.UpdateAccount(ctx, u.ID, field(in, "fullname"), field(in, "email"))
	if err != nil {
		return nil, s.toStatus(ctx, "update account", err)
	}
	return userStruct(updated)
}

func (s *GRPCServer) UpdateAvatar(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	return s.upload(ctx, s.media.UpdateAvatar)
}

func (s *GRPCServer) UpdateCoverImage(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	return s.upload(ctx, s.media.UpdateCoverImage)
}

func (s *GRPCServer) upload(ctx context.Context, fn func(context.Context, string) (*models.MediaUpload, error)) (*structpb.Struct, error) {
	u, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	up, err := fn(ctx, u.ID)
	if err != nil {
		return nil, s.toStatus(ctx, "media upload", err)
	}
	return newStruct(map[string]any{
		"kind":      string(up.Kind),
		"key":       up.Key,
		"uploadUrl": up.UploadURL,
		"expiresAt": up.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

func currentUser(ctx context.Context) (*models.PublicUser, error) {
	u, ok := auth.UserFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "unauthorized request")
	}
	return u, nil
}

// toStatus maps an error kind to a gRPC code carrying the public message.
func (s *GRPCServer) toStatus(ctx context.Context, op string, err error) error {
	var code codes.Code
	switch {
	case errors.Is(err, common.ErrorValidation):
		code = codes.InvalidArgument
	case errors.Is(err, common.ErrorAlreadyExists):
		code = codes.AlreadyExists
	case errors.Is(err, common.ErrorNotFound):
		code = codes.NotFound
	case errors.Is(err, common.ErrorUnauthorized), errors.Is(err, common.ErrInvalidToken):
		code = codes.Unauthenticated
	default:
		code = codes.Internal
		s.logger.Error(ctx, op+" failed", "error", err)
	}
	return status.Error(code, common.Message(err))
}

func field(in *structpb.Struct, name string) string {
	return in.GetFields()[name].GetStringValue()
}

func userMap(u *models.PublicUser) map[string]any {
	m := map[string]any{
		"_id":       u.ID,
		"username":  u.Username,
		"email":     u.Email,
		"fullname":  u.FullName,
		"createdAt": u.CreatedAt.UTC().Format(time.RFC3339),
		"updatedAt": u.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if u.AvatarKey != "" {
		m["avatar"] = u.AvatarKey
	}
	if u.CoverImageKey != "" {
		m["coverImage"] = u.CoverImageKey
	}
	return m
}

func userStruct(u *models.PublicUser) (*structpb.Struct, error) {
	return newStruct(userMap(u))
}

func newStruct(m map[string]any) (*structpb.Struct, error) {
	st, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Error(codes.Internal, "internal error")
	}
	return st, nil
}
