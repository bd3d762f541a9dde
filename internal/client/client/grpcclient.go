package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dmitrijs2005/channelhub/internal/client/models"
	"github.com/dmitrijs2005/channelhub/internal/common"
)

// Calls that never carry or refresh an access token.
var publicMethods = map[string]bool{
	common.AccountMethod("Register"):       true,
	common.AccountMethod("Login"):          true,
	common.AccountMethod("RefreshSession"): true,
}

type GRPCClient struct {
	endpointURL string
	dialOpts    []grpc.DialOption
	conn        *grpc.ClientConn

	mu        sync.Mutex
	tokens    models.Tokens
	onTokens  func(ctx context.Context, t models.Tokens)
	refreshMu sync.Mutex
}

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	md.Set(common.AuthorizationHeaderName, common.BearerPrefix+token)
	return metadata.NewOutgoingContext(ctx, md)
}

// accessTokenInterceptor attaches the access token to protected calls. When
// the server rejects it, the session is refreshed once and the call retried.
func (s *GRPCClient) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply any,
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	if publicMethods[method] {
		return invoker(ctx, method, req, reply, cc, opts...)
	}

	used := s.Tokens()
	err := invoker(withAccessToken(ctx, used.AccessToken), method, req, reply, cc, opts...)
	if !accessTokenRejected(err) || used.RefreshToken == "" {
		return err
	}

	if err := s.refreshIfStale(ctx, used); err != nil {
		return err
	}
	return invoker(withAccessToken(ctx, s.Tokens().AccessToken), method, req, reply, cc, opts...)
}

func accessTokenRejected(err error) bool {
	st, ok := status.FromError(err)
	return ok && st.Code() == codes.Unauthenticated && st.Message() == common.InvalidAccessTokenMessage
}

// refreshIfStale refreshes unless another call already rotated away from used.
func (s *GRPCClient) refreshIfStale(ctx context.Context, used models.Tokens) error {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	if s.Tokens() != used {
		return nil
	}
	return s.refresh(ctx, used.RefreshToken)
}

func NewGRPCClient(endpointURL string, opts ...grpc.DialOption) (*GRPCClient, error) {
	c := &GRPCClient{endpointURL: endpointURL, dialOpts: opts}
	if err := c.InitGRPCClient(); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *GRPCClient) InitGRPCClient() error {
	opts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(s.accessTokenInterceptor),
	}, s.dialOpts...)

	conn, err := grpc.NewClient(s.endpointURL, opts...)
	if err != nil {
		return err
	}
	s.conn = conn
	return nil
}

func (s *GRPCClient) Close() error {
	return s.conn.Close()
}

func (s *GRPCClient) Tokens() models.Tokens {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokens
}

func (s *GRPCClient) SetTokens(t models.Tokens) {
	s.mu.Lock()
	s.tokens = t
	s.mu.Unlock()
}

func (s *GRPCClient) OnTokens(fn func(ctx context.Context, t models.Tokens)) {
	s.mu.Lock()
	s.onTokens = fn
	s.mu.Unlock()
}

func (s *GRPCClient) storeTokens(ctx context.Context, t models.Tokens) {
	s.mu.Lock()
	s.tokens = t
	fn := s.onTokens
	s.mu.Unlock()
	if fn != nil {
		fn(ctx, t)
	}
}

func (s *GRPCClient) call(ctx context.Context, method string, in map[string]any) (*structpb.Struct, error) {
	req, err := structpb.NewStruct(in)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	out := new(structpb.Struct)
	if err := s.conn.Invoke(ctx, common.AccountMethod(method), req, out); err != nil {
		return nil, s.mapError(err)
	}
	return out, nil
}

func (s *GRPCClient) Ping(ctx context.Context) error {
	resp, err := healthpb.NewHealthClient(s.conn).Check(ctx, &healthpb.HealthCheckRequest{
		Service: common.AccountServiceName,
	})
	if err != nil {
		return s.mapError(err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return ErrUnavailable
	}
	return nil
}

func (s *GRPCClient) Register(ctx context.Context, fullName, email, username, password string) (*models.User, error) {
	resp, err := s.call(ctx, "Register", map[string]any{
		"fullname": fullName,
		"email":    email,
		"username": username,
		"password": password,
	})
	if err != nil {
		return nil, err
	}
	return userFrom(resp), nil
}

func (s *GRPCClient) Login(ctx context.Context, username, email, password string) (*models.User, error) {
	resp, err := s.call(ctx, "Login", map[string]any{
		"username": username,
		"email":    email,
		"password": password,
	})
	if err != nil {
		return nil, err
	}
	s.storeTokens(ctx, tokensFrom(resp))
	return userFrom(resp.GetFields()["user"].GetStructValue()), nil
}

func (s *GRPCClient) RefreshSession(ctx context.Context) error {
	return s.refresh(ctx, s.Tokens().RefreshToken)
}

func (s *GRPCClient) refresh(ctx context.Context, refreshToken string) error {
	resp, err := s.call(ctx, "RefreshSession", map[string]any{"refreshToken": refreshToken})
	if err != nil {
		return err
	}
	s.storeTokens(ctx, tokensFrom(resp))
	return nil
}

func (s *GRPCClient) Logout(ctx context.Context) error {
	if _, err := s.call(ctx, "Logout", nil); err != nil {
		return err
	}
	s.SetTokens(models.Tokens{})
	return nil
}

func (s *GRPCClient) CurrentUser(ctx context.Context) (*models.User, error) {
	resp, err := s.call(ctx, "CurrentUser", nil)
	if err != nil {
		return nil, err
	}
	return userFrom(resp), nil
}

func (s *GRPCClient) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	_, err := s.call(ctx, "ChangePassword", map[string]any{
		"oldPassword": oldPassword,
		"newPassword": newPassword,
	})
	return err
}

func (s *GRPCClient) UpdateAccount(ctx context.Context, fullName, email string) (*models.User, error) {
	resp, err := s.call(ctx, "UpdateAccount", map[string]any{
		"fullname": fullName,
		"email":    email,
	})
	if err != nil {
		return nil, err
	}
	return userFrom(resp), nil
}

func (s *GRPCClient) UpdateAvatar(ctx context.Context) (*models.MediaUpload, error) {
	return s.upload(ctx, "UpdateAvatar")
}

func (s *GRPCClient) UpdateCoverImage(ctx context.Context) (*models.MediaUpload, error) {
	return s.upload(ctx, "UpdateCoverImage")
}

func (s *GRPCClient) upload(ctx context.Context, method string) (*models.MediaUpload, error) {
	resp, err := s.call(ctx, method, nil)
	if err != nil {
		return nil, err
	}
	return &models.MediaUpload{
		Kind:      str(resp, "kind"),
		Key:       str(resp, "key"),
		UploadURL: str(resp, "uploadUrl"),
		ExpiresAt: timeField(resp, "expiresAt"),
	}, nil
}

func (s *GRPCClient) mapError(err error) error {
	if err == nil {
		return nil
	}
	st, _ := status.FromError(err)
	switch st.Code() {
	case codes.Unauthenticated, codes.PermissionDenied:
		return fmt.Errorf("%w: %s", ErrUnauthorized, st.Message())
	case codes.Unavailable, codes.DeadlineExceeded:
		return ErrUnavailable
	case codes.AlreadyExists:
		return fmt.Errorf("%w: %s", ErrConflict, st.Message())
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %s", ErrInvalidInput, st.Message())
	case codes.NotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, st.Message())
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
}

func str(st *structpb.Struct, name string) string {
	return st.GetFields()[name].GetStringValue()
}

func timeField(st *structpb.Struct, name string) time.Time {
	t, _ := time.Parse(time.RFC3339, str(st, name))
	return t
}

func tokensFrom(st *structpb.Struct) models.Tokens {
	return models.Tokens{
		AccessToken:  str(st, "accessToken"),
		RefreshToken: str(st, "refreshToken"),
	}
}

func userFrom(st *structpb.Struct) *models.User {
	return &models.User{
		ID:         str(st, "_id"),
		Username:   str(st, "username"),
		Email:      str(st, "email"),
		FullName:   str(st, "fullname"),
		Avatar:     str(st, "avatar"),
		CoverImage: str(st, "coverImage"),
		CreatedAt:  timeField(st, "createdAt"),
		UpdatedAt:  timeField(st, "updatedAt"),
	}
}
