package grpc

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dmitrijs2005/channelhub/internal/common"
	"github.com/dmitrijs2005/channelhub/internal/logging"
	"github.com/dmitrijs2005/channelhub/internal/server/auth"
	"github.com/dmitrijs2005/channelhub/internal/server/metrics"
	"github.com/dmitrijs2005/channelhub/internal/server/models"
	"github.com/dmitrijs2005/channelhub/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/channelhub/internal/server/services"
)

type fakeMedia struct{}

func (fakeMedia) UpdateAvatar(ctx context.Context, userID string) (*models.MediaUpload, error) {
	return &models.MediaUpload{
		Kind:      models.MediaAvatar,
		Key:       "users/" + userID + "/avatar/k",
		UploadURL: "http://s3/put",
		ExpiresAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}, nil
}

func (fakeMedia) UpdateCoverImage(ctx context.Context, userID string) (*models.MediaUpload, error) {
	return nil, common.Wrap(common.ErrorInternal, "", errors.New("s3 down"))
}

func startServer(t *testing.T) *grpc.ClientConn {
	t.Helper()
	rm := repomanager.NewMemoryRepositoryManager()
	issuer := auth.NewIssuer(auth.IssuerConfig{
		AccessSecret:  "access-secret",
		AccessExpiry:  15 * time.Minute,
		RefreshSecret: "refresh-secret",
		RefreshExpiry: 240 * time.Hour,
	})
	l := logging.Nop()
	s := NewGRPCServer("bufnet", l,
		services.NewUserService(rm, issuer, l, metrics.New(), false),
		fakeMedia{},
		auth.NewGuard(issuer, rm.Users(), l),
	)

	lis := bufconn.Listen(1 << 20)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = conn.Close()
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Error("server did not stop")
		}
	})
	return conn
}

func call(ctx context.Context, conn *grpc.ClientConn, method string, in map[string]any) (*structpb.Struct, error) {
	req, err := structpb.NewStruct(in)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := conn.Invoke(ctx, FullMethod(method), req, out); err != nil {
		return nil, err
	}
	return out, nil
}

func requireCode(t *testing.T, err error, code codes.Code, msg string) {
	t.Helper()
	require.Error(t, err)
	st, ok := status.FromError(err)
	require.True(t, ok)
	assert.Equal(t, code, st.Code())
	if msg != "" {
		assert.Equal(t, msg, st.Message())
	}
}

func withBearer(ctx context.Context, token string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, common.AuthorizationHeaderName, "Bearer "+token)
}

var alice = map[string]any{
	"fullname": "Alice",
	"email":    "alice@x.com",
	"username": "alice",
	"password": "p@ss1",
}

func TestAccountService_SessionLifecycle(t *testing.T) {
	conn := startServer(t)
	ctx := context.Background()

	u, err := call(ctx, conn, "Register", alice)
	require.NoError(t, err)
	assert.Equal(t, "alice", field(u, "username"))
	assert.NotContains(t, u.GetFields(), "password")

	_, err = call(ctx, conn, "Register", alice)
	requireCode(t, err, codes.AlreadyExists, "user with email or username already exists")

	login, err := call(ctx, conn, "Login", map[string]any{"email": "ALICE@x.com", "password": "p@ss1"})
	require.NoError(t, err)
	access := field(login, "accessToken")
	refresh := field(login, "refreshToken")
	require.NotEmpty(t, access)
	require.NotEmpty(t, refresh)
	assert.Equal(t, "alice", login.GetFields()["user"].GetStructValue().GetFields()["username"].GetStringValue())

	me, err := call(withBearer(ctx, access), conn, "CurrentUser", nil)
	require.NoError(t, err)
	assert.Equal(t, "alice@x.com", field(me, "email"))

	// access_token metadata key is accepted as well
	mdCtx := metadata.AppendToOutgoingContext(ctx, common.AccessTokenHeaderName, access)
	_, err = call(mdCtx, conn, "CurrentUser", nil)
	require.NoError(t, err)

	rotated, err := call(ctx, conn, "RefreshSession", map[string]any{"refreshToken": refresh})
	require.NoError(t, err)
	assert.NotEqual(t, refresh, field(rotated, "refreshToken"))

	_, err = call(ctx, conn, "RefreshSession", map[string]any{"refreshToken": refresh})
	requireCode(t, err, codes.Unauthenticated, "refresh token is expired or used")

	_, err = call(withBearer(ctx, access), conn, "Logout", nil)
	require.NoError(t, err)

	_, err = call(ctx, conn, "RefreshSession", map[string]any{"refreshToken": field(rotated, "refreshToken")})
	requireCode(t, err, codes.Unauthenticated, "refresh token is expired or used")
}

func TestAccountService_ProtectedMethods(t *testing.T) {
	conn := startServer(t)
	ctx := context.Background()

	for _, m := range []string{"Logout", "ChangePassword", "CurrentUser", "UpdateAccount", "UpdateAvatar", "UpdateCoverImage"} {
		t.Run(m, func(t *testing.T) {
			_, err := call(ctx, conn, m, nil)
			requireCode(t, err, codes.Unauthenticated, "unauthorized request")

			_, err = call(withBearer(ctx, "junk"), conn, m, nil)
			requireCode(t, err, codes.Unauthenticated, "invalid access token")
		})
	}
}

func TestAccountService_ProfileAndMedia(t *testing.T) {
	conn := startServer(t)
	ctx := context.Background()

	_, err := call(ctx, conn, "Register", alice)
	require.NoError(t, err)
	login, err := call(ctx, conn, "Login", map[string]any{"username": "alice", "password": "p@ss1"})
	require.NoError(t, err)
	authed := withBearer(ctx, field(login, "accessToken"))

	_, err = call(authed, conn, "UpdateAccount", map[string]any{"fullname": "", "email": "a@x.com"})
	requireCode(t, err, codes.InvalidArgument, "all fields are required")

	u, err := call(authed, conn, "UpdateAccount", map[string]any{"fullname": "Alice B", "email": "ab@x.com"})
	require.NoError(t, err)
	assert.Equal(t, "Alice B", field(u, "fullname"))

	_, err = call(authed, conn, "ChangePassword", map[string]any{"oldPassword": "bad", "newPassword": "x"})
	requireCode(t, err, codes.Unauthenticated, "invalid old password")

	up, err := call(authed, conn, "UpdateAvatar", nil)
	require.NoError(t, err)
	assert.Equal(t, "http://s3/put", field(up, "uploadUrl"))
	assert.Equal(t, "2025-01-01T00:00:00Z", field(up, "expiresAt"))

	_, err = call(authed, conn, "UpdateCoverImage", nil)
	requireCode(t, err, codes.Internal, "internal error")

	_, err = call(ctx, conn, "Login", map[string]any{"username": "nobody", "password": "x"})
	requireCode(t, err, codes.NotFound, "user does not exist")
}

func TestHealthService(t *testing.T) {
	conn := startServer(t)
	resp, err := healthpb.NewHealthClient(conn).Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}

func TestRun_ReturnsErrorOnBadAddress(t *testing.T) {
	s := NewGRPCServer("127.0.0.1:99999", logging.Nop(), nil, nil, nil)
	err := s.Run(context.Background())
	assert.Error(t, err)
}
