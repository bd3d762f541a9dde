package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/channelhub/internal/common"
	"github.com/dmitrijs2005/channelhub/internal/cryptox"
	"github.com/dmitrijs2005/channelhub/internal/logging"
	"github.com/dmitrijs2005/channelhub/internal/server/auth"
	"github.com/dmitrijs2005/channelhub/internal/server/metrics"
	"github.com/dmitrijs2005/channelhub/internal/server/models"
	"github.com/dmitrijs2005/channelhub/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/channelhub/internal/server/repositories/users"
)

type testEnv struct {
	svc     *UserService
	repo    *repomanager.MemoryRepositoryManager
	issuer  *auth.Issuer
	metrics *metrics.Metrics
}

func newTestEnv(t *testing.T, revokeOnReuse bool) *testEnv {
	t.Helper()
	rm := repomanager.NewMemoryRepositoryManager()
	issuer := auth.NewIssuer(auth.IssuerConfig{
		AccessSecret:  "access-secret",
		AccessExpiry:  15 * time.Minute,
		RefreshSecret: "refresh-secret",
		RefreshExpiry: 240 * time.Hour,
	})
	mt := metrics.New()
	return &testEnv{
		svc:     NewUserService(rm, issuer, logging.Nop(), mt, revokeOnReuse),
		repo:    rm,
		issuer:  issuer,
		metrics: mt,
	}
}

func aliceInput() RegisterInput {
	return RegisterInput{FullName: "Alice", Email: "alice@x.com", Username: "alice", Password: "p@ss1"}
}

func (e *testEnv) registerAndLogin(t *testing.T) *LoginResult {
	t.Helper()
	ctx := context.Background()
	_, err := e.svc.Register(ctx, aliceInput())
	require.NoError(t, err)
	res, err := e.svc.Login(ctx, LoginInput{Username: "alice", Password: "p@ss1"})
	require.NoError(t, err)
	return res
}

func (e *testEnv) stored(t *testing.T, id string) *models.User {
	t.Helper()
	u, err := e.repo.Users().GetByID(context.Background(), id)
	require.NoError(t, err)
	return u
}

func authEvents(t *testing.T, m *metrics.Metrics, event string) float64 {
	t.Helper()
	mfs, err := m.Registry().Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() != "channelhub_auth_events_total" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			for _, l := range metric.GetLabel() {
				if l.GetName() == "event" && l.GetValue() == event {
					return metric.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func requireKind(t *testing.T, err error, kind error, msg string) {
	t.Helper()
	require.Error(t, err)
	require.ErrorIs(t, err, kind)
	if msg != "" {
		assert.Equal(t, msg, common.Message(err))
	}
}

func TestRegister_StoresHashNotPlaintext(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()

	u, err := env.svc.Register(ctx, RegisterInput{
		FullName: "  Alice ", Email: " Alice@X.com ", Username: " ALICE ", Password: "p@ss1",
	})
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)
	assert.Equal(t, "alice@x.com", u.Email)
	assert.Equal(t, "Alice", u.FullName)

	stored := env.stored(t, u.ID)
	assert.NotEqual(t, "p@ss1", stored.PasswordHash)
	assert.NotContains(t, stored.PasswordHash, "p@ss1")
	assert.Nil(t, stored.RefreshToken)

	ok, err := cryptox.CheckPassword(stored.PasswordHash, "p@ss1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRegister_Conflicts(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	_, err := env.svc.Register(ctx, aliceInput())
	require.NoError(t, err)

	_, err = env.svc.Register(ctx, RegisterInput{FullName: "A", Email: "other@x.com", Username: "ALICE", Password: "x"})
	requireKind(t, err, common.ErrorAlreadyExists, "user with email or username already exists")

	_, err = env.svc.Register(ctx, RegisterInput{FullName: "A", Email: "ALICE@x.com", Username: "other", Password: "x"})
	requireKind(t, err, common.ErrorAlreadyExists, "")
}

func TestRegister_BlankFields(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()

	blanks := []RegisterInput{
		{FullName: "  ", Email: "alice@x.com", Username: "alice", Password: "p@ss1"},
		{FullName: "Alice", Email: "", Username: "alice", Password: "p@ss1"},
		{FullName: "Alice", Email: "alice@x.com", Username: "\t", Password: "p@ss1"},
		{FullName: "Alice", Email: "alice@x.com", Username: "alice", Password: "   "},
	}
	for _, in := range blanks {
		_, err := env.svc.Register(ctx, in)
		requireKind(t, err, common.ErrorValidation, "all fields are required")
	}
}

// racyUsers hides existing users from the pre-insert check, so the store's
// uniqueness guard is what rejects the duplicate.
type racyUsers struct {
	users.Repository
}

func (r racyUsers) GetByUsernameOrEmail(ctx context.Context, username, email string) (*models.User, error) {
	return nil, common.ErrorNotFound
}

type racyManager struct {
	*repomanager.MemoryRepositoryManager
}

func (m racyManager) WithTx(ctx context.Context, fn func(ctx context.Context, u users.Repository) error) error {
	return m.MemoryRepositoryManager.WithTx(ctx, func(ctx context.Context, u users.Repository) error {
		return fn(ctx, racyUsers{u})
	})
}

func TestRegister_UniqueViolationAtInsertIsConflict(t *testing.T) {
	env := newTestEnv(t, false)
	svc := NewUserService(racyManager{env.repo}, env.issuer, logging.Nop(), nil, false)
	ctx := context.Background()

	_, err := svc.Register(ctx, aliceInput())
	require.NoError(t, err)
	_, err = svc.Register(ctx, aliceInput())
	requireKind(t, err, common.ErrorAlreadyExists, "")
}

func TestRegister_HashFailureIsInternal(t *testing.T) {
	env := newTestEnv(t, false)
	orig := hashPassword
	t.Cleanup(func() { hashPassword = orig })
	hashPassword = func(string) (string, error) { return "", errors.New("bcrypt exploded") }

	_, err := env.svc.Register(context.Background(), aliceInput())
	requireKind(t, err, common.ErrorInternal, "internal error")
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	_, err := env.svc.Register(ctx, aliceInput())
	require.NoError(t, err)

	_, err = env.svc.Login(ctx, LoginInput{Username: "alice", Password: "wrong"})
	requireKind(t, err, common.ErrorUnauthorized, "invalid user credentials")

	_, err = env.svc.Login(ctx, LoginInput{Username: "bob", Password: "p@ss1"})
	requireKind(t, err, common.ErrorNotFound, "user does not exist")

	_, err = env.svc.Login(ctx, LoginInput{Password: "p@ss1"})
	requireKind(t, err, common.ErrorValidation, "")

	_, err = env.svc.Login(ctx, LoginInput{Username: "alice", Password: " "})
	requireKind(t, err, common.ErrorValidation, "")

	res, err := env.svc.Login(ctx, LoginInput{Email: "ALICE@x.com", Password: "p@ss1"})
	require.NoError(t, err)
	assert.Equal(t, "alice", res.User.Username)
	assert.NotEmpty(t, res.Tokens.AccessToken)

	stored := env.stored(t, res.User.ID)
	require.NotNil(t, stored.RefreshToken)
	assert.Equal(t, res.Tokens.RefreshToken, *stored.RefreshToken)

	claims, err := env.issuer.VerifyAccess(res.Tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, claims.UserID())
	assert.Equal(t, "alice@x.com", claims.Email)
}

func TestLogin_SecondLoginSupersedesFirst(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	first := env.registerAndLogin(t)

	second, err := env.svc.Login(ctx, LoginInput{Username: "alice", Password: "p@ss1"})
	require.NoError(t, err)

	_, err = env.svc.RefreshSession(ctx, first.Tokens.RefreshToken)
	requireKind(t, err, common.ErrorUnauthorized, "refresh token is expired or used")

	_, err = env.svc.RefreshSession(ctx, second.Tokens.RefreshToken)
	require.NoError(t, err)
}

func TestLogin_CheckErrorIsInternal(t *testing.T) {
	env := newTestEnv(t, false)
	_, err := env.svc.Register(context.Background(), aliceInput())
	require.NoError(t, err)

	orig := checkPassword
	t.Cleanup(func() { checkPassword = orig })
	checkPassword = func(string, string) (bool, error) { return false, errors.New("malformed hash") }

	_, err = env.svc.Login(context.Background(), LoginInput{Username: "alice", Password: "p@ss1"})
	requireKind(t, err, common.ErrorInternal, "")
	assert.NotErrorIs(t, err, common.ErrorUnauthorized)
}

func TestRefreshSession_Rotation(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	login := env.registerAndLogin(t)

	pair, err := env.svc.RefreshSession(ctx, login.Tokens.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, login.Tokens.RefreshToken, pair.RefreshToken)

	stored := env.stored(t, login.User.ID)
	assert.Equal(t, pair.RefreshToken, *stored.RefreshToken)

	_, err = env.svc.RefreshSession(ctx, login.Tokens.RefreshToken)
	requireKind(t, err, common.ErrorUnauthorized, "refresh token is expired or used")
	assert.ErrorIs(t, err, common.ErrRefreshTokenReuse)

	// reuse without revocation leaves the current session alive
	next, err := env.svc.RefreshSession(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, next.AccessToken)

	assert.Equal(t, 1.0, authEvents(t, env.metrics, metrics.EventRefreshReuse))
	assert.Equal(t, 2.0, authEvents(t, env.metrics, metrics.EventRefreshSuccess))
}

func TestRefreshSession_InvalidInputs(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()

	_, err := env.svc.RefreshSession(ctx, "  ")
	requireKind(t, err, common.ErrorUnauthorized, "unauthorized request")

	_, err = env.svc.RefreshSession(ctx, "garbage")
	requireKind(t, err, common.ErrorUnauthorized, "invalid refresh token")
	assert.NotErrorIs(t, err, common.ErrRefreshTokenReuse)

	orphan, err := env.issuer.IssueRefresh("no-such-user")
	require.NoError(t, err)
	_, err = env.svc.RefreshSession(ctx, orphan)
	requireKind(t, err, common.ErrorUnauthorized, "invalid refresh token")

	login := env.registerAndLogin(t)
	_, err = env.svc.RefreshSession(ctx, login.Tokens.AccessToken)
	requireKind(t, err, common.ErrorUnauthorized, "invalid refresh token")
}

func TestLogout_ClearsRefreshToken(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	login := env.registerAndLogin(t)

	require.NoError(t, env.svc.Logout(ctx, login.User.ID))
	assert.Nil(t, env.stored(t, login.User.ID).RefreshToken)

	_, err := env.svc.RefreshSession(ctx, login.Tokens.RefreshToken)
	requireKind(t, err, common.ErrorUnauthorized, "")

	err = env.svc.Logout(ctx, "ghost")
	requireKind(t, err, common.ErrorUnauthorized, "")
}

func TestRefreshSession_ConcurrentSingleWinner(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	login := env.registerAndLogin(t)

	const n = 12
	var wins, reused atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := env.svc.RefreshSession(ctx, login.Tokens.RefreshToken)
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, common.ErrRefreshTokenReuse):
				reused.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	assert.Equal(t, int32(n-1), reused.Load())
}

func TestRefreshSession_RevokeOnReuse(t *testing.T) {
	env := newTestEnv(t, true)
	ctx := context.Background()
	login := env.registerAndLogin(t)

	pair, err := env.svc.RefreshSession(ctx, login.Tokens.RefreshToken)
	require.NoError(t, err)

	_, err = env.svc.RefreshSession(ctx, login.Tokens.RefreshToken)
	requireKind(t, err, common.ErrorUnauthorized, "refresh token is expired or used")

	assert.Nil(t, env.stored(t, login.User.ID).RefreshToken, "reuse forces logout")

	_, err = env.svc.RefreshSession(ctx, pair.RefreshToken)
	requireKind(t, err, common.ErrorUnauthorized, "")
}

func TestChangePassword(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	login := env.registerAndLogin(t)
	id := login.User.ID

	err := env.svc.ChangePassword(ctx, id, "p@ss1", "  ")
	requireKind(t, err, common.ErrorValidation, "new password is required")

	err = env.svc.ChangePassword(ctx, id, "nope", "n3w")
	requireKind(t, err, common.ErrorUnauthorized, "invalid old password")

	before := env.stored(t, id).PasswordHash
	require.NoError(t, env.svc.ChangePassword(ctx, id, "p@ss1", "n3w"))
	assert.NotEqual(t, before, env.stored(t, id).PasswordHash)

	_, err = env.svc.Login(ctx, LoginInput{Username: "alice", Password: "p@ss1"})
	requireKind(t, err, common.ErrorUnauthorized, "")
	_, err = env.svc.Login(ctx, LoginInput{Username: "alice", Password: "n3w"})
	require.NoError(t, err)

	err = env.svc.ChangePassword(ctx, "ghost", "a", "b")
	requireKind(t, err, common.ErrorUnauthorized, "")
}

func TestUpdateAccount_DoesNotRehash(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	login := env.registerAndLogin(t)
	id := login.User.ID
	before := env.stored(t, id).PasswordHash

	var hashes atomic.Int32
	orig := hashPassword
	t.Cleanup(func() { hashPassword = orig })
	hashPassword = func(p string) (string, error) {
		hashes.Add(1)
		return orig(p)
	}

	u, err := env.svc.UpdateAccount(ctx, id, " Alice Liddell ", " LIDDELL@x.com")
	require.NoError(t, err)
	assert.Equal(t, "Alice Liddell", u.FullName)
	assert.Equal(t, "liddell@x.com", u.Email)

	assert.Equal(t, int32(0), hashes.Load())
	assert.Equal(t, before, env.stored(t, id).PasswordHash)

	_, err = env.svc.UpdateAccount(ctx, id, "", "a@x.com")
	requireKind(t, err, common.ErrorValidation, "")

	_, err = env.svc.Register(ctx, RegisterInput{FullName: "Bob", Email: "bob@x.com", Username: "bob", Password: "pw"})
	require.NoError(t, err)
	_, err = env.svc.UpdateAccount(ctx, id, "Alice", "bob@x.com")
	requireKind(t, err, common.ErrorAlreadyExists, "email is already in use")
}

func TestCurrentUser(t *testing.T) {
	env := newTestEnv(t, false)

	_, err := env.svc.CurrentUser(context.Background())
	requireKind(t, err, common.ErrorUnauthorized, "unauthorized request")

	u := &models.PublicUser{ID: "u-1", Username: "alice"}
	got, err := env.svc.CurrentUser(auth.WithUser(context.Background(), u))
	require.NoError(t, err)
	assert.Same(t, u, got)
}

// failingUsers fails every write.
type failingUsers struct {
	users.Repository
}

func (failingUsers) SetRefreshToken(context.Context, string, *string) error {
	return errors.New("db error: connection reset")
}

type failingManager struct {
	*repomanager.MemoryRepositoryManager
}

func (m failingManager) Users() users.Repository {
	return failingUsers{m.MemoryRepositoryManager.Users()}
}

func TestStoreErrorsAreInternal(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	_, err := env.svc.Register(ctx, aliceInput())
	require.NoError(t, err)

	svc := NewUserService(failingManager{env.repo}, env.issuer, logging.Nop(), nil, false)

	_, err = svc.Login(ctx, LoginInput{Username: "alice", Password: "p@ss1"})
	requireKind(t, err, common.ErrorInternal, "internal error")

	err = svc.Logout(ctx, "any")
	requireKind(t, err, common.ErrorInternal, "")
}
