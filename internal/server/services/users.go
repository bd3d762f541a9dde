// Package services implements the account use cases: registration, login,
// session refresh and logout, password and profile changes, and media
// uploads.
package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	"github.com/dmitrijs2005/channelhub/internal/common"
	"github.com/dmitrijs2005/channelhub/internal/cryptox"
	"github.com/dmitrijs2005/channelhub/internal/logging"
	"github.com/dmitrijs2005/channelhub/internal/server/auth"
	"github.com/dmitrijs2005/channelhub/internal/server/metrics"
	"github.com/dmitrijs2005/channelhub/internal/server/models"
	"github.com/dmitrijs2005/channelhub/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/channelhub/internal/server/repositories/users"
)

// Password hashing seams, swapped in tests.
var (
	hashPassword  = cryptox.HashPassword
	checkPassword = cryptox.CheckPassword
)

const (
	msgAllFieldsRequired   = "all fields are required"
	msgUserExists          = "user with email or username already exists"
	msgLoginIDRequired     = "username or email is required"
	msgPasswordRequired    = "password is required"
	msgUserNotFound        = "user does not exist"
	msgInvalidCredentials  = "invalid user credentials"
	msgUnauthorizedRequest = "unauthorized request"
	msgInvalidRefresh      = "invalid refresh token"
	msgRefreshReused       = "refresh token is expired or used"
	msgInvalidAccess       = common.InvalidAccessTokenMessage
	msgNewPasswordRequired = "new password is required"
	msgInvalidOldPassword  = "invalid old password"
	msgEmailTaken          = "email is already in use"
)

type TokenPair struct {
	AccessToken      string    `json:"accessToken"`
	RefreshToken     string    `json:"refreshToken"`
	AccessExpiresAt  time.Time `json:"-"`
	RefreshExpiresAt time.Time `json:"-"`
}

type RegisterInput struct {
	FullName string
	Email    string
	Username string
	Password string
}

type LoginInput struct {
	Username string
	Email    string
	Password string
}

type LoginResult struct {
	User   *models.PublicUser
	Tokens *TokenPair
}

type UserService struct {
	repomanager   repomanager.RepositoryManager
	issuer        *auth.Issuer
	logger        logging.Logger
	metrics       *metrics.Metrics
	revokeOnReuse bool
}

func NewUserService(m repomanager.RepositoryManager, issuer *auth.Issuer, l logging.Logger, mt *metrics.Metrics, revokeOnReuse bool) *UserService {
	return &UserService{
		repomanager:   m,
		issuer:        issuer,
		logger:        l.With("module", "user_service"),
		metrics:       mt,
		revokeOnReuse: revokeOnReuse,
	}
}

func (s *UserService) users() users.Repository {
	return s.repomanager.Users()
}

func internal(err error) error {
	return common.Wrap(common.ErrorInternal, "", err)
}

// Register creates an account. The returned record is sanitized.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*models.PublicUser, error) {
	user := &models.User{
		FullName: strings.TrimSpace(in.FullName),
		Email:    models.NormalizeEmail(in.Email),
		Username: models.NormalizeUsername(in.Username),
	}
	if user.FullName == "" || user.Email == "" || user.Username == "" || strings.TrimSpace(in.Password) == "" {
		return nil, common.NewError(common.ErrorValidation, msgAllFieldsRequired)
	}

	hash, err := hashPassword(in.Password)
	if err != nil {
		return nil, internal(err)
	}
	user.PasswordHash = hash

	err = s.repomanager.WithTx(ctx, func(ctx context.Context, repo users.Repository) error {
		_, err := repo.GetByUsernameOrEmail(ctx, user.Username, user.Email)
		if err == nil {
			return common.NewError(common.ErrorAlreadyExists, msgUserExists)
		}
		if !errors.Is(err, common.ErrorNotFound) {
			return err
		}
		user, err = repo.Create(ctx, user)
		return err
	})
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, common.Wrap(common.ErrorAlreadyExists, msgUserExists, err)
		}
		s.logger.Error(ctx, "register failed", "error", err)
		return nil, internal(err)
	}

	s.metrics.AuthEvent(metrics.EventRegister)
	s.logger.Info(ctx, "user registered", "user_id", user.ID, "username", user.Username)
	return user.Public(), nil
}

// Login verifies credentials and starts a session, replacing any refresh
// token stored for the user.
func (s *UserService) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	username := models.NormalizeUsername(in.Username)
	email := models.NormalizeEmail(in.Email)
	if username == "" && email == "" {
		return nil, common.NewError(common.ErrorValidation, msgLoginIDRequired)
	}
	if strings.TrimSpace(in.Password) == "" {
		return nil, common.NewError(common.ErrorValidation, msgPasswordRequired)
	}

	repo := s.users()
	user, err := repo.GetByUsernameOrEmail(ctx, username, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.metrics.AuthEvent(metrics.EventLoginFailure)
			return nil, common.NewError(common.ErrorNotFound, msgUserNotFound)
		}
		return nil, internal(err)
	}

	ok, err := checkPassword(user.PasswordHash, in.Password)
	if err != nil {
		s.logger.Error(ctx, "password check failed", "user_id", user.ID, "error", err)
		return nil, internal(err)
	}
	if !ok {
		s.metrics.AuthEvent(metrics.EventLoginFailure)
		s.logger.Info(ctx, "login rejected", "user_id", user.ID)
		return nil, common.NewError(common.ErrorUnauthorized, msgInvalidCredentials)
	}

	public := user.Public()
	pair, err := s.issuePair(public)
	if err != nil {
		return nil, internal(err)
	}
	if err := repo.SetRefreshToken(ctx, user.ID, &pair.RefreshToken); err != nil {
		return nil, internal(err)
	}

	s.metrics.AuthEvent(metrics.EventLoginSuccess)
	s.logger.Info(ctx, "user logged in", "user_id", user.ID)
	return &LoginResult{User: public, Tokens: pair}, nil
}

// Logout clears the stored refresh token. userID must come from the guard.
func (s *UserService) Logout(ctx context.Context, userID string) error {
	if err := s.users().SetRefreshToken(ctx, userID, nil); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.NewError(common.ErrorUnauthorized, msgInvalidAccess)
		}
		return internal(err)
	}
	s.metrics.AuthEvent(metrics.EventLogout)
	s.logger.Info(ctx, "user logged out", "user_id", userID)
	return nil
}

// RefreshSession exchanges a refresh token for a new pair. The stored token
// is rotated with a compare-and-swap, so a token can be redeemed only once.
func (s *UserService) RefreshSession(ctx context.Context, token string) (*TokenPair, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, common.NewError(common.ErrorUnauthorized, msgUnauthorizedRequest)
	}

	userID, err := s.issuer.VerifyRefresh(token)
	if err != nil {
		s.metrics.AuthEvent(metrics.EventRefreshInvalid)
		return nil, common.Wrap(common.ErrorUnauthorized, msgInvalidRefresh, err)
	}

	repo := s.users()
	user, err := repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.metrics.AuthEvent(metrics.EventRefreshInvalid)
			return nil, common.NewError(common.ErrorUnauthorized, msgInvalidRefresh)
		}
		return nil, internal(err)
	}

	if user.RefreshToken == nil || subtle.ConstantTimeCompare([]byte(*user.RefreshToken), []byte(token)) != 1 {
		return nil, s.refreshReused(ctx, userID)
	}

	pair, err := s.issuePair(user.Public())
	if err != nil {
		return nil, internal(err)
	}

	swapped, err := repo.SwapRefreshToken(ctx, userID, token, pair.RefreshToken)
	if err != nil {
		return nil, internal(err)
	}
	if !swapped {
		return nil, s.refreshReused(ctx, userID)
	}

	s.metrics.AuthEvent(metrics.EventRefreshSuccess)
	s.logger.Debug(ctx, "session refreshed", "user_id", userID)
	return pair, nil
}

// refreshReused records a presented refresh token that is not the stored one.
func (s *UserService) refreshReused(ctx context.Context, userID string) error {
	s.metrics.AuthEvent(metrics.EventRefreshReuse)
	s.logger.Warn(ctx, "refresh token reuse detected", "user_id", userID, "revoke", s.revokeOnReuse)

	if s.revokeOnReuse {
		if err := s.users().SetRefreshToken(ctx, userID, nil); err != nil {
			s.logger.Error(ctx, "revoking session after reuse failed", "user_id", userID, "error", err)
		}
	}
	return common.Wrap(common.ErrorUnauthorized, msgRefreshReused, common.ErrRefreshTokenReuse)
}

// ChangePassword verifies the old password and stores a hash of the new one.
func (s *UserService) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	if strings.TrimSpace(newPassword) == "" {
		return common.NewError(common.ErrorValidation, msgNewPasswordRequired)
	}

	repo := s.users()
	user, err := repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.NewError(common.ErrorUnauthorized, msgInvalidAccess)
		}
		return internal(err)
	}

	ok, err := checkPassword(user.PasswordHash, oldPassword)
	if err != nil {
		return internal(err)
	}
	if !ok {
		return common.NewError(common.ErrorUnauthorized, msgInvalidOldPassword)
	}

	hash, err := hashPassword(newPassword)
	if err != nil {
		return internal(err)
	}
	if err := repo.UpdatePassword(ctx, userID, hash); err != nil {
		return internal(err)
	}

	s.metrics.AuthEvent(metrics.EventPasswordChange)
	s.logger.Info(ctx, "password changed", "user_id", userID)
	return nil
}

// CurrentUser returns the user the guard attached to ctx.
func (s *UserService) CurrentUser(ctx context.Context) (*models.PublicUser, error) {
	u, ok := auth.UserFromContext(ctx)
	if !ok {
		return nil, common.NewError(common.ErrorUnauthorized, msgUnauthorizedRequest)
	}
	return u, nil
}

// UpdateAccount changes display name and email. The password hash is left alone.
func (s *UserService) UpdateAccount(ctx context.Context, userID, fullName, email string) (*models.PublicUser, error) {
	fullName = strings.TrimSpace(fullName)
	email = models.NormalizeEmail(email)
	if fullName == "" || email == "" {
		return nil, common.NewError(common.ErrorValidation, msgAllFieldsRequired)
	}

	user, err := s.users().UpdateAccount(ctx, userID, fullName, email)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrorAlreadyExists):
			return nil, common.Wrap(common.ErrorAlreadyExists, msgEmailTaken, err)
		case errors.Is(err, common.ErrorNotFound):
			return nil, common.NewError(common.ErrorUnauthorized, msgInvalidAccess)
		default:
			return nil, internal(err)
		}
	}

	s.logger.Info(ctx, "account updated", "user_id", userID)
	return user.Public(), nil
}

func (s *UserService) issuePair(u *models.PublicUser) (*TokenPair, error) {
	access, err := s.issuer.IssueAccess(auth.AccessClaimsFor(u))
	if err != nil {
		return nil, err
	}
	refresh, err := s.issuer.IssueRefresh(u.ID)
	if err != nil {
		return nil, err
	}
	accessExp, refreshExp := s.issuer.ExpiresAt()
	return &TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}
