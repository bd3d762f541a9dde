// Package services contains the CLI's application services.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/dmitrijs2005/channelhub/internal/client/client"
	"github.com/dmitrijs2005/channelhub/internal/client/models"
	"github.com/dmitrijs2005/channelhub/internal/client/repositories/session"
	"github.com/dmitrijs2005/channelhub/internal/filex"
	"github.com/dmitrijs2005/channelhub/internal/netx"
)

var ErrNotLoggedIn = errors.New("not logged in")

// readImage and uploadToURL are test seams.
var (
	readImage   = filex.ReadImage
	uploadToURL = netx.UploadToPresignedURL
)

// AuthService is the account surface of the CLI. Sessions survive restarts
// through the local session store.
type AuthService interface {
	Register(ctx context.Context, fullName, email, username string, password []byte) (*models.User, error)
	Login(ctx context.Context, login string, password []byte) (*models.User, error)
	// Restore reloads a saved session and returns its username, or "" if none.
	Restore(ctx context.Context) (string, error)
	Logout(ctx context.Context) error
	Refresh(ctx context.Context) error
	CurrentUser(ctx context.Context) (*models.User, error)
	ChangePassword(ctx context.Context, oldPassword, newPassword []byte) error
	UpdateAccount(ctx context.Context, fullName, email string) (*models.User, error)
	UploadAvatar(ctx context.Context, path string) (*models.MediaUpload, error)
	UploadCoverImage(ctx context.Context, path string) (*models.MediaUpload, error)
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

type authService struct {
	client   client.Client
	sessions session.Repository
}

func NewAuthService(c client.Client, db *sql.DB) AuthService {
	return newAuthService(c, session.NewSQLiteRepository(db))
}

func newAuthService(c client.Client, sessions session.Repository) *authService {
	a := &authService{client: c, sessions: sessions}
	c.OnTokens(a.persistTokens)
	return a
}

// persistTokens keeps rotated tokens on disk so the next run can resume.
func (a *authService) persistTokens(ctx context.Context, t models.Tokens) {
	if err := a.sessions.SaveTokens(ctx, t); err != nil {
		log.Printf("saving rotated tokens: %v", err)
	}
}

func (a *authService) Register(ctx context.Context, fullName, email, username string, password []byte) (*models.User, error) {
	return a.client.Register(ctx, fullName, email, username, string(password))
}

// Login treats a login containing "@" as an email address.
func (a *authService) Login(ctx context.Context, login string, password []byte) (*models.User, error) {
	login = strings.TrimSpace(login)
	var username, email string
	if strings.Contains(login, "@") {
		email = login
	} else {
		username = login
	}

	u, err := a.client.Login(ctx, username, email, string(password))
	if err != nil {
		return nil, fmt.Errorf("login error: %w", err)
	}

	if err := a.sessions.Save(ctx, models.Session{Username: u.Username, Tokens: a.client.Tokens()}); err != nil {
		return nil, fmt.Errorf("session saving error: %w", err)
	}
	return u, nil
}

func (a *authService) Restore(ctx context.Context) (string, error) {
	s, err := a.sessions.Load(ctx)
	if err != nil {
		return "", err
	}
	if s == nil || s.Tokens.Empty() {
		return "", nil
	}
	a.client.SetTokens(s.Tokens)
	return s.Username, nil
}

// Logout ends the server session and always clears local state.
func (a *authService) Logout(ctx context.Context) error {
	if a.client.Tokens().Empty() {
		return ErrNotLoggedIn
	}
	serverErr := a.client.Logout(ctx)
	a.client.SetTokens(models.Tokens{})
	if err := a.sessions.Clear(ctx); err != nil {
		return err
	}
	return serverErr
}

func (a *authService) Refresh(ctx context.Context) error {
	if a.client.Tokens().RefreshToken == "" {
		return ErrNotLoggedIn
	}
	return a.client.RefreshSession(ctx)
}

func (a *authService) CurrentUser(ctx context.Context) (*models.User, error) {
	return a.client.CurrentUser(ctx)
}

func (a *authService) ChangePassword(ctx context.Context, oldPassword, newPassword []byte) error {
	return a.client.ChangePassword(ctx, string(oldPassword), string(newPassword))
}

func (a *authService) UpdateAccount(ctx context.Context, fullName, email string) (*models.User, error) {
	return a.client.UpdateAccount(ctx, fullName, email)
}

func (a *authService) UploadAvatar(ctx context.Context, path string) (*models.MediaUpload, error) {
	return a.upload(ctx, path, a.client.UpdateAvatar)
}

func (a *authService) UploadCoverImage(ctx context.Context, path string) (*models.MediaUpload, error) {
	return a.upload(ctx, path, a.client.UpdateCoverImage)
}

// upload validates the file before asking the server for a URL, so a bad
// path does not replace the stored key.
func (a *authService) upload(ctx context.Context, path string, issue func(context.Context) (*models.MediaUpload, error)) (*models.MediaUpload, error) {
	data, contentType, err := readImage(path, filex.MaxImageSize)
	if err != nil {
		return nil, err
	}

	up, err := issue(ctx)
	if err != nil {
		return nil, err
	}
	if err := uploadToURL(ctx, up.UploadURL, data, contentType); err != nil {
		return nil, fmt.Errorf("upload error: %w", err)
	}
	return up, nil
}

func (a *authService) Ping(ctx context.Context) error {
	return a.client.Ping(ctx)
}

func (a *authService) Close(ctx context.Context) error {
	return a.client.Close()
}
