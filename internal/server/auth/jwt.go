// Package auth issues and verifies JWTs and resolves bearer credentials to
// users for protected operations.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"

	"github.com/dmitrijs2005/channelhub/internal/common"
	"github.com/dmitrijs2005/channelhub/internal/server/models"
)

// AccessClaims is the claim set of a short-lived access token.
type AccessClaims struct {
	jwt.RegisteredClaims
	Username string `json:"username"`
	Email    string `json:"email"`
	FullName string `json:"fullname"`
}

// UserID returns the subject of the token.
func (c *AccessClaims) UserID() string {
	return c.Subject
}

// AccessClaimsFor builds the identity claims for u. Registered claims such as
// exp and jti are filled in by IssueAccess.
func AccessClaimsFor(u *models.PublicUser) AccessClaims {
	return AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: u.ID},
		Username:         u.Username,
		Email:            u.Email,
		FullName:         u.FullName,
	}
}

type IssuerConfig struct {
	AccessSecret  string
	AccessExpiry  time.Duration
	RefreshSecret string
	RefreshExpiry time.Duration
}

// Issuer mints and verifies HS256 access and refresh tokens, each kind with
// its own secret and lifetime.
type Issuer struct {
	accessSecret  []byte
	accessExpiry  time.Duration
	refreshSecret []byte
	refreshExpiry time.Duration
	now           func() time.Time
}

func NewIssuer(cfg IssuerConfig) *Issuer {
	return &Issuer{
		accessSecret:  []byte(cfg.AccessSecret),
		accessExpiry:  cfg.AccessExpiry,
		refreshSecret: []byte(cfg.RefreshSecret),
		refreshExpiry: cfg.RefreshExpiry,
		now:           time.Now,
	}
}

func (i *Issuer) registered(subject string, ttl time.Duration) jwt.RegisteredClaims {
	now := i.now()
	return jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		ID:        ulid.Make().String(),
	}
}

func (i *Issuer) IssueAccess(claims AccessClaims) (string, error) {
	if claims.Subject == "" {
		return "", errors.New("access token needs a subject")
	}
	claims.RegisteredClaims = i.registered(claims.Subject, i.accessExpiry)
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.accessSecret)
}

func (i *Issuer) IssueRefresh(userID string) (string, error) {
	if userID == "" {
		return "", errors.New("refresh token needs a subject")
	}
	claims := i.registered(userID, i.refreshExpiry)
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.refreshSecret)
}

// ExpiresAt reports when tokens issued now will expire; used for cookie lifetimes.
func (i *Issuer) ExpiresAt() (access, refresh time.Time) {
	now := i.now()
	return now.Add(i.accessExpiry), now.Add(i.refreshExpiry)
}

func (i *Issuer) parse(token string, claims jwt.Claims, secret []byte) error {
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(t *jwt.Token) (any, error) { return secret, nil },
		jwt.WithValidMethods([]string{
			jwt.SigningMethodHS256.Alg(),
			jwt.SigningMethodHS384.Alg(),
			jwt.SigningMethodHS512.Alg(),
		}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", common.ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return common.ErrInvalidToken
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return fmt.Errorf("%w: missing subject", common.ErrInvalidToken)
	}
	return nil
}

// VerifyAccess checks signature and expiry. Every failure wraps
// common.ErrInvalidToken.
func (i *Issuer) VerifyAccess(token string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := i.parse(token, claims, i.accessSecret); err != nil {
		return nil, err
	}
	return claims, nil
}

// VerifyRefresh checks signature and expiry and returns the user id.
// Every failure wraps common.ErrInvalidToken.
func (i *Issuer) VerifyRefresh(token string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	if err := i.parse(token, claims, i.refreshSecret); err != nil {
		return "", err
	}
	return claims.Subject, nil
}
