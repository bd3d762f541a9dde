// Package models holds the server-side domain records.
package models

import (
	"strings"
	"time"
)

// User is a stored account. PasswordHash and RefreshToken never leave the
// server; transports only ever see PublicUser.
type User struct {
	ID            string
	Username      string
	Email         string
	FullName      string
	AvatarKey     string
	CoverImageKey string
	PasswordHash  string
	// RefreshToken is the single active refresh token, nil when logged out.
	RefreshToken *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PublicUser is the sanitized view of a User returned to clients.
type PublicUser struct {
	ID            string    `json:"_id"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	FullName      string    `json:"fullname"`
	AvatarKey     string    `json:"avatar,omitempty"`
	CoverImageKey string    `json:"coverImage,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func (u *User) Public() *PublicUser {
	return &PublicUser{
		ID:            u.ID,
		Username:      u.Username,
		Email:         u.Email,
		FullName:      u.FullName,
		AvatarKey:     u.AvatarKey,
		CoverImageKey: u.CoverImageKey,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
}

// Clone returns a deep copy, so callers can't mutate a stored record.
func (u *User) Clone() *User {
	c := *u
	if u.RefreshToken != nil {
		t := *u.RefreshToken
		c.RefreshToken = &t
	}
	return &c
}

// NormalizeUsername trims and lower-cases a username.
func NormalizeUsername(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
