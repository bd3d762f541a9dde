// Package models holds the client-side views of server records.
package models

import "time"

type User struct {
	ID         string
	Username   string
	Email      string
	FullName   string
	Avatar     string
	CoverImage string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Tokens is the credential pair issued on login and refresh.
type Tokens struct {
	AccessToken  string
	RefreshToken string
}

func (t Tokens) Empty() bool {
	return t.AccessToken == "" && t.RefreshToken == ""
}

// MediaUpload is a presigned PUT the client performs itself.
type MediaUpload struct {
	Kind      string
	Key       string
	UploadURL string
	ExpiresAt time.Time
}

// Session is what the CLI persists between runs.
type Session struct {
	Username string
	Tokens   Tokens
}
