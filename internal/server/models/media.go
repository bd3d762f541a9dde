package models

import "time"

// MediaKind names the profile images a user can upload.
type MediaKind string

const (
	MediaAvatar     MediaKind = "avatar"
	MediaCoverImage MediaKind = "cover-image"
)

// MediaUpload instructs the client to PUT an image to object storage using
// a presigned URL. Key is already stored on the user record.
type MediaUpload struct {
	Kind      MediaKind `json:"kind"`
	Key       string    `json:"key"`
	UploadURL string    `json:"uploadUrl"`
	ExpiresAt time.Time `json:"expiresAt"`
}
