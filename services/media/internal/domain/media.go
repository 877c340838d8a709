package domain

import (
	"time"
)

// MIME types the pipeline accepts and produces.
const (
	MimeJPEG = "image/jpeg"
	MimePNG  = "image/png"
	MimeGIF  = "image/gif"
	MimeWebP = "image/webp"
)

// DefaultAllowedTypes is the upload allow-list used when none is configured.
var DefaultAllowedTypes = []string{MimeJPEG, MimePNG, MimeGIF, MimeWebP}

// DefaultMaxUploadBytes bounds a single upload (10 MB).
const DefaultMaxUploadBytes int64 = 10 * 1024 * 1024

// Storage categories, one directory per owner kind under the storage root.
const (
	CategoryAvatars = "avatars"
	CategoryAds     = "ads"
)

// ImageURLPrefix is the public URL prefix stored files are served under.
const ImageURLPrefix = "/images/"

// MediaRecord is the metadata of one stored image file. Records are never
// edited: replacing an image creates a new record and deletes the old one.
type MediaRecord struct {
	ID           string    `json:"id"`
	RelativePath string    `json:"relative_path"`
	SizeBytes    int64     `json:"size_bytes"`
	MimeType     string    `json:"mime_type"`
	Width        int       `json:"width"`
	Height       int       `json:"height"`
	CreatedAt    time.Time `json:"created_at"`
}

// URL returns the public URL of the record's file.
func (m *MediaRecord) URL() string {
	return ImageURLPrefix + m.RelativePath
}

// Owner is an image slot belonging to an entity managed by another service.
// MediaID is nil until the first image is linked.
type Owner struct {
	Kind      OwnerKind `json:"kind"`
	ID        string    `json:"owner_id"`
	MediaID   *string   `json:"media_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
