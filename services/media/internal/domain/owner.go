package domain

import "regexp"

// OwnerKind names the type of image slot.
type OwnerKind string

const (
	OwnerKindAvatar       OwnerKind = "avatar"
	OwnerKindListingPhoto OwnerKind = "listing-photo"
)

// safeIDPattern bounds owner identifiers to URL- and log-safe characters.
var safeIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

// OwnerKinds returns every valid kind.
func OwnerKinds() []OwnerKind {
	return []OwnerKind{OwnerKindAvatar, OwnerKindListingPhoto}
}

// ParseOwnerKind converts s into an OwnerKind.
func ParseOwnerKind(s string) (OwnerKind, error) {
	switch k := OwnerKind(s); k {
	case OwnerKindAvatar, OwnerKindListingPhoto:
		return k, nil
	default:
		return "", InvalidOwnerKind(s)
	}
}

// Category returns the storage directory for images of this kind.
func (k OwnerKind) Category() string {
	if k == OwnerKindAvatar {
		return CategoryAvatars
	}
	return CategoryAds
}

// ValidateOwnerID rejects empty or unsafe owner identifiers.
func ValidateOwnerID(id string) error {
	if !safeIDPattern.MatchString(id) {
		return InvalidOwnerID(id)
	}
	return nil
}

// Canvas is the fixed frame images are fitted into.
type Canvas struct {
	Width  int
	Height int
}

// Canvases maps each owner kind to its canvas.
type Canvases map[OwnerKind]Canvas

// DefaultCanvases returns the stock avatar and listing photo frames.
func DefaultCanvases() Canvases {
	return Canvases{
		OwnerKindAvatar:       {Width: 200, Height: 200},
		OwnerKindListingPhoto: {Width: 800, Height: 800},
	}
}
