package imaging

import (
	"bytes"
	"fmt"
	"image"

	"github.com/gabriel-vasile/mimetype"

	"github.com/utafrali/ClassifiedsGo/services/media/internal/domain"
)

// octetStream is what browsers send when they cannot tell the type, so it is
// treated like a missing declaration.
const octetStream = "application/octet-stream"

// DecodedImage is a validated upload held in memory.
type DecodedImage struct {
	Image    image.Image
	Width    int
	Height   int
	HasAlpha bool
	Format   Format
}

// ValidatorConfig bounds what uploads are accepted.
type ValidatorConfig struct {
	AllowedTypes []string
	MaxBytes     int64
	MaxPixels    int
}

// Validator decodes and sanity-checks raw upload bytes.
type Validator struct {
	allowed   map[Format]struct{}
	maxBytes  int64
	maxPixels int
}

// NewValidator builds a Validator. Types the package cannot decode are
// ignored; an empty allow-list falls back to the default set.
func NewValidator(cfg ValidatorConfig) *Validator {
	types := cfg.AllowedTypes
	if len(types) == 0 {
		types = domain.DefaultAllowedTypes
	}
	allowed := make(map[Format]struct{}, len(types))
	for _, t := range types {
		if f, ok := FormatFromMime(t); ok {
			allowed[f] = struct{}{}
		}
	}

	maxBytes := cfg.MaxBytes
	if maxBytes <= 0 {
		maxBytes = domain.DefaultMaxUploadBytes
	}
	return &Validator{allowed: allowed, maxBytes: maxBytes, maxPixels: cfg.MaxPixels}
}

// MaxBytes is the upload size ceiling.
func (v *Validator) MaxBytes() int64 {
	return v.maxBytes
}

// Validate decodes raw. The declared type must be allowed when given, but the
// codec is chosen from the sniffed content: a client that mislabels a PNG as
// JPEG still gets its PNG decoded. It has no side effects; every rejection
// is an InvalidMedia error.
func (v *Validator) Validate(raw []byte, declaredMime string) (*DecodedImage, error) {
	if len(raw) == 0 {
		return nil, domain.InvalidMedia("upload is empty")
	}
	if int64(len(raw)) > v.maxBytes {
		return nil, domain.InvalidMedia(fmt.Sprintf("upload of %d bytes exceeds the %d byte limit", len(raw), v.maxBytes))
	}

	format, err := v.resolveFormat(raw, declaredMime)
	if err != nil {
		return nil, err
	}
	c := codecs[format]

	cfg, err := c.decodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, domain.InvalidMedia(fmt.Sprintf("content is not a decodable %s image", format))
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, domain.InvalidMedia("image has no pixels")
	}
	if v.maxPixels > 0 && cfg.Width*cfg.Height > v.maxPixels {
		return nil, domain.InvalidMedia(fmt.Sprintf("image of %dx%d pixels is too large", cfg.Width, cfg.Height))
	}

	img, err := c.decode(bytes.NewReader(raw))
	if err != nil {
		return nil, domain.InvalidMedia(fmt.Sprintf("content is not a decodable %s image", format))
	}

	b := img.Bounds()
	return &DecodedImage{
		Image:    img,
		Width:    b.Dx(),
		Height:   b.Dy(),
		HasAlpha: hasAlpha(img),
		Format:   format,
	}, nil
}

func (v *Validator) resolveFormat(raw []byte, declaredMime string) (Format, error) {
	declared := normalizeMime(declaredMime)
	if declared != "" && declared != octetStream {
		f, ok := FormatFromMime(declared)
		if !ok || !v.isAllowed(f) {
			return "", domain.InvalidMedia(fmt.Sprintf("declared type %q is not allowed", declared))
		}
	}

	sniffed, ok := FormatFromMime(mimetype.Detect(raw).String())
	if !ok || !v.isAllowed(sniffed) {
		return "", domain.InvalidMedia("content is not a supported image type")
	}
	return sniffed, nil
}

func (v *Validator) isAllowed(f Format) bool {
	_, ok := v.allowed[f]
	return ok
}

// hasAlpha reports whether any pixel may be non-opaque. Images that cannot
// answer are assumed to carry alpha.
func hasAlpha(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return !o.Opaque()
	}
	return true
}
