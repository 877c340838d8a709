package imaging

import (
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"strings"

	"golang.org/x/image/webp"

	"github.com/utafrali/ClassifiedsGo/services/media/internal/domain"
)

// Format is an image encoding family.
type Format string

const (
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
	FormatGIF  Format = "gif"
	FormatWebP Format = "webp"
)

// MimeType returns the canonical MIME type. Unknown formats report JPEG,
// which is also what the transcoder falls back to.
func (f Format) MimeType() string {
	switch f {
	case FormatPNG:
		return domain.MimePNG
	case FormatGIF:
		return domain.MimeGIF
	case FormatWebP:
		return domain.MimeWebP
	default:
		return domain.MimeJPEG
	}
}

// Extension returns the file extension, dot included.
func (f Format) Extension() string {
	switch f {
	case FormatPNG:
		return ".png"
	case FormatGIF:
		return ".gif"
	case FormatWebP:
		return ".webp"
	default:
		return ".jpg"
	}
}

// FormatFromMime maps a MIME type, parameters ignored, to a Format.
func FormatFromMime(mimeType string) (Format, bool) {
	switch normalizeMime(mimeType) {
	case domain.MimeJPEG, "image/jpg", "image/pjpeg":
		return FormatJPEG, true
	case domain.MimePNG:
		return FormatPNG, true
	case domain.MimeGIF:
		return FormatGIF, true
	case domain.MimeWebP:
		return FormatWebP, true
	}
	return "", false
}

// FormatFromExtension maps a file extension such as ".png" to a Format.
func FormatFromExtension(ext string) (Format, bool) {
	switch strings.ToLower(ext) {
	case ".jpg", ".jpeg":
		return FormatJPEG, true
	case ".png":
		return FormatPNG, true
	case ".gif":
		return FormatGIF, true
	case ".webp":
		return FormatWebP, true
	}
	return "", false
}

func normalizeMime(mimeType string) string {
	base, _, _ := strings.Cut(mimeType, ";")
	return strings.ToLower(strings.TrimSpace(base))
}

type codec struct {
	decode       func(io.Reader) (image.Image, error)
	decodeConfig func(io.Reader) (image.Config, error)
}

var codecs = map[Format]codec{
	FormatJPEG: {jpeg.Decode, jpeg.DecodeConfig},
	FormatPNG:  {png.Decode, png.DecodeConfig},
	FormatGIF:  {gif.Decode, gif.DecodeConfig},
	FormatWebP: {webp.Decode, webp.DecodeConfig},
}
