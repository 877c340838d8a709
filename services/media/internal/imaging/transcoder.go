package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/color/palette"
	"image/gif"
	"image/jpeg"
	"image/png"

	"github.com/HugoSmits86/nativewebp"
	"golang.org/x/image/draw"

	"github.com/utafrali/ClassifiedsGo/services/media/internal/domain"
)

// DefaultJPEGQuality is used when the transcoder is built with an out of
// range quality.
const DefaultJPEGQuality = 85

// EncodedImage is a fitted image ready to be written to disk.
type EncodedImage struct {
	Data   []byte
	Format Format
	Width  int
	Height int
}

// Transcoder fits decoded images onto a fixed canvas and re-encodes them.
type Transcoder struct {
	jpegQuality int
}

// NewTranscoder creates a Transcoder. quality applies to JPEG output.
func NewTranscoder(jpegQuality int) *Transcoder {
	if jpegQuality < 1 || jpegQuality > 100 {
		jpegQuality = DefaultJPEGQuality
	}
	return &Transcoder{jpegQuality: jpegQuality}
}

// Fit scales src proportionally onto a width×height canvas, centered. Opaque
// sources get white letterbox bars; sources with alpha keep the uncovered
// area transparent. The result is encoded in the source's format family.
func (t *Transcoder) Fit(src *DecodedImage, width, height int) (*EncodedImage, error) {
	if src == nil || src.Image == nil {
		return nil, domain.TranscodeFailed(fmt.Errorf("no source image"))
	}
	if width <= 0 || height <= 0 {
		return nil, domain.TranscodeFailed(fmt.Errorf("invalid canvas %dx%d", width, height))
	}
	b := src.Image.Bounds()
	if b.Empty() {
		return nil, domain.TranscodeFailed(fmt.Errorf("empty source image"))
	}

	canvas := image.NewRGBA(image.Rect(0, 0, width, height))
	if !src.HasAlpha {
		draw.Draw(canvas, canvas.Bounds(), image.White, image.Point{}, draw.Src)
	}

	p := Layout(b.Dx(), b.Dy(), width, height)
	draw.CatmullRom.Scale(canvas, p.Rect(), src.Image, b, draw.Over, nil)

	format := src.Format
	if _, ok := codecs[format]; !ok {
		format = FormatJPEG
	}

	data, err := t.encode(canvas, format, src.HasAlpha)
	if err != nil {
		return nil, domain.TranscodeFailed(fmt.Errorf("encode %s: %w", format, err))
	}

	return &EncodedImage{Data: data, Format: format, Width: width, Height: height}, nil
}

func (t *Transcoder) encode(img *image.RGBA, format Format, alpha bool) ([]byte, error) {
	var buf bytes.Buffer
	var err error

	switch format {
	case FormatPNG:
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		err = enc.Encode(&buf, img)
	case FormatGIF:
		err = gif.Encode(&buf, toPaletted(img, alpha), nil)
	case FormatWebP:
		err = nativewebp.Encode(&buf, img, &nativewebp.Options{})
	default:
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: t.jpegQuality})
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// toPaletted dithers img onto the Plan 9 palette. With alpha, the last slot
// is swapped for a transparent entry, which the GIF encoder writes as the
// transparent index.
func toPaletted(img *image.RGBA, alpha bool) *image.Paletted {
	pal := color.Palette(palette.Plan9)
	if alpha {
		pal = make(color.Palette, 0, 256)
		pal = append(pal, palette.Plan9[:255]...)
		pal = append(pal, color.Transparent)
	}

	out := image.NewPaletted(img.Bounds(), pal)
	draw.FloydSteinberg.Draw(out, img.Bounds(), img, image.Point{})
	return out
}
