// Package codec converts between stored bytes and in-memory images.
package codec

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

var (
	ErrDecode = errors.New("codec: decode failed")
	ErrEncode = errors.New("codec: encode failed")
)

// MinJPEGQuality is the lowest JPEG quality the worker writes.
const MinJPEGQuality = 95

type Format string

const (
	FormatJPEG Format = "jpeg"
	FormatWebP Format = "webp"
)

func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "jpeg", "jpg":
		return FormatJPEG, nil
	case "webp":
		return FormatWebP, nil
	}
	return "", fmt.Errorf("unsupported output format %q", s)
}

func (f Format) ContentType() string {
	if f == FormatWebP {
		return "image/webp"
	}
	return "image/jpeg"
}

func (f Format) Extension() string {
	if f == FormatWebP {
		return ".webp"
	}
	return ".jpg"
}

// Decode reads any registered format, honouring EXIF orientation, and
// returns an opaque image. Transparent regions are flattened onto white.
func Decode(data []byte) (*image.NRGBA, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrDecode)
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		// Some WebP variants are only understood by libwebp.
		alt, werr := webp.Decode(bytes.NewReader(data))
		if werr != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecode, err)
		}
		img = alt
	}
	b := img.Bounds()
	if b.Empty() {
		return nil, fmt.Errorf("%w: empty image", ErrDecode)
	}
	if o, ok := img.(interface{ Opaque() bool }); ok && o.Opaque() {
		return imaging.Clone(img), nil
	}
	bg := imaging.New(b.Dx(), b.Dy(), color.White)
	return imaging.Overlay(bg, img, image.Pt(0, 0), 1.0), nil
}

// Encoder writes images in one output format.
type Encoder struct {
	Format  Format
	Quality int
}

// NewEncoder raises JPEG quality to MinJPEGQuality when lower.
func NewEncoder(format Format, quality int) Encoder {
	if format == FormatJPEG && quality < MinJPEGQuality {
		quality = MinJPEGQuality
	}
	if quality > 100 {
		quality = 100
	}
	return Encoder{Format: format, Quality: quality}
}

func (e Encoder) Encode(img image.Image) ([]byte, error) {
	if img == nil {
		return nil, fmt.Errorf("%w: nil image", ErrEncode)
	}
	var buf bytes.Buffer
	var err error
	switch e.Format {
	case FormatWebP:
		err = webp.Encode(&buf, img, &webp.Options{Quality: float32(e.Quality)})
	case FormatJPEG:
		err = imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(e.Quality))
	default:
		err = fmt.Errorf("unsupported format %q", e.Format)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}
	return buf.Bytes(), nil
}
