package codec

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
)

func sample() *image.NRGBA {
	img := imaging.New(40, 30, color.NRGBA{R: 200, G: 80, B: 40, A: 255})
	for x := 0; x < 40; x++ {
		img.SetNRGBA(x, 15, color.NRGBA{A: 255})
	}
	return img
}

func TestEncodeDecodeJPEG(t *testing.T) {
	enc := NewEncoder(FormatJPEG, 80)
	if enc.Quality != MinJPEGQuality {
		t.Fatalf("Quality = %d, want floor %d", enc.Quality, MinJPEGQuality)
	}
	data, err := enc.Encode(sample())
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	img, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if img.Rect.Dx() != 40 || img.Rect.Dy() != 30 {
		t.Fatalf("bounds = %v", img.Rect)
	}
}

func TestDecodeWebP(t *testing.T) {
	var buf bytes.Buffer
	if err := webp.Encode(&buf, sample(), &webp.Options{Lossless: true}); err != nil {
		t.Fatalf("webp.Encode() error = %v", err)
	}
	img, err := Decode(buf.Bytes())
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if got := img.NRGBAAt(0, 0); got.R != 200 || got.A != 255 {
		t.Fatalf("pixel = %+v", got)
	}
}

func TestDecodeFlattensTransparency(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	src.SetNRGBA(1, 1, color.NRGBA{R: 10, G: 10, B: 10, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, src); err != nil {
		t.Fatal(err)
	}

	img, err := Decode(buf.Bytes())
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if got := img.NRGBAAt(0, 0); got != (color.NRGBA{R: 255, G: 255, B: 255, A: 255}) {
		t.Fatalf("transparent pixel = %+v, want white", got)
	}
	if got := img.NRGBAAt(1, 1); got.R != 10 || got.A != 255 {
		t.Fatalf("opaque pixel = %+v", got)
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	for _, data := range [][]byte{nil, []byte("not an image")} {
		if _, err := Decode(data); !errors.Is(err, ErrDecode) {
			t.Fatalf("Decode(%q) error = %v, want ErrDecode", data, err)
		}
	}
}

func TestEncodeWebP(t *testing.T) {
	data, err := NewEncoder(FormatWebP, 90).Encode(sample())
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if _, err := Decode(data); err != nil {
		t.Fatalf("Decode(webp) error = %v", err)
	}
}

func TestParseFormat(t *testing.T) {
	cases := map[string]Format{"": FormatJPEG, "JPG": FormatJPEG, "webp": FormatWebP}
	for in, want := range cases {
		if got, err := ParseFormat(in); err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseFormat("gif"); err == nil {
		t.Errorf("ParseFormat(gif) succeeded")
	}
	if FormatWebP.ContentType() != "image/webp" || FormatJPEG.Extension() != ".jpg" {
		t.Errorf("unexpected content type or extension")
	}
}
