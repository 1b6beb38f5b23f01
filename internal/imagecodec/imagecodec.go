// Package imagecodec decodes, bounds and re-encodes the images exchanged
// with clients and the generation provider.
package imagecodec

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"strings"
	"unicode"

	_ "image/gif"
	_ "image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	// PersonMaxEdge bounds the longer edge of the person photo.
	PersonMaxEdge = 1024
	// ClothingMaxEdge bounds the longer edge of each clothing photo.
	ClothingMaxEdge = 512
	// DefaultQuality is the JPEG quality used for every re-encode.
	DefaultQuality = 90

	MIMEJPEG = "image/jpeg"
	ModeRGB  = "RGB"
)

// ErrBase64 is returned when a payload is not valid base64.
var ErrBase64 = errors.New("invalid base64 payload")

// ImageDecodeError reports bytes that are not a recognizable image.
type ImageDecodeError struct {
	Err error
}

func (e *ImageDecodeError) Error() string {
	return "failed to decode image: " + e.Err.Error()
}

func (e *ImageDecodeError) Unwrap() error {
	return e.Err
}

// Normalized is a decoded image that fits the requested bound and carries
// opaque RGB pixels.
type Normalized struct {
	Image  *image.RGBA
	Width  int
	Height int
	// Format is the container the source bytes were decoded from.
	Format string
	Mode   string
}

// FromBase64 decodes a base64 payload in the standard or URL-safe alphabet.
// Whitespace and a data URL prefix are ignored, and unpadded input is
// accepted.
func FromBase64(text string) ([]byte, error) {
	s := strings.TrimSpace(text)
	if strings.HasPrefix(s, "data:") {
		if i := strings.Index(s, ","); i >= 0 {
			s = s[i+1:]
		}
	}
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)

	data, err := base64.StdEncoding.DecodeString(s)
	if err == nil {
		return data, nil
	}
	trimmed := strings.TrimRight(s, "=")
	for _, enc := range []*base64.Encoding{base64.RawStdEncoding, base64.RawURLEncoding} {
		if raw, rawErr := enc.DecodeString(trimmed); rawErr == nil {
			return raw, nil
		}
	}
	return nil, fmt.Errorf("%w: %v", ErrBase64, err)
}

// ToBase64 encodes blob with the standard alphabet.
func ToBase64(blob []byte) string {
	return base64.StdEncoding.EncodeToString(blob)
}

// ScaledSize returns the dimensions of a w x h image bounded by maxEdge.
// Images already inside the bound are returned unchanged.
func ScaledSize(w, h, maxEdge int) (int, int) {
	if maxEdge <= 0 || (w <= maxEdge && h <= maxEdge) {
		return w, h
	}
	if w >= h {
		return maxEdge, max(1, h*maxEdge/w)
	}
	return max(1, w*maxEdge/h), maxEdge
}

// Normalize decodes blob, scales it down so neither edge exceeds maxEdge and
// flattens it onto an opaque white canvas.
func Normalize(blob []byte, maxEdge int) (*Normalized, error) {
	src, format, err := image.Decode(bytes.NewReader(blob))
	if err != nil {
		return nil, &ImageDecodeError{Err: err}
	}

	b := src.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, &ImageDecodeError{Err: fmt.Errorf("empty image %dx%d", b.Dx(), b.Dy())}
	}

	w, h := ScaledSize(b.Dx(), b.Dy(), maxEdge)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)

	if w == b.Dx() && h == b.Dy() {
		draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Over)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	}

	return &Normalized{
		Image:  dst,
		Width:  w,
		Height: h,
		Format: format,
		Mode:   ModeRGB,
	}, nil
}

// Encode writes n as JPEG. Quality is clamped to [1, 100].
func Encode(n *Normalized, quality int) ([]byte, error) {
	quality = min(max(quality, 1), 100)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, n.Image, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("failed to encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// NormalizeAndEncode is Normalize followed by Encode.
func NormalizeAndEncode(blob []byte, maxEdge, quality int) ([]byte, error) {
	n, err := Normalize(blob, maxEdge)
	if err != nil {
		return nil, err
	}
	return Encode(n, quality)
}
