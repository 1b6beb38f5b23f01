package providers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/quickfit/tryon/internal/imagecodec"
)

// Response modalities a generation request may ask for.
const (
	ModalityImage = "IMAGE"
	ModalityText  = "TEXT"
)

// ErrProvider marks failures raised by the remote generation service.
var ErrProvider = errors.New("provider request failed")

// Part is one piece of multimodal content. Exactly one of Text or Data is set.
type Part struct {
	Text     string
	MIMEType string
	Data     []byte
}

// TextPart returns a text part.
func TextPart(text string) Part {
	return Part{Text: text}
}

// ImagePart returns an inline image part.
func ImagePart(mimeType string, data []byte) Part {
	return Part{MIMEType: mimeType, Data: data}
}

// Request is a single-turn generation request
type Request struct {
	Model              string
	Parts              []Part
	ResponseModalities []string
}

// Candidate is one alternative returned by the provider
type Candidate struct {
	Parts []Part
}

// Response holds the provider candidates in the order they were returned
type Response struct {
	Candidates []Candidate
}

// Provider defines the interface for a multimodal generation provider
type Provider interface {
	GenerateContent(ctx context.Context, req Request) (*Response, error)
	// IsConfigured reports whether credentials are present. It never fails.
	IsConfigured() bool
}

// Extraction is the outcome of scanning a response for an image.
type Extraction struct {
	Image    []byte
	MIMEType string
	Texts    []string
}

// Found reports whether an image part was present.
func (e Extraction) Found() bool {
	return len(e.Image) > 0
}

// ExtractImage returns the first inline image in the response, scanning
// candidates and then parts in order. Image payloads that arrive as base64
// text are decoded. Text parts are collected but never used as the image.
func ExtractImage(resp *Response) Extraction {
	var out Extraction
	if resp == nil {
		return out
	}

	for _, candidate := range resp.Candidates {
		for _, part := range candidate.Parts {
			if part.Text != "" {
				out.Texts = append(out.Texts, part.Text)
			}
			if len(part.Data) == 0 || out.Found() {
				continue
			}
			data, err := inlineBytes(part.Data)
			if err != nil {
				slog.Warn("Discarding inline part with undecodable textual payload", "mime_type", part.MIMEType, "err", err)
				continue
			}
			out.Image = data
			out.MIMEType = part.MIMEType
		}
	}

	return out
}

// inlineBytes returns raw image bytes for an inline payload. Payloads that
// sniff as an image are used as is; anything else must be base64 text in
// either alphabet, unless it is not even valid UTF-8.
func inlineBytes(data []byte) ([]byte, error) {
	if isImage(data) {
		return data, nil
	}
	decoded, err := imagecodec.FromBase64(string(data))
	if err == nil {
		return decoded, nil
	}
	if !utf8.Valid(data) {
		return data, nil
	}
	return nil, err
}

func isImage(data []byte) bool {
	return strings.HasPrefix(http.DetectContentType(data), "image/")
}
