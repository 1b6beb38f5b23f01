// Package tryon turns a person photo and a clothing set into a single
// generated try-on image, falling back to the person photo when generation
// does not produce one.
package tryon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/quickfit/tryon/internal/imagecodec"
	"github.com/quickfit/tryon/internal/providers"
	"github.com/quickfit/tryon/internal/validation"
)

// DefaultTimeout bounds a single provider call.
const DefaultTimeout = 120 * time.Second

// ErrNotConfigured is returned when the provider has no credentials.
var ErrNotConfigured = errors.New("image provider not configured")

// Fallback reasons
const (
	ReasonNoImage       = "no image returned"
	ReasonClothingImage = "clothing image unreadable"
	ReasonProvider      = "provider request failed"
)

// Result is the outcome of a try-on. When Fallback is set, Image holds the
// normalized person photo and Reason says why.
type Result struct {
	Image    []byte
	MIMEType string
	Fallback bool
	Reason   string
}

// Service runs the try-on pipeline. It holds no per-request state and is
// safe for concurrent use.
type Service struct {
	provider providers.Provider
	model    string
	timeout  time.Duration
}

// NewService returns a Service calling model through provider.
func NewService(provider providers.Provider, model string, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Service{
		provider: provider,
		model:    model,
		timeout:  timeout,
	}
}

// Configured reports whether the provider has credentials.
func (s *Service) Configured() bool {
	return s.provider.IsConfigured()
}

// Model returns the provider model name.
func (s *Service) Model() string {
	return s.model
}

// GenerateTryOn composes person with the clothing images. Once the person
// photo has been normalized every failure resolves to a fallback result,
// unless ctx itself was cancelled.
func (s *Service) GenerateTryOn(ctx context.Context, person []byte, clothing [][]byte) (*Result, error) {
	if !s.provider.IsConfigured() {
		return nil, ErrNotConfigured
	}
	if err := validation.CheckCount(len(clothing)); err != nil {
		return nil, err
	}

	personImg, err := imagecodec.Normalize(person, imagecodec.PersonMaxEdge)
	if err != nil {
		return nil, fmt.Errorf("failed to normalize person image: %w", err)
	}

	start := time.Now()
	result, reason, err := s.generate(ctx, personImg, clothing)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("try-on abandoned: %w", ctx.Err())
		}
		slog.Error("Try-on generation failed, returning fallback", "reason", reason, "err", err, "duration", time.Since(start))
		return s.fallback(personImg, reason)
	}
	if result == nil {
		slog.Warn("Provider returned no image, returning fallback", "model", s.model, "duration", time.Since(start))
		return s.fallback(personImg, ReasonNoImage)
	}

	slog.Info("Try-on generated", "model", s.model, "clothing_items", len(clothing), "bytes", len(result.Image), "duration", time.Since(start))
	return result, nil
}

// generate returns a nil result without error when the provider answered
// but produced no image.
func (s *Service) generate(ctx context.Context, personImg *imagecodec.Normalized, clothing [][]byte) (*Result, string, error) {
	personJPEG, err := imagecodec.Encode(personImg, imagecodec.DefaultQuality)
	if err != nil {
		return nil, ReasonProvider, err
	}

	parts := make([]providers.Part, 0, len(clothing)+2)
	parts = append(parts,
		providers.TextPart(BuildPrompt(len(clothing))),
		providers.ImagePart(imagecodec.MIMEJPEG, personJPEG),
	)
	for i, blob := range clothing {
		encoded, err := imagecodec.NormalizeAndEncode(blob, imagecodec.ClothingMaxEdge, imagecodec.DefaultQuality)
		if err != nil {
			return nil, ReasonClothingImage, fmt.Errorf("failed to normalize clothing item %d: %w", i+1, err)
		}
		parts = append(parts, providers.ImagePart(imagecodec.MIMEJPEG, encoded))
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.provider.GenerateContent(callCtx, providers.Request{
		Model:              s.model,
		Parts:              parts,
		ResponseModalities: []string{providers.ModalityImage, providers.ModalityText},
	})
	if err != nil {
		return nil, ReasonProvider, err
	}

	extraction := providers.ExtractImage(resp)
	for _, text := range extraction.Texts {
		slog.Info("Provider text response", "text", truncate(text, 200))
	}
	if !extraction.Found() {
		return nil, ReasonNoImage, nil
	}

	mimeType := extraction.MIMEType
	if mimeType == "" {
		mimeType = imagecodec.MIMEJPEG
	}
	return &Result{Image: extraction.Image, MIMEType: mimeType}, "", nil
}

func (s *Service) fallback(personImg *imagecodec.Normalized, reason string) (*Result, error) {
	data, err := imagecodec.Encode(personImg, imagecodec.DefaultQuality)
	if err != nil {
		return nil, fmt.Errorf("failed to encode fallback image: %w", err)
	}
	return &Result{
		Image:    data,
		MIMEType: imagecodec.MIMEJPEG,
		Fallback: true,
		Reason:   reason,
	}, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
