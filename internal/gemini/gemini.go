package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/quickfit/tryon/internal/providers"
	"google.golang.org/genai"
)

// Gemini is a provider for Google Gemini image generation
type Gemini struct {
	client *genai.Client
}

// New returns a Gemini provider. An empty apiKey yields an unconfigured
// provider rather than an error so the service can start degraded.
func New(ctx context.Context, apiKey string) (*Gemini, error) {
	if apiKey == "" {
		slog.Warn("GEMINI_API_KEY not set, try-on generation disabled")
		return &Gemini{}, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create new gemini client: %w", err)
	}

	return &Gemini{client: client}, nil
}

// IsConfigured reports whether an API client is available
func (g *Gemini) IsConfigured() bool {
	return g != nil && g.client != nil
}

// GenerateContent sends a single user turn to Gemini
func (g *Gemini) GenerateContent(ctx context.Context, req providers.Request) (*providers.Response, error) {
	if !g.IsConfigured() {
		return nil, fmt.Errorf("%w: gemini client not configured", providers.ErrProvider)
	}

	config := &genai.GenerateContentConfig{
		ResponseModalities: req.ResponseModalities,
	}

	resp, err := g.client.Models.GenerateContent(ctx, req.Model, toContents(req.Parts), config)
	if err != nil {
		if IsRateLimited(err) {
			slog.Warn("Gemini rate limit hit", "model", req.Model)
		}
		return nil, fmt.Errorf("%w: failed to generate content: %w", providers.ErrProvider, err)
	}

	return fromResponse(resp), nil
}

// IsRateLimited reports whether err is a Gemini quota rejection.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "429") || strings.Contains(msg, "RESOURCE_EXHAUSTED")
}

func toContents(parts []providers.Part) []*genai.Content {
	out := make([]*genai.Part, 0, len(parts))
	for _, p := range parts {
		if len(p.Data) > 0 {
			out = append(out, genai.NewPartFromBytes(p.Data, p.MIMEType))
			continue
		}
		out = append(out, genai.NewPartFromText(p.Text))
	}
	return []*genai.Content{genai.NewContentFromParts(out, genai.RoleUser)}
}

func fromResponse(resp *genai.GenerateContentResponse) *providers.Response {
	out := &providers.Response{}
	if resp == nil {
		return out
	}

	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		var c providers.Candidate
		for _, part := range candidate.Content.Parts {
			switch {
			case part == nil || part.Thought:
			case part.InlineData != nil:
				c.Parts = append(c.Parts, providers.ImagePart(part.InlineData.MIMEType, part.InlineData.Data))
			case part.Text != "":
				c.Parts = append(c.Parts, providers.TextPart(part.Text))
			}
		}
		out.Candidates = append(out.Candidates, c)
	}

	return out
}
