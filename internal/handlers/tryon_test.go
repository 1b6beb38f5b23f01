package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/quickfit/tryon/internal/models"
	"github.com/quickfit/tryon/internal/providers"
	"github.com/quickfit/tryon/internal/tryon"
)

type mockProvider struct {
	configured bool
	resp       *providers.Response
	err        error
	calls      int
}

func (m *mockProvider) IsConfigured() bool {
	return m.configured
}

func (m *mockProvider) GenerateContent(ctx context.Context, req providers.Request) (*providers.Response, error) {
	m.calls++
	return m.resp, m.err
}

func pngBase64(t *testing.T, w, h int) string {
	t.Helper()
	rng := rand.New(rand.NewSource(int64(w*h + 1)))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(rng.Intn(256)), G: uint8(rng.Intn(256)), B: uint8(rng.Intn(256)), A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("Failed to encode fixture: %v", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func newTestHandler(p providers.Provider) *Handler {
	return New(tryon.NewService(p, "test-model", time.Second), 0)
}

func doRequest(t *testing.T, h *Handler, method, path string, body any) (*httptest.ResponseRecorder, models.TryOnResponse) {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("Failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	mux := http.NewServeMux()
	h.Routes(mux)
	mux.ServeHTTP(rec, req)

	var resp models.TryOnResponse
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
	}
	return rec, resp
}

func TestHandleGenerateSuccess(t *testing.T) {
	generated := []byte{0xff, 0xd8, 0xff, 0xdb, 0x00, 0x43}
	mock := &mockProvider{configured: true, resp: &providers.Response{Candidates: []providers.Candidate{{
		Parts: []providers.Part{providers.ImagePart("image/jpeg", generated)},
	}}}}
	h := newTestHandler(mock)

	rec, resp := doRequest(t, h, http.MethodPost, "/api/tryon/generate", models.TryOnRequest{
		PersonImage:   pngBase64(t, 64, 48),
		ClothingImage: pngBase64(t, 32, 32),
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !resp.Success || resp.Fallback {
		t.Errorf("Expected success without fallback, got %+v", resp)
	}
	if resp.ResultImage != base64.StdEncoding.EncodeToString(generated) {
		t.Errorf("Expected generated image in response")
	}
	if mock.calls != 1 {
		t.Errorf("Expected 1 provider call, got %d", mock.calls)
	}
}

func TestHandleGenerateFallback(t *testing.T) {
	tests := []struct {
		name string
		mock *mockProvider
	}{
		{
			name: "text only",
			mock: &mockProvider{configured: true, resp: &providers.Response{Candidates: []providers.Candidate{{
				Parts: []providers.Part{providers.TextPart("no")},
			}}}},
		},
		{
			name: "provider error",
			mock: &mockProvider{configured: true, err: errors.New("upstream 500")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, resp := doRequest(t, newTestHandler(tt.mock), http.MethodPost, "/api/tryon/generate", models.TryOnRequest{
				PersonImage:    pngBase64(t, 64, 48),
				ClothingImages: []string{pngBase64(t, 32, 32)},
			})
			if rec.Code != http.StatusOK {
				t.Fatalf("Expected 200, got %d", rec.Code)
			}
			if !resp.Fallback || resp.Message != MessageFallback {
				t.Errorf("Expected fallback response, got %+v", resp)
			}
			if resp.ResultImage == "" {
				t.Error("Expected fallback image in response")
			}
		})
	}
}

func TestHandleGenerateRejections(t *testing.T) {
	clothing := pngBase64(t, 16, 16)
	person := pngBase64(t, 16, 16)

	tests := []struct {
		name        string
		mock        *mockProvider
		body        any
		wantCode    int
		wantMessage string
	}{
		{
			name:        "malformed json",
			mock:        &mockProvider{configured: true},
			body:        "{not json",
			wantCode:    http.StatusUnprocessableEntity,
			wantMessage: "invalid JSON",
		},
		{
			name:        "missing person",
			mock:        &mockProvider{configured: true},
			body:        models.TryOnRequest{ClothingImage: clothing},
			wantCode:    http.StatusUnprocessableEntity,
			wantMessage: "person_image is required",
		},
		{
			name:        "bad person base64",
			mock:        &mockProvider{configured: true},
			body:        models.TryOnRequest{PersonImage: "not-base64!!", ClothingImage: clothing},
			wantCode:    http.StatusUnprocessableEntity,
			wantMessage: "person image decode failed",
		},
		{
			name:        "no clothing",
			mock:        &mockProvider{configured: true},
			body:        models.TryOnRequest{PersonImage: person},
			wantCode:    http.StatusUnprocessableEntity,
			wantMessage: "no clothing provided",
		},
		{
			name:        "four clothing items",
			mock:        &mockProvider{configured: true},
			body:        models.TryOnRequest{PersonImage: person, ClothingImages: []string{clothing, clothing, clothing, clothing}},
			wantCode:    http.StatusUnprocessableEntity,
			wantMessage: "too many clothing items",
		},
		{
			name:        "bad clothing base64",
			mock:        &mockProvider{configured: true},
			body:        models.TryOnRequest{PersonImage: person, ClothingImages: []string{clothing, "not-base64!!"}},
			wantCode:    http.StatusUnprocessableEntity,
			wantMessage: "item 2 decode failed",
		},
		{
			name:        "undecodable person image",
			mock:        &mockProvider{configured: true},
			body:        models.TryOnRequest{PersonImage: base64.StdEncoding.EncodeToString([]byte("plain text, not pixels")), ClothingImage: clothing},
			wantCode:    http.StatusUnprocessableEntity,
			wantMessage: "person image could not be decoded",
		},
		{
			name:        "provider not configured",
			mock:        &mockProvider{},
			body:        models.TryOnRequest{PersonImage: person, ClothingImage: clothing},
			wantCode:    http.StatusServiceUnavailable,
			wantMessage: "image provider not configured",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, resp := doRequest(t, newTestHandler(tt.mock), http.MethodPost, "/api/tryon/generate", tt.body)
			if rec.Code != tt.wantCode {
				t.Fatalf("Expected %d, got %d: %s", tt.wantCode, rec.Code, rec.Body.String())
			}
			if resp.Success {
				t.Error("Expected success=false")
			}
			if resp.ResultImage != "" {
				t.Error("Expected no result image on failure")
			}
			if !strings.HasPrefix(resp.Message, tt.wantMessage) {
				t.Errorf("Expected message starting with %q, got %q", tt.wantMessage, resp.Message)
			}
			if tt.mock.calls != 0 {
				t.Errorf("Expected no provider calls, got %d", tt.mock.calls)
			}
		})
	}
}

func TestHandleGenerateBodyLimit(t *testing.T) {
	h := New(tryon.NewService(&mockProvider{configured: true}, "m", time.Second), 64)
	rec, resp := doRequest(t, h, http.MethodPost, "/api/tryon/generate", models.TryOnRequest{
		PersonImage: strings.Repeat("A", 200),
	})
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("Expected 413, got %d", rec.Code)
	}
	if resp.Success {
		t.Error("Expected success=false")
	}
}

func TestHandleGenerateMethodNotAllowed(t *testing.T) {
	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
		t.Run(method, func(t *testing.T) {
			rec, resp := doRequest(t, newTestHandler(&mockProvider{configured: true}), method, "/api/tryon/generate", nil)
			if rec.Code != http.StatusMethodNotAllowed {
				t.Fatalf("Expected 405, got %d", rec.Code)
			}
			if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
				t.Errorf("Expected JSON content type, got %q", ct)
			}
			if allow := rec.Header().Get("Allow"); allow != http.MethodPost {
				t.Errorf("Expected Allow POST, got %q", allow)
			}
			if resp.Success || resp.Fallback || resp.Message != "Method not allowed" {
				t.Errorf("Unexpected body %+v", resp)
			}
		})
	}
}

func TestHandleStatus(t *testing.T) {
	for _, configured := range []bool{true, false} {
		h := newTestHandler(&mockProvider{configured: configured})
		req := httptest.NewRequest(http.MethodGet, "/api/tryon/status", nil)
		rec := httptest.NewRecorder()
		h.HandleStatus(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", rec.Code)
		}
		var status models.StatusResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
			t.Fatalf("Failed to decode status: %v", err)
		}
		if status.Service != "tryon" || status.Status != "running" {
			t.Errorf("Unexpected status body: %+v", status)
		}
		if status.ProviderConfigured != configured {
			t.Errorf("Expected provider_configured=%v, got %v", configured, status.ProviderConfigured)
		}
	}
}

func TestHealthAndRoot(t *testing.T) {
	h := newTestHandler(&mockProvider{})
	mux := http.NewServeMux()
	h.Routes(mux)

	tests := []struct {
		path     string
		wantCode int
		wantKey  string
		wantVal  string
	}{
		{path: "/health", wantCode: http.StatusOK, wantKey: "status", wantVal: "ok"},
		{path: "/", wantCode: http.StatusOK, wantKey: "message", wantVal: "QuickFit API is running"},
		{path: "/missing", wantCode: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if rec.Code != tt.wantCode {
				t.Fatalf("Expected %d, got %d", tt.wantCode, rec.Code)
			}
			if tt.wantKey == "" {
				return
			}
			var body map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("Failed to decode body: %v", err)
			}
			if body[tt.wantKey] != tt.wantVal {
				t.Errorf("Expected %s=%q, got %q", tt.wantKey, tt.wantVal, body[tt.wantKey])
			}
		})
	}
}

func TestCORS(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	t.Run("preflight", func(t *testing.T) {
		rec := httptest.NewRecorder()
		CORS([]string{"*"}, next).ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/tryon/generate", nil))
		if rec.Code != http.StatusOK {
			t.Errorf("Expected 200, got %d", rec.Code)
		}
		if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
			t.Errorf("Expected wildcard origin, got %q", rec.Header().Get("Access-Control-Allow-Origin"))
		}
	})

	t.Run("listed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("Origin", "https://app.example")
		rec := httptest.NewRecorder()
		CORS([]string{"https://app.example"}, next).ServeHTTP(rec, req)
		if rec.Code != http.StatusTeapot {
			t.Errorf("Expected request to reach next handler, got %d", rec.Code)
		}
		if rec.Header().Get("Access-Control-Allow-Origin") != "https://app.example" {
			t.Errorf("Expected echoed origin, got %q", rec.Header().Get("Access-Control-Allow-Origin"))
		}
	})

	t.Run("unlisted origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("Origin", "https://evil.example")
		rec := httptest.NewRecorder()
		CORS([]string{"https://app.example"}, next).ServeHTTP(rec, req)
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
			t.Errorf("Expected no allow origin header, got %q", got)
		}
	})
}
