package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/quickfit/tryon/internal/models"
	"github.com/quickfit/tryon/internal/tryon"
)

// DefaultMaxBodyBytes caps a generate request body.
const DefaultMaxBodyBytes int64 = 32 << 20

// TryOnService is the pipeline behind the generate endpoint
type TryOnService interface {
	GenerateTryOn(ctx context.Context, person []byte, clothing [][]byte) (*tryon.Result, error)
	Configured() bool
	Model() string
}

type Handler struct {
	service      TryOnService
	maxBodyBytes int64
}

func New(service TryOnService, maxBodyBytes int64) *Handler {
	if maxBodyBytes <= 0 {
		maxBodyBytes = DefaultMaxBodyBytes
	}
	return &Handler{
		service:      service,
		maxBodyBytes: maxBodyBytes,
	}
}

// Routes registers every endpoint on mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/api/tryon/generate", h.HandleGenerate)
	mux.HandleFunc("/api/tryon/status", h.HandleStatus)
	mux.HandleFunc("/health", h.HandleHealth)
	mux.HandleFunc("/", h.HandleRoot)
}

// Response helpers
func (h *Handler) writeJSON(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Unable to encode JSON response", "err", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, message string, code int) {
	slog.Error(message)
	http.Error(w, message, code)
}

// writeFailure answers with the try-on result shape so clients can always
// parse the body.
func (h *Handler) writeFailure(w http.ResponseWriter, code int, message string) {
	if code >= http.StatusInternalServerError {
		slog.Error("Try-on request failed", "status", code, "message", message)
	} else {
		slog.Warn("Try-on request rejected", "status", code, "message", message)
	}
	h.writeJSON(w, code, models.TryOnResponse{Success: false, Message: message})
}

// CORS allows browser clients from the given origins. "*" allows any.
func CORS(origins []string, next http.Handler) http.Handler {
	allowAll := len(origins) == 0
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		o = strings.TrimSpace(o)
		if o == "*" {
			allowAll = true
		}
		allowed[o] = true
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		switch {
		case allowAll:
			w.Header().Set("Access-Control-Allow-Origin", "*")
		case origin != "" && allowed[origin]:
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
