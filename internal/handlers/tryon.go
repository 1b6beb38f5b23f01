package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/quickfit/tryon/internal/imagecodec"
	"github.com/quickfit/tryon/internal/models"
	"github.com/quickfit/tryon/internal/tryon"
	"github.com/quickfit/tryon/internal/validation"
)

const (
	MessageSuccess  = "Try-on generated successfully"
	MessageFallback = "AI generation failed, please retry"
)

func (h *Handler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		h.writeFailure(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)

	var request models.TryOnRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.writeFailure(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		h.writeFailure(w, http.StatusUnprocessableEntity, "invalid JSON: "+err.Error())
		return
	}

	if strings.TrimSpace(request.PersonImage) == "" {
		h.writeFailure(w, http.StatusUnprocessableEntity, "person_image is required")
		return
	}

	person, err := imagecodec.FromBase64(request.PersonImage)
	if err != nil {
		h.writeFailure(w, http.StatusUnprocessableEntity, "person image decode failed: "+err.Error())
		return
	}

	clothing, err := validation.ValidateClothing(validation.ResolveClothing(request.ClothingImage, request.ClothingImages))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	slog.Info("Generating try-on", "person_bytes", len(person), "clothing_items", len(clothing))

	result, err := h.service.GenerateTryOn(r.Context(), person, clothing)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	response := models.TryOnResponse{
		Success:     true,
		ResultImage: imagecodec.ToBase64(result.Image),
		Message:     MessageSuccess,
	}
	if result.Fallback {
		response.Message = MessageFallback
		response.Fallback = true
	}

	h.writeJSON(w, http.StatusOK, response)
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	var validationErr *validation.ValidationError
	var decodeErr *imagecodec.ImageDecodeError

	switch {
	case errors.As(err, &validationErr):
		h.writeFailure(w, http.StatusUnprocessableEntity, validationErr.Message)
	case errors.As(err, &decodeErr):
		h.writeFailure(w, http.StatusUnprocessableEntity, "person image could not be decoded")
	case errors.Is(err, tryon.ErrNotConfigured):
		h.writeFailure(w, http.StatusServiceUnavailable, "image provider not configured")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		slog.Info("Client went away before try-on finished", "err", err)
		h.writeFailure(w, http.StatusRequestTimeout, "request cancelled")
	default:
		slog.Error("Unexpected try-on failure", "err", err)
		h.writeFailure(w, http.StatusInternalServerError, "internal error")
	}
}

func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	h.writeJSON(w, http.StatusOK, models.StatusResponse{
		Service:            "tryon",
		Status:             "running",
		ProviderConfigured: h.service.Configured(),
		Model:              h.service.Model(),
	})
}

func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) HandleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"message": "QuickFit API is running"})
}
