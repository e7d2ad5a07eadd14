package rest

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/jupiterclapton/cenackle/services/social-service/internal/core/domain"
)

// apiResponse est l'enveloppe commune à toutes les réponses de l'API.
type apiResponse struct {
	Success   bool      `json:"success"`
	Data      any       `json:"data,omitempty"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Errors    []string  `json:"errors,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body apiResponse) {
	body.Timestamp = time.Now().UTC()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Warn("⚠️ Failed to write response", "error", err)
	}
}

func ok(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: data})
}

func created(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusCreated, apiResponse{Success: true, Data: data})
}

func message(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusOK, apiResponse{Success: true, Message: msg})
}

func fail(w http.ResponseWriter, status int, msg string, details ...string) {
	writeJSON(w, status, apiResponse{Success: false, Message: msg, Errors: details})
}

// writeError traduit une erreur du Domaine en statut HTTP.
// Les erreurs inconnues ne fuient pas : message générique + log.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fail(w, http.StatusBadRequest, "validation failed", validationMessages(verrs)...)
		return
	}

	status := statusFor(domain.KindOf(err))
	switch status {
	case http.StatusInternalServerError:
		slog.ErrorContext(r.Context(), "❌ Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		fail(w, status, "internal server error")
	case http.StatusServiceUnavailable:
		slog.WarnContext(r.Context(), "⏳ Dependency unavailable", "method", r.Method, "path", r.URL.Path, "error", err)
		w.Header().Set("Retry-After", "1")
		fail(w, status, "service temporarily unavailable")
	default:
		fail(w, status, err.Error())
	}
}

func statusFor(kind domain.Kind) int {
	switch kind {
	case domain.KindInvalid:
		return http.StatusBadRequest
	case domain.KindUnauthorized:
		return http.StatusUnauthorized
	case domain.KindForbidden:
		return http.StatusForbidden
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindAlreadyExists, domain.KindAlreadyLiked, domain.KindNotLiked:
		return http.StatusConflict
	case domain.KindTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
