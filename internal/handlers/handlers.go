// Package handlers exposes the pricing and billing services as a JSON API.
package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/diewo77/fieldbill/auth"
	"github.com/diewo77/fieldbill/httpx"
	"github.com/diewo77/fieldbill/i18n"
	"github.com/diewo77/fieldbill/internal/services"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// conflictCodes maps conflict reasons to response codes, most specific first.
var conflictCodes = []struct {
	err  error
	code string
}{
	{services.ErrCannotDeleteDefault, "cannot_delete_default_list"},
	{services.ErrDuplicateCode, "duplicate_article_code"},
	{services.ErrLineLocked, "billing_line_locked"},
	{services.ErrInvalidTransition, "invalid_status_transition"},
}

// writeError maps a service error onto an HTTP status and a translated body.
func writeError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	lang := i18n.DetectLanguage(r.Header.Get("Accept-Language"))

	var ve *services.ValidationError
	if errors.As(err, &ve) {
		httpx.JSON(w, http.StatusUnprocessableEntity, httpx.ErrorResponse{
			Error:   "validation_failed",
			Message: i18n.T(lang, "validation_failed"),
			Details: i18n.Violations(lang, ve.Violations),
		})
		return
	}
	status, code := http.StatusInternalServerError, "internal_error"
	switch {
	case errors.Is(err, services.ErrNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, services.ErrDependency):
		status, code = http.StatusConflict, "dependency"
	case errors.Is(err, services.ErrConflict):
		status, code = http.StatusConflict, "conflict"
		for _, c := range conflictCodes {
			if errors.Is(err, c.err) {
				code = c.code
				break
			}
		}
	default:
		logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	resp := httpx.ErrorResponse{Error: code, Message: i18n.T(lang, code)}
	if status != http.StatusInternalServerError {
		resp.Details = err.Error()
	}
	httpx.JSON(w, status, resp)
}

func badRequest(w http.ResponseWriter, r *http.Request, code string) {
	lang := i18n.DetectLanguage(r.Header.Get("Accept-Language"))
	httpx.JSON(w, http.StatusBadRequest, httpx.ErrorResponse{Error: code, Message: i18n.T(lang, code)})
}

// decode reads the JSON body, answering 400 itself on failure.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := httpx.Decode(w, r, v); err != nil {
		badRequest(w, r, "invalid_json")
		return false
	}
	return true
}

// uintParam parses a positive integer URL parameter, answering 400 itself on
// failure.
func uintParam(w http.ResponseWriter, r *http.Request, name string) (uint, bool) {
	v, err := strconv.ParseUint(chi.URLParam(r, name), 10, 64)
	if err != nil || v == 0 {
		badRequest(w, r, "invalid_id")
		return 0, false
	}
	return uint(v), true
}

// optionalCustomer reads ?customer_id=; absent means no customer.
func optionalCustomer(w http.ResponseWriter, r *http.Request) (*uint, bool) {
	raw := r.URL.Query().Get("customer_id")
	if raw == "" {
		return nil, true
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || v == 0 {
		badRequest(w, r, "invalid_id")
		return nil, false
	}
	id := uint(v)
	return &id, true
}

func actor(r *http.Request) services.Actor {
	id, _ := auth.IdentityFromContext(r.Context())
	return services.Actor{ID: id.UserID, Name: id.Name, Role: id.Role}
}
