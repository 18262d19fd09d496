package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/pavelanni/coursemate/internal/assistant"
	"github.com/pavelanni/coursemate/internal/handler/views"
	appI18n "github.com/pavelanni/coursemate/internal/i18n"
	"github.com/pavelanni/coursemate/internal/llm"
	"github.com/pavelanni/coursemate/internal/llm/validate"
	"github.com/pavelanni/coursemate/internal/store"
)

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// classify maps an error to a status code, a message ID and an optional
// completion error kind.
func classify(err error) (int, string, string) {
	if kind, ok := llm.KindOf(err); ok {
		status := http.StatusBadGateway
		switch kind {
		case llm.KindRateLimited:
			status = http.StatusTooManyRequests
		case llm.KindInvalidRequest:
			status = http.StatusBadRequest
		case llm.KindServiceUnavailable:
			status = http.StatusServiceUnavailable
		}
		return status, kind.MessageID(), kind.String()
	}

	var pe *validate.ParseError
	var se *validate.SchemaError
	switch {
	case errors.As(err, &pe), errors.As(err, &se):
		return http.StatusBadGateway, "ErrLLMInvalidResponse", "invalid_response"
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "ErrNotFound", ""
	case errors.Is(err, assistant.ErrInvalidInput):
		return http.StatusBadRequest, "ErrInvalidInput", ""
	case errors.Is(err, errForbidden):
		return http.StatusForbidden, "ErrForbidden", ""
	}
	return http.StatusInternalServerError, "ErrInternal", ""
}

// fail logs err and writes a localized error response.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	status, msgID, kind := classify(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	} else {
		slog.Warn("request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}
	failStatus(w, r, status, msgID, kind)
}

func failStatus(w http.ResponseWriter, r *http.Request, status int, msgID, kind string) {
	msg := appI18n.T(r.Context(), msgID)
	if isHTMX(r) {
		render(w, r, status, views.ErrorBanner(msg))
		return
	}
	writeJSON(w, status, errorBody{Error: msg, Kind: kind})
}
