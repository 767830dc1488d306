package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/thesupersaurabh/AnnvahakPlatform-sub000/internal/service/errs"
)

// ErrBadRequest marks malformed input rejected before it reaches a service.
var ErrBadRequest = errors.New("bad request")

type errorBody struct {
	Error     string `json:"error"`
	Retryable bool   `json:"retryable"`
}

// JSON writes v with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error sending response", "error", err)
	}
}

// Error maps err onto an HTTP status and writes it as JSON.
func Error(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	switch {
	case status >= http.StatusInternalServerError:
		slog.Error("Request failed", "status", status, "error", err)
	case errs.IsValidation(err), errors.Is(err, ErrBadRequest):
		slog.Info("Request rejected by validation", "status", status, "error", err)
	default:
		slog.Warn("Request rejected", "status", status, "error", err)
	}

	JSON(w, status, errorBody{
		Error:     err.Error(),
		Retryable: errs.IsRetryable(err),
	})
}

// StatusFor returns the HTTP status that represents err.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, ErrBadRequest), errors.Is(err, errs.ErrInvalidMessage):
		return http.StatusBadRequest
	case errors.Is(err, errs.ErrInvalidTransition), errors.Is(err, errs.ErrUpdateInProgress):
		return http.StatusConflict
	case errors.Is(err, errs.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, errs.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errs.ErrRemoteRejected):
		return http.StatusConflict
	case errors.Is(err, errs.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, errs.ErrNetworkFailure):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// PathID reads a positive integer URL parameter.
func PathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid %s %q", ErrBadRequest, name, raw)
	}

	return id, nil
}
