package errors

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// HTTPErrorAdapter maps TrackerError categories to HTTP responses.
type HTTPErrorAdapter struct {
	logger *slog.Logger
}

// NewHTTPErrorAdapter creates a new HTTP error adapter.
func NewHTTPErrorAdapter(logger *slog.Logger) *HTTPErrorAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPErrorAdapter{logger: logger}
}

// StatusCodeFor determines the HTTP status code for an error.
func (a *HTTPErrorAdapter) StatusCodeFor(err error) int {
	if err == nil {
		return http.StatusOK
	}
	switch GetCategory(err) {
	case CategoryValidation:
		return http.StatusBadRequest
	case CategoryNotFound:
		return http.StatusNotFound
	case CategoryDuplicateName:
		return http.StatusConflict
	case CategoryPersistence:
		return http.StatusServiceUnavailable
	case CategoryConfig, CategoryDaemon:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// errorBody is the JSON error envelope returned to API clients.
type errorBody struct {
	Error    string        `json:"error"`
	Category ErrorCategory `json:"category"`
	Context  ContextFields `json:"context,omitempty"`
}

// WriteError writes an error as a JSON response with the mapped status code.
func (a *HTTPErrorAdapter) WriteError(w http.ResponseWriter, err error) {
	status := a.StatusCodeFor(err)
	body := errorBody{Error: err.Error(), Category: GetCategory(err)}
	if te, ok := err.(*TrackerError); ok {
		body.Context = te.Context
		body.Error = te.Message
	}
	if status >= http.StatusInternalServerError {
		a.logger.Error("request failed", slog.String("error", err.Error()))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
