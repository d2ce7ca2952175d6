package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/dukerupert/outofoffice/internal/outofoffice"
)

const (
	codeBadRequest   = "BAD_REQUEST"
	codeNotFound     = "NOT_FOUND"
	codeConflict     = "CONFLICT"
	codeUnauthorized = "UNAUTHORIZED"
	codeInternal     = "INTERNAL_SERVER_ERROR"

	keyInvalidBody = "invalid_request_body"
	keyInternal    = "internal_server_error"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// WriteError writes the standard RPC error envelope.
func WriteError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Error: errorDetail{Code: code, Message: message}})
}

// WriteUnauthorized writes a 401 in the RPC error envelope.
func WriteUnauthorized(w http.ResponseWriter) {
	WriteError(w, http.StatusUnauthorized, codeUnauthorized, "unauthorized")
}

// writeServiceError maps a service error onto an HTTP status and code.
func writeServiceError(w http.ResponseWriter, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, outofoffice.ErrInvalidInput):
		WriteError(w, http.StatusBadRequest, codeBadRequest, outofoffice.MessageKey(err))
	case errors.Is(err, outofoffice.ErrNotFound):
		WriteError(w, http.StatusNotFound, codeNotFound, outofoffice.MessageKey(err))
	case errors.Is(err, outofoffice.ErrConflict):
		WriteError(w, http.StatusConflict, codeConflict, outofoffice.MessageKey(err))
	default:
		logger.Error("unexpected service error", "error", err)
		WriteError(w, http.StatusInternalServerError, codeInternal, keyInternal)
	}
}
