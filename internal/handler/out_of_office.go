package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/dukerupert/outofoffice/internal/auth"
	"github.com/dukerupert/outofoffice/internal/outofoffice"
)

const maxBodyBytes = 1 << 20

type OutOfOfficeHandler struct {
	svc    *outofoffice.Service
	logger *slog.Logger
}

func NewOutOfOfficeHandler(svc *outofoffice.Service, logger *slog.Logger) *OutOfOfficeHandler {
	return &OutOfOfficeHandler{
		svc:    svc,
		logger: logger.With("component", "handler"),
	}
}

type createRequest struct {
	StartDate    string `json:"startDate"`
	EndDate      string `json:"endDate"`
	ToTeamUserID *int64 `json:"toTeamUserId"`
}

type deleteRequest struct {
	OutOfOfficeUID string `json:"outOfOfficeUid"`
}

// decodeBody decodes a JSON request body. An empty body leaves v untouched.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (h *OutOfOfficeHandler) Create(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.FromContext(r.Context())
	if !ok {
		WriteUnauthorized(w)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req createRequest
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, codeBadRequest, keyInvalidBody)
		return
	}

	loc := h.svc.Location()
	start, err := outofoffice.ParseDate(req.StartDate, loc)
	if err != nil {
		WriteError(w, http.StatusBadRequest, codeBadRequest, keyInvalidBody)
		return
	}
	end, err := outofoffice.ParseDate(req.EndDate, loc)
	if err != nil {
		WriteError(w, http.StatusBadRequest, codeBadRequest, keyInvalidBody)
		return
	}

	err = h.svc.Create(r.Context(), caller, outofoffice.CreateInput{
		StartDate:    start,
		EndDate:      end,
		ToTeamUserID: req.ToTeamUserID,
	})
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

func (h *OutOfOfficeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.FromContext(r.Context())
	if !ok {
		WriteUnauthorized(w)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req deleteRequest
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, codeBadRequest, keyInvalidBody)
		return
	}

	if err := h.svc.Delete(r.Context(), caller, req.OutOfOfficeUID); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

func (h *OutOfOfficeHandler) List(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.FromContext(r.Context())
	if !ok {
		WriteUnauthorized(w)
		return
	}

	items, err := h.svc.List(r.Context(), caller)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}
