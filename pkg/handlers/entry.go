package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"micecheckin/pkg/apperr"
	"micecheckin/pkg/audit"
	"micecheckin/pkg/entry"
)

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 200
)

type AuditReader interface {
	Recent(ctx context.Context, operatorID int64, limit int64) ([]audit.Event, error)
}

type EntryHandler struct {
	Service entry.ServiceInterface
	Audit   AuditReader
	Logger  *slog.Logger
}

func NewEntryHandler(service entry.ServiceInterface, reader AuditReader, logger *slog.Logger) *EntryHandler {
	return &EntryHandler{
		Service: service,
		Audit:   reader,
		Logger:  logger,
	}
}

type entryForm struct {
	UserID json.RawMessage `json:"userId"`
}

// code accepts the scanned id as a JSON number or string.
func (f entryForm) code() string {
	raw := bytes.TrimSpace(f.UserID)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// decodeEntryForm is decodeJSONBody without writing the response.
func decodeEntryForm(r *http.Request, req *entryForm) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		return apperr.New(apperr.ErrBadRequest, "Invalid JSON payload", err)
	}
	return nil
}

func (h *EntryHandler) EventEntry(w http.ResponseWriter, r *http.Request) {
	c, ok := getClaims(w, r)
	if !ok {
		return
	}

	var req entryForm
	if err := decodeEntryForm(r, &req); err != nil {
		writeAppError(w, h.Logger, r, h.Service.Reject(r.Context(), err))
		return
	}

	res, err := h.Service.CheckIn(r.Context(), req.code(), entry.Operator{ID: c.UserID, Email: c.Email})
	if err != nil {
		writeAppError(w, h.Logger, r, err)
		return
	}

	status := http.StatusCreated
	if res.AlreadyCheckedIn {
		status = http.StatusOK
	}
	writeJSON(w, h.Logger, status, res)
}

func (h *EntryHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Service.Stats(r.Context())
	if err != nil {
		writeAppError(w, h.Logger, r, err)
		return
	}
	writeJSON(w, h.Logger, http.StatusOK, stats)
}

// AuditTrail lists the calling operator's recent desk scans.
func (h *EntryHandler) AuditTrail(w http.ResponseWriter, r *http.Request) {
	c, ok := getClaims(w, r)
	if !ok {
		return
	}
	if h.Audit == nil {
		writeError(w, http.StatusNotFound, "Audit trail is not configured")
		return
	}

	limit := int64(defaultAuditLimit)
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = min(n, maxAuditLimit)
	}

	events, err := h.Audit.Recent(r.Context(), c.UserID, limit)
	if err != nil {
		h.Logger.Error("audit trail", "operator", c.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch audit trail")
		return
	}
	writeJSON(w, h.Logger, http.StatusOK, map[string]any{"events": events})
}
