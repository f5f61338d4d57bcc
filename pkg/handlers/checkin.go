package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"micecheckin/pkg/checkin"
)

const isoMillis = "2006-01-02T15:04:05.000Z07:00"

type CheckInHandler struct {
	Service checkin.ServiceInterface
	Logger  *slog.Logger
}

func NewCheckInHandler(service checkin.ServiceInterface, logger *slog.Logger) *CheckInHandler {
	return &CheckInHandler{
		Service: service,
		Logger:  logger,
	}
}

type checkInForm struct {
	DynamicToken string `json:"dynamicToken"`
}

func (h *CheckInHandler) DynamicQR(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	tok, err := h.Service.IssueDynamicQR(r.Context(), sessionID)
	if err != nil {
		writeAppError(w, h.Logger, r, err)
		return
	}

	writeJSON(w, h.Logger, http.StatusOK, map[string]any{
		"sessionId":    tok.SessionID,
		"dynamicToken": tok.Token,
		"expiresIn":    int64(tok.TTL / time.Second),
		"generatedAt":  tok.IssuedAt.UTC().Format(isoMillis),
	})
}

func (h *CheckInHandler) CheckIn(w http.ResponseWriter, r *http.Request) {
	c, ok := getClaims(w, r)
	if !ok {
		return
	}

	var req checkInForm
	if ok := decodeJSONBody(w, r, &req); !ok {
		return
	}

	rec, err := h.Service.Redeem(r.Context(), req.DynamicToken, c.UserID)
	if err != nil {
		writeAppError(w, h.Logger, r, err)
		return
	}

	writeJSON(w, h.Logger, http.StatusCreated, map[string]any{
		"message":       "Check-in successful",
		"attendanceLog": rec,
	})
}

func (h *CheckInHandler) Attendance(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	entries, err := h.Service.ListAttendance(r.Context(), sessionID)
	if err != nil {
		writeAppError(w, h.Logger, r, err)
		return
	}

	writeJSON(w, h.Logger, http.StatusOK, map[string]any{
		"sessionId":      sessionID,
		"totalAttendees": len(entries),
		"attendanceLogs": entries,
	})
}
