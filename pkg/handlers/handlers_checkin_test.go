package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"micecheckin/pkg/apperr"
	"micecheckin/pkg/attendance"
	"micecheckin/pkg/checkin"
	"micecheckin/pkg/handlers"
	"micecheckin/pkg/user"
)

type mockCheckIn struct {
	mock.Mock
}

func (m *mockCheckIn) IssueDynamicQR(ctx context.Context, sessionID int64) (*checkin.DynamicToken, error) {
	args := m.Called(sessionID)
	if tok := args.Get(0); tok != nil {
		return tok.(*checkin.DynamicToken), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockCheckIn) Redeem(ctx context.Context, token string, userID int64) (*attendance.Record, error) {
	args := m.Called(token, userID)
	if rec := args.Get(0); rec != nil {
		return rec.(*attendance.Record), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockCheckIn) ListAttendance(ctx context.Context, sessionID int64) ([]attendance.Entry, error) {
	args := m.Called(sessionID)
	if e := args.Get(0); e != nil {
		return e.([]attendance.Entry), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestDynamicQR(t *testing.T) {
	m := new(mockCheckIn)
	issued := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	m.On("IssueDynamicQR", int64(42)).Return(&checkin.DynamicToken{
		Token: "a1b2", SessionID: 42, IssuedAt: issued, TTL: 60 * time.Second,
	}, nil)
	m.On("IssueDynamicQR", int64(404)).Return(nil, apperr.New(apperr.ErrNotFound, "Session not found", nil))
	m.On("IssueDynamicQR", int64(500)).Return(nil, apperr.New(apperr.ErrTransient, "Failed to generate dynamic QR", errors.New("db")))

	handler := handlers.NewCheckInHandler(m, discard())

	tests := []struct {
		name   string
		id     string
		status int
		body   string
	}{
		{"success", "42", http.StatusOK, `{"sessionId":42,"dynamicToken":"a1b2","expiresIn":60,"generatedAt":"2025-05-01T10:00:00.000Z"}`},
		{"missing session", "404", http.StatusNotFound, `{"error":{"message":"Session not found"}}`},
		{"non numeric id", "abc", http.StatusBadRequest, `{"error":{"message":"Invalid session id"}}`},
		{"transient", "500", http.StatusInternalServerError, `{"error":{"message":"Failed to generate dynamic QR"}}`},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/sessions/"+test.id+"/dynamic-qr", nil)
			req = mux.SetURLVars(req, map[string]string{"id": test.id})
			rr := httptest.NewRecorder()

			handler.DynamicQR(rr, req)

			assert.Equal(t, test.status, rr.Code)
			assert.JSONEq(t, test.body, rr.Body.String())
		})
	}
}

func TestCheckIn(t *testing.T) {
	m := new(mockCheckIn)
	at := time.Date(2025, 5, 1, 10, 0, 5, 0, time.UTC)
	m.On("Redeem", "good", int64(7)).Return(&attendance.Record{ID: 1, UserID: 7, SessionID: 42, CheckedInAt: at}, nil)
	m.On("Redeem", "again", int64(7)).Return(nil, apperr.New(apperr.ErrConflict, "Already checked in to this session", nil))
	m.On("Redeem", "stale", int64(7)).Return(nil, apperr.New(apperr.ErrInvalidOrExpired, "Invalid or expired QR code", nil))
	m.On("Redeem", "", int64(7)).Return(nil, apperr.New(apperr.ErrBadRequest, "Dynamic token is required", nil))

	handler := handlers.NewCheckInHandler(m, discard())

	tests := []struct {
		name   string
		body   string
		status int
		want   string
	}{
		{"success", `{"dynamicToken":"good"}`, http.StatusCreated, `"message":"Check-in successful"`},
		{"duplicate", `{"dynamicToken":"again"}`, http.StatusConflict, "Already checked in to this session"},
		{"expired", `{"dynamicToken":"stale"}`, http.StatusBadRequest, "Invalid or expired QR code"},
		{"missing token", `{}`, http.StatusBadRequest, "Dynamic token is required"},
		{"bad json", `{"dynamicToken":`, http.StatusBadRequest, "Invalid JSON payload"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/sessions/check-in", strings.NewReader(test.body))
			req = withClaims(req, 7, user.RoleAttendee)
			rr := httptest.NewRecorder()

			handler.CheckIn(rr, req)

			assert.Equal(t, test.status, rr.Code)
			assert.Contains(t, rr.Body.String(), test.want)
		})
	}

	t.Run("attendance log shape", func(t *testing.T) {
		req := withClaims(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"dynamicToken":"good"}`)), 7, user.RoleAttendee)
		rr := httptest.NewRecorder()
		handler.CheckIn(rr, req)

		var body struct {
			AttendanceLog map[string]any `json:"attendanceLog"`
		}
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		assert.Equal(t, float64(7), body.AttendanceLog["userId"])
		assert.Equal(t, float64(42), body.AttendanceLog["sessionId"])
		assert.Equal(t, "2025-05-01T10:00:05Z", body.AttendanceLog["checkedInAt"])
	})
}

func TestAttendance(t *testing.T) {
	m := new(mockCheckIn)
	entries := []attendance.Entry{
		{Record: attendance.Record{ID: 2, UserID: 8, SessionID: 42}, User: user.Profile{ID: 8, Name: "Lee"}},
		{Record: attendance.Record{ID: 1, UserID: 7, SessionID: 42}, User: user.Profile{ID: 7, Name: "Kim"}},
	}
	m.On("ListAttendance", int64(42)).Return(entries, nil)
	m.On("ListAttendance", int64(43)).Return(nil, apperr.New(apperr.ErrTransient, "Failed to fetch attendance", errors.New("db")))

	handler := handlers.NewCheckInHandler(m, discard())

	req := mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/", nil), map[string]string{"id": "42"})
	rr := httptest.NewRecorder()
	handler.Attendance(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var body struct {
		SessionID      int64            `json:"sessionId"`
		TotalAttendees int              `json:"totalAttendees"`
		AttendanceLogs []map[string]any `json:"attendanceLogs"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, int64(42), body.SessionID)
	assert.Equal(t, 2, body.TotalAttendees)
	assert.Equal(t, "Lee", body.AttendanceLogs[0]["user"].(map[string]any)["name"])

	req = mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/", nil), map[string]string{"id": "43"})
	rr = httptest.NewRecorder()
	handler.Attendance(rr, req)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}
