package checkin

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"micecheckin/pkg/apperr"
	"micecheckin/pkg/attendance"
	"micecheckin/pkg/generator"
)

const DefaultTTL = 60 * time.Second

// DynamicToken is what the admin display renders as a rotating QR code.
type DynamicToken struct {
	Token     string
	SessionID int64
	IssuedAt  time.Time
	TTL       time.Duration
}

type SessionFinder interface {
	Exists(ctx context.Context, id int64) (bool, error)
}

type ServiceInterface interface {
	IssueDynamicQR(ctx context.Context, sessionID int64) (*DynamicToken, error)
	Redeem(ctx context.Context, token string, userID int64) (*attendance.Record, error)
	ListAttendance(ctx context.Context, sessionID int64) ([]attendance.Entry, error)
}

type Service struct {
	Sessions   SessionFinder
	Tokens     TokenStore
	Attendance attendance.Repository
	Logger     *slog.Logger
	TTL        time.Duration
	Now        func() time.Time
	NewToken   func() (string, error)
}

func NewService(sessions SessionFinder, tokens TokenStore, repo attendance.Repository, ttl time.Duration, logger *slog.Logger) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{
		Sessions:   sessions,
		Tokens:     tokens,
		Attendance: repo,
		Logger:     logger,
		TTL:        ttl,
		Now:        time.Now,
		NewToken:   func() (string, error) { return generator.Token(generator.TokenBytes) },
	}
}

// IssueDynamicQR mints a fresh token for the session. Earlier tokens for
// the same session stay valid until their own TTL runs out.
func (s *Service) IssueDynamicQR(ctx context.Context, sessionID int64) (*DynamicToken, error) {
	ok, err := s.Sessions.Exists(ctx, sessionID)
	if err != nil {
		s.Logger.Error("dynamic qr: session lookup", "session", sessionID, "error", err)
		return nil, apperr.New(apperr.ErrTransient, "Failed to generate dynamic QR", err)
	}
	if !ok {
		return nil, apperr.New(apperr.ErrNotFound, "Session not found", nil)
	}

	token, err := s.NewToken()
	if err != nil {
		s.Logger.Error("dynamic qr: token generation", "error", err)
		return nil, apperr.New(apperr.ErrTransient, "Failed to generate dynamic QR", err)
	}

	issued := s.Now()
	if err := s.Tokens.Put(ctx, token, sessionID, s.TTL); err != nil {
		s.Logger.Error("dynamic qr: token store", "session", sessionID, "error", err)
		return nil, apperr.New(apperr.ErrTransient, "Failed to generate dynamic QR", err)
	}

	s.Logger.Info("dynamic qr issued", "session", sessionID, "ttl", s.TTL)
	return &DynamicToken{Token: token, SessionID: sessionID, IssuedAt: issued, TTL: s.TTL}, nil
}

// Redeem turns a scanned token into an attendance record for userID.
// The token is not consumed: everyone in the room scans the same code.
func (s *Service) Redeem(ctx context.Context, token string, userID int64) (*attendance.Record, error) {
	if token == "" {
		return nil, apperr.New(apperr.ErrBadRequest, "Dynamic token is required", nil)
	}

	sessionID, ok, err := s.Tokens.Lookup(ctx, token)
	if err != nil {
		s.Logger.Error("check-in: token lookup", "user", userID, "error", err)
		return nil, apperr.New(apperr.ErrTransient, "Failed to check in", err)
	}
	if !ok {
		// unknown and expired tokens get the same answer
		s.Logger.Warn("check-in rejected", "user", userID, "reason", "unknown_or_expired")
		return nil, apperr.New(apperr.ErrInvalidOrExpired, "Invalid or expired QR code", nil)
	}

	rec := &attendance.Record{UserID: userID, SessionID: sessionID, CheckedInAt: s.Now()}
	if err := s.Attendance.Create(ctx, rec); err != nil {
		if errors.Is(err, attendance.ErrDuplicate) {
			s.Logger.Info("check-in rejected", "user", userID, "session", sessionID, "reason", "duplicate")
			return nil, apperr.New(apperr.ErrConflict, "Already checked in to this session", err)
		}
		s.Logger.Error("check-in: insert", "user", userID, "session", sessionID, "error", err)
		return nil, apperr.New(apperr.ErrTransient, "Failed to check in", err)
	}

	s.Logger.Info("check-in", "user", userID, "session", sessionID)
	return rec, nil
}

func (s *Service) ListAttendance(ctx context.Context, sessionID int64) ([]attendance.Entry, error) {
	entries, err := s.Attendance.ListBySession(ctx, sessionID)
	if err != nil {
		s.Logger.Error("attendance list", "session", sessionID, "error", err)
		return nil, apperr.New(apperr.ErrTransient, "Failed to fetch attendance", err)
	}
	return entries, nil
}
