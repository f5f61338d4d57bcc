package user

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"micecheckin/pkg/apperr"
	"micecheckin/pkg/generator"
	"micecheckin/pkg/login"
)

const loginSessionIDLen = 24

type ServiceInterface interface {
	Login(ctx context.Context, email, password string) (*User, string, error)
	Me(ctx context.Context, id int64) (*User, error)
	Pass(ctx context.Context, id int64) (*Pass, error)
}

// Pass is the payload rendered into an attendee's personal QR code.
type Pass struct {
	UserID int64  `json:"userId"`
	QRData string `json:"qrData"`
}

type Service struct {
	Repo     Repository
	Session  login.Repository
	Lockout  *Lockout
	TokenTTL time.Duration
	Now      func() time.Time
}

func NewService(repo Repository, session login.Repository, lockout *Lockout, tokenTTL time.Duration) *Service {
	return &Service{
		Repo:     repo,
		Session:  session,
		Lockout:  lockout,
		TokenTTL: tokenTTL,
		Now:      time.Now,
	}
}

// Login verifies the credentials and opens a login session. It returns
// the user and the session id to embed in the JWT.
func (s *Service) Login(ctx context.Context, email, password string) (*User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, "", apperr.New(apperr.ErrBadRequest, "Email and password are required", nil)
	}

	if s.Lockout.Locked(email) {
		return nil, "", apperr.New(apperr.ErrLocked, "Too many login attempts, please try again after 15 minutes.", nil)
	}

	invalid := apperr.New(apperr.ErrUnauthorized, "Invalid email or password", nil)

	u, err := s.Repo.FindByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		s.Lockout.Fail(email)
		return nil, "", invalid
	}
	if err != nil {
		return nil, "", apperr.New(apperr.ErrTransient, "Login failed", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		s.Lockout.Fail(email)
		return nil, "", invalid
	}
	s.Lockout.Reset(email)

	sessionID, err := generator.GenerateRandomID(loginSessionIDLen)
	if err != nil {
		return nil, "", apperr.New(apperr.ErrTransient, "Login failed", err)
	}

	now := s.Now()
	err = s.Session.Create(ctx, login.Session{
		ID:        sessionID,
		UserID:    u.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.TokenTTL),
	})
	if err != nil {
		return nil, "", apperr.New(apperr.ErrTransient, "Login failed", err)
	}

	return u, sessionID, nil
}

func (s *Service) Me(ctx context.Context, id int64) (*User, error) {
	u, err := s.Repo.FindByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, apperr.New(apperr.ErrNotFound, "User not found", nil)
	}
	if err != nil {
		return nil, apperr.New(apperr.ErrTransient, "Failed to fetch user", err)
	}
	return u, nil
}

// Pass returns the static personal QR payload: the bare decimal user id.
// It is unsigned and never expires, so anyone holding it can enter the event.
func (s *Service) Pass(ctx context.Context, id int64) (*Pass, error) {
	u, err := s.Me(ctx, id)
	if err != nil {
		return nil, err
	}
	if u.Role != RoleAttendee {
		return nil, apperr.New(apperr.ErrForbidden, "Attendee access required", nil)
	}
	return &Pass{UserID: u.ID, QRData: strconv.FormatInt(u.ID, 10)}, nil
}
