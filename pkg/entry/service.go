package entry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"micecheckin/pkg/apperr"
	"micecheckin/pkg/audit"
	"micecheckin/pkg/user"
)

const DefaultMinDuration = 100 * time.Millisecond

type ServiceInterface interface {
	CheckIn(ctx context.Context, code string, operator Operator) (*Result, error)
	Reject(ctx context.Context, err error) error
	Stats(ctx context.Context) (*Stats, error)
}

type Service struct {
	Repo        Repository
	Users       user.Repository
	Audit       audit.Sink
	Logger      *slog.Logger
	MinDuration time.Duration
	Now         func() time.Time
	Sleep       func(ctx context.Context, d time.Duration)
}

func NewService(repo Repository, users user.Repository, sink audit.Sink, minDuration time.Duration, logger *slog.Logger) *Service {
	return &Service{
		Repo:        repo,
		Users:       users,
		Audit:       sink,
		Logger:      logger,
		MinDuration: minDuration,
		Now:         time.Now,
		Sleep:       sleepCtx,
	}
}

// CheckIn records the entry of the user encoded in a scanned personal QR.
// Every branch takes at least MinDuration, so response latency does not
// tell an unknown id from a non-attendee.
func (s *Service) CheckIn(ctx context.Context, code string, operator Operator) (*Result, error) {
	start := s.Now()
	res, err := s.checkIn(ctx, code, operator)
	s.padTo(ctx, start)
	return res, err
}

// Reject holds a request refused before it reached CheckIn for
// MinDuration and returns err unchanged.
func (s *Service) Reject(ctx context.Context, err error) error {
	s.padTo(ctx, s.Now())
	return err
}

func (s *Service) checkIn(ctx context.Context, code string, operator Operator) (*Result, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, apperr.New(apperr.ErrBadRequest, "User ID is required", nil)
	}

	invalid := apperr.New(apperr.ErrInvalidCode, "Invalid QR code", nil)

	userID, err := strconv.ParseInt(code, 10, 64)
	if err != nil || userID <= 0 {
		s.record(ctx, audit.OutcomeInvalidCode, operator, code, nil)
		return nil, invalid
	}

	u, err := s.Users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			s.record(ctx, audit.OutcomeNotFound, operator, code, &userID)
			return nil, invalid
		}
		return nil, s.fail(ctx, operator, code, &userID, err)
	}
	if u.Role != user.RoleAttendee {
		s.record(ctx, audit.OutcomeWrongRole, operator, code, &userID)
		return nil, invalid
	}

	rec := &Record{UserID: userID, EnteredAt: s.Now()}
	err = s.Repo.Create(ctx, rec)
	switch {
	case err == nil:
		s.record(ctx, audit.OutcomeCheckedIn, operator, code, &userID)
		return &Result{
			Message:   "Check-in successful",
			EntryTime: rec.EnteredAt,
			User:      u.Profile(),
		}, nil

	case errors.Is(err, ErrDuplicate):
		existing, getErr := s.Repo.GetByUser(ctx, userID)
		if getErr != nil {
			return nil, s.fail(ctx, operator, code, &userID, fmt.Errorf("read back entry: %w", getErr))
		}
		s.record(ctx, audit.OutcomeAlreadyCheckedIn, operator, code, &userID)
		return &Result{
			Message:          "Already checked in",
			AlreadyCheckedIn: true,
			EntryTime:        existing.EnteredAt,
			User:             u.Profile(),
		}, nil

	default:
		return nil, s.fail(ctx, operator, code, &userID, err)
	}
}

func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	fail := func(err error) (*Stats, error) {
		s.Logger.Error("event entry stats", "error", err)
		return nil, apperr.New(apperr.ErrTransient, "Failed to fetch event entry stats", err)
	}

	total, err := s.Repo.Count(ctx)
	if err != nil {
		return fail(err)
	}
	attendees, err := s.Users.CountByRole(ctx, user.RoleAttendee)
	if err != nil {
		return fail(err)
	}
	entries, err := s.Repo.List(ctx)
	if err != nil {
		return fail(err)
	}

	return &Stats{
		TotalEntries:   total,
		TotalAttendees: attendees,
		CheckInRate:    checkInRate(total, attendees),
		Entries:        entries,
	}, nil
}

func checkInRate(entries, attendees int) string {
	if attendees == 0 {
		return "0.00"
	}
	return strconv.FormatFloat(float64(entries)/float64(attendees)*100, 'f', 2, 64)
}

func (s *Service) fail(ctx context.Context, operator Operator, code string, userID *int64, err error) error {
	s.Logger.Error("event entry", "operator", operator.ID, "operator_email", operator.Email, "code", code, "error", err)
	s.record(ctx, audit.OutcomeError, operator, code, userID)
	return apperr.New(apperr.ErrTransient, "Failed to process event entry", err)
}

func (s *Service) record(ctx context.Context, outcome string, operator Operator, code string, userID *int64) {
	ev := audit.NewEvent(audit.ActionEventEntry, outcome, operator.ID, code, s.Now())
	ev.OperatorEmail = operator.Email
	ev.UserID = userID
	if err := s.Audit.Record(ctx, ev); err != nil {
		s.Logger.Warn("audit record failed", "event", ev.ID, "outcome", outcome, "error", err)
	}
}

func (s *Service) padTo(ctx context.Context, start time.Time) {
	if rest := s.MinDuration - s.Now().Sub(start); rest > 0 {
		s.Sleep(ctx, rest)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
