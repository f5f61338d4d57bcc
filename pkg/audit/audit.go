package audit

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

const (
	ActionEventEntry = "event_entry"

	OutcomeInvalidCode      = "invalid_code"
	OutcomeNotFound         = "not_found"
	OutcomeWrongRole        = "wrong_role"
	OutcomeAlreadyCheckedIn = "already_checked_in"
	OutcomeCheckedIn        = "checked_in"
	OutcomeError            = "error"
)

// Event is one operator action at the registration desk.
type Event struct {
	ID            string    `bson:"_id" json:"id"`
	Action        string    `bson:"action" json:"action"`
	Outcome       string    `bson:"outcome" json:"outcome"`
	OperatorID    int64     `bson:"operatorId" json:"operatorId"`
	OperatorEmail string    `bson:"operatorEmail,omitempty" json:"operatorEmail,omitempty"`
	Code          string    `bson:"code" json:"code"`
	UserID        *int64    `bson:"userId,omitempty" json:"userId,omitempty"`
	At            time.Time `bson:"at" json:"at"`
}

func NewEvent(action, outcome string, operatorID int64, code string, at time.Time) Event {
	return Event{
		ID:         uuid.NewString(),
		Action:     action,
		Outcome:    outcome,
		OperatorID: operatorID,
		Code:       code,
		At:         at,
	}
}

type Sink interface {
	Record(ctx context.Context, ev Event) error
}

type LogSink struct {
	Logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{Logger: logger}
}

func (s *LogSink) Record(ctx context.Context, ev Event) error {
	attrs := []any{
		"id", ev.ID,
		"action", ev.Action,
		"outcome", ev.Outcome,
		"operator", ev.OperatorID,
		"code", ev.Code,
	}
	if ev.OperatorEmail != "" {
		attrs = append(attrs, "operator_email", ev.OperatorEmail)
	}
	if ev.UserID != nil {
		attrs = append(attrs, "user", *ev.UserID)
	}
	s.Logger.InfoContext(ctx, "audit", attrs...)
	return nil
}

// Multi records to every sink and joins their errors.
type Multi []Sink

func (m Multi) Record(ctx context.Context, ev Event) error {
	var errs []error
	for _, s := range m {
		if err := s.Record(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
