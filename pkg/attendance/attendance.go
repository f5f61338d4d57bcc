package attendance

import (
	"context"
	"errors"
	"time"

	"micecheckin/pkg/user"
)

// ErrDuplicate is returned when (user, session) already has a record.
var ErrDuplicate = errors.New("attendance already recorded")

type Record struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"userId"`
	SessionID   int64     `json:"sessionId"`
	CheckedInAt time.Time `json:"checkedInAt"`
}

// Entry is a record joined with the attendee's profile for admin views.
type Entry struct {
	Record
	User user.Profile `json:"user"`
}

type Repository interface {
	Create(ctx context.Context, rec *Record) error
	ListBySession(ctx context.Context, sessionID int64) ([]Entry, error)
}
