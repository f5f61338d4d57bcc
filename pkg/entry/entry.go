package entry

import (
	"context"
	"errors"
	"time"

	"micecheckin/pkg/user"
)

var (
	ErrDuplicate = errors.New("event entry already exists")
	ErrNotFound  = errors.New("event entry not found")
)

// Record is a user's single physical entry to the event.
type Record struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"userId"`
	EnteredAt time.Time `json:"enteredAt"`
}

type Entry struct {
	Record
	User user.Profile `json:"user"`
}

type Repository interface {
	Create(ctx context.Context, rec *Record) error
	GetByUser(ctx context.Context, userID int64) (*Record, error)
	Count(ctx context.Context) (int, error)
	List(ctx context.Context) ([]Entry, error)
}

// Operator is the admin scanning codes at the desk.
type Operator struct {
	ID    int64
	Email string
}

type Result struct {
	Message          string       `json:"message"`
	AlreadyCheckedIn bool         `json:"alreadyCheckedIn"`
	EntryTime        time.Time    `json:"entryTime"`
	User             user.Profile `json:"user"`
}

type Stats struct {
	TotalEntries   int     `json:"totalEntries"`
	TotalAttendees int     `json:"totalAttendees"`
	CheckInRate    string  `json:"checkInRate"`
	Entries        []Entry `json:"entries"`
}
