package user

import (
	"context"
	"errors"
	"time"
)

const (
	RoleAdmin    = "ADMIN"
	RoleSpeaker  = "SPEAKER"
	RoleAttendee = "ATTENDEE"
)

var ErrNotFound = errors.New("user not found")

type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Role         string    `json:"role"`
	Organization *string   `json:"organization"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Profile is the subset of a user that other attendees' records expose.
type Profile struct {
	ID           int64   `json:"id"`
	Name         string  `json:"name"`
	Email        string  `json:"email"`
	Organization *string `json:"organization"`
	Role         string  `json:"role,omitempty"`
}

func (u *User) Profile() Profile {
	return Profile{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		Organization: u.Organization,
	}
}

type Repository interface {
	FindByID(ctx context.Context, id int64) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	CountByRole(ctx context.Context, role string) (int, error)
}
