package login

import (
	"context"
	"time"
)

type Session struct {
	ID        string
	UserID    int64
	CreatedAt time.Time
	ExpiresAt time.Time
}

type Repository interface {
	Create(ctx context.Context, s Session) error
	IsValid(ctx context.Context, sessionID string) (bool, error)
	Invalidate(ctx context.Context, userID int64) error
}
