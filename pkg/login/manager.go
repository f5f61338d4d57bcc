package login

import (
	"context"
	"database/sql"
	"time"
)

type MySQLRepo struct {
	DB  *sql.DB
	Now func() time.Time
}

func NewMySQLRepo(db *sql.DB) *MySQLRepo {
	return &MySQLRepo{DB: db, Now: time.Now}
}

func (r *MySQLRepo) Create(ctx context.Context, s Session) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO login_sessions (id, user_id, created_at, expires_at)
		VALUES (?, ?, ?, ?)
	`, s.ID, s.UserID, s.CreatedAt.UTC(), s.ExpiresAt.UTC())
	return err
}

func (r *MySQLRepo) IsValid(ctx context.Context, sessionID string) (bool, error) {
	var exists bool
	err := r.DB.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM login_sessions
			WHERE id = ? AND expires_at > ?
		)
	`, sessionID, r.Now().UTC()).Scan(&exists)
	return exists, err
}

func (r *MySQLRepo) Invalidate(ctx context.Context, userID int64) error {
	_, err := r.DB.ExecContext(ctx, `
		DELETE FROM login_sessions WHERE user_id = ?
	`, userID)
	return err
}
