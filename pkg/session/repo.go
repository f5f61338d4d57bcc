package session

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

type MySQLRepo struct {
	DB      *sql.DB
	Timeout time.Duration
}

func NewMySQLRepo(db *sql.DB, timeout time.Duration) *MySQLRepo {
	return &MySQLRepo{DB: db, Timeout: timeout}
}

func (r *MySQLRepo) Exists(ctx context.Context, id int64) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	var exists bool
	err := r.DB.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM sessions WHERE id = ?)`, id).Scan(&exists)
	return exists, err
}

func (r *MySQLRepo) GetByID(ctx context.Context, id int64) (*Session, error) {
	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	var (
		s     Session
		track sql.NullString
	)
	err := r.DB.QueryRowContext(ctx, `
		SELECT id, title, description, start_time, end_time, speaker_id, track
		FROM sessions WHERE id = ?
	`, id).Scan(&s.ID, &s.Title, &s.Description, &s.StartTime, &s.EndTime, &s.SpeakerID, &track)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if track.Valid {
		s.Track = &track.String
	}
	return &s, nil
}
