package entry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"micecheckin/internal/mysql"
)

type MySQLRepo struct {
	DB      *sql.DB
	Timeout time.Duration
}

func NewMySQLRepo(db *sql.DB, timeout time.Duration) *MySQLRepo {
	return &MySQLRepo{DB: db, Timeout: timeout}
}

// Create inserts the record and fills rec.ID. rec.EnteredAt is rewritten
// to the stored value so it matches later reads.
func (r *MySQLRepo) Create(ctx context.Context, rec *Record) error {
	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	rec.EnteredAt = mysql.Timestamp(rec.EnteredAt)
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO event_entries (user_id, entered_at) VALUES (?, ?)",
		rec.UserID, rec.EnteredAt)
	if err != nil {
		if mysql.IsDuplicateKey(err) {
			return fmt.Errorf("%w: %v", ErrDuplicate, err)
		}
		return err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	rec.ID = id
	return nil
}

func (r *MySQLRepo) GetByUser(ctx context.Context, userID int64) (*Record, error) {
	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	var rec Record
	err := r.DB.QueryRowContext(ctx,
		"SELECT id, user_id, entered_at FROM event_entries WHERE user_id = ?", userID,
	).Scan(&rec.ID, &rec.UserID, &rec.EnteredAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *MySQLRepo) Count(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	var n int
	if err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM event_entries").Scan(&n); err != nil {
		return 0, fmt.Errorf("count event entries: %w", err)
	}
	return n, nil
}

func (r *MySQLRepo) List(ctx context.Context) ([]Entry, error) {
	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	rows, err := r.DB.QueryContext(ctx, `
		SELECT e.id, e.user_id, e.entered_at,
		       u.id, u.name, u.email, u.organization, u.role
		FROM event_entries e
		JOIN users u ON u.id = e.user_id
		ORDER BY e.entered_at DESC, e.id DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		var (
			e   Entry
			org sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.EnteredAt,
			&e.User.ID, &e.User.Name, &e.User.Email, &org, &e.User.Role); err != nil {
			return nil, err
		}
		if org.Valid {
			e.User.Organization = &org.String
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
