package attendance

import (
	"context"
	"database/sql"
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

// Create inserts the record and fills rec.ID. The unique index on
// (user_id, session_id) decides concurrent duplicates. rec.CheckedInAt
// is rewritten to the stored value.
func (r *MySQLRepo) Create(ctx context.Context, rec *Record) error {
	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	rec.CheckedInAt = mysql.Timestamp(rec.CheckedInAt)
	res, err := r.DB.ExecContext(ctx, `
		INSERT INTO attendance_logs (user_id, session_id, checked_in_at)
		VALUES (?, ?, ?)
	`, rec.UserID, rec.SessionID, rec.CheckedInAt)
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

func (r *MySQLRepo) ListBySession(ctx context.Context, sessionID int64) ([]Entry, error) {
	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	rows, err := r.DB.QueryContext(ctx, `
		SELECT a.id, a.user_id, a.session_id, a.checked_in_at,
		       u.id, u.name, u.email, u.organization
		FROM attendance_logs a
		JOIN users u ON u.id = a.user_id
		WHERE a.session_id = ?
		ORDER BY a.checked_in_at DESC, a.id DESC
	`, sessionID)
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
		if err := rows.Scan(&e.ID, &e.UserID, &e.SessionID, &e.CheckedInAt,
			&e.User.ID, &e.User.Name, &e.User.Email, &org); err != nil {
			return nil, err
		}
		if org.Valid {
			e.User.Organization = &org.String
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
