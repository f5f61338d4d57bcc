package mysql

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	drv "github.com/go-sql-driver/mysql"
)

const errDuplicateEntry = 1062

var schemaFiles = []string{
	"./internal/mysql/users.sql",
	"./internal/mysql/login_sessions.sql",
	"./internal/mysql/sessions.sql",
	"./internal/mysql/attendance_logs.sql",
	"./internal/mysql/event_entries.sql",
}

func LoadDB(dsn string) *sql.DB {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		log.Fatal(err)
	}
	if err := db.Ping(); err != nil {
		log.Fatal("Cannot connect to DB:", err)
	}
	if err := exec(db, schemaFiles); err != nil {
		log.Fatal("Cannot create tables:", err)
	}
	return db
}

func exec(db *sql.DB, files []string) error {
	for _, file := range files {
		query, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", file, err)
		}
		if _, err := db.Exec(string(query)); err != nil {
			return fmt.Errorf("failed to execute %s: %w", file, err)
		}
	}
	return nil
}

// IsDuplicateKey reports whether err is a unique constraint violation.
// Repos are exercised against SQLite in tests, so its message is matched too.
func IsDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	var myErr *drv.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == errDuplicateEntry
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// Timestamp returns t as a DATETIME column stores it: UTC, whole seconds.
func Timestamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}
