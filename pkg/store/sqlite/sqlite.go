// Package sqlite stores leads in a local SQLite database through the pure Go
// modernc.org/sqlite driver. The schema comes from the embedded migrations.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	sqlitedriver "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/telekom/leadform/pkg/lead"
	"github.com/telekom/leadform/pkg/policy"
	"github.com/telekom/leadform/pkg/store/migrations"
)

type Store struct {
	db  *sql.DB
	log *zap.SugaredLogger
	now func() time.Time
}

// Open opens (or creates) the database at dsn and applies pending migrations.
func Open(ctx context.Context, dsn string, log *zap.SugaredLogger) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// a single connection keeps ":memory:" databases shared and serializes writers
	db.SetMaxOpenConns(1)

	if err := Migrate(ctx, db, log); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, log: log.Named("sqlite-store"), now: time.Now}, nil
}

// Migrate applies the sqlite migrations not yet recorded in schema_migrations.
func Migrate(ctx context.Context, db *sql.DB, log *zap.SugaredLogger) error {
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
    version    TEXT PRIMARY KEY,
    applied_at TEXT NOT NULL
)`); err != nil {
		return fmt.Errorf("creating schema_migrations: %w", err)
	}

	ms, err := migrations.For("sqlite")
	if err != nil {
		return err
	}
	for _, m := range ms {
		var applied int
		if err := db.QueryRowContext(ctx, `SELECT COUNT(1) FROM schema_migrations WHERE version = ?`, m.Version).Scan(&applied); err != nil {
			return fmt.Errorf("checking migration %s: %w", m.Version, err)
		}
		if applied > 0 {
			continue
		}
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("applying migration %s: %w", m.Version, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations(version, applied_at) VALUES(?, ?)`,
			m.Version, time.Now().UTC().Format(time.RFC3339)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("recording migration %s: %w", m.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		log.Infow("Applied migration", "version", m.Version)
	}
	return nil
}

func (s *Store) Insert(ctx context.Context, l lead.Lead) (lead.Lead, error) {
	l.ID = uuid.NewString()
	l.CreatedAt = s.now().UTC()

	var sessionID sql.NullString
	if l.SessionID != "" {
		sessionID = sql.NullString{String: l.SessionID, Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO leads(id, name, email, industry, session_id, created_at) VALUES(?,?,?,?,?,?)`,
		l.ID, l.Name, l.Email, l.Industry, sessionID, l.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		if isUniqueViolation(err) {
			return lead.Lead{}, fmt.Errorf("%w: %s", lead.ErrDuplicateEmail, lead.MaskEmail(l.Email))
		}
		return lead.Lead{}, fmt.Errorf("inserting lead: %w", err)
	}
	return l, nil
}

// List pushes the row-level policy into the WHERE clause.
func (s *Store) List(ctx context.Context, v policy.Viewer) ([]lead.Lead, error) {
	all, sessionID, none := policy.Scope(v)
	if none {
		return []lead.Lead{}, nil
	}

	query := `SELECT id, name, email, industry, session_id, created_at FROM leads`
	var args []any
	if !all {
		query += ` WHERE session_id = ?`
		args = append(args, sessionID)
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing leads: %w", err)
	}
	defer rows.Close()

	out := []lead.Lead{}
	for rows.Next() {
		var (
			l         lead.Lead
			sessionID sql.NullString
			createdAt string
		)
		if err := rows.Scan(&l.ID, &l.Name, &l.Email, &l.Industry, &sessionID, &createdAt); err != nil {
			return nil, err
		}
		l.SessionID = sessionID.String
		if l.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			s.log.Warnw("Unparseable created_at", "id", l.ID, "value", createdAt)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

func isUniqueViolation(err error) bool {
	var serr *sqlitedriver.Error
	if errors.As(err, &serr) {
		return serr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE || serr.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
