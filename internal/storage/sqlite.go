package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"dailyverse/internal/schedule"
	logx "dailyverse/pkg/logx"
)

//go:embed schema.sql
var schemaSQL string

const recordColumns = `recipient_id, content_version, time_of_day, timezone, rotation_cursor,
	last_delivered_date, created_at, updated_at, unreachable_since, unreachable_reason`

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (schedule.Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One connection: every read-modify-write is serialised through it.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = FULL")

	var check string
	if err := db.QueryRow("PRAGMA quick_check").Scan(&check); err != nil || check != "ok" {
		_ = db.Close()
		if err == nil {
			err = errors.New(check)
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, path, err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, err
	}

	st := &sqliteStore{db: db, log: log}
	var n int
	_ = db.QueryRow(`SELECT COUNT(*) FROM schedules`).Scan(&n)
	log.Info("schedule store loaded", logx.String("path", path), logx.Int("recipients", n))
	return st, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (schedule.Record, error) {
	var (
		rec                        schedule.Record
		tod, created, updated      string
		lastDate, unreachableSince sql.NullString
		unreachableReason          sql.NullString
	)
	if err := row.Scan(&rec.RecipientID, &rec.ContentVersion, &tod, &rec.Timezone, &rec.RotationCursor,
		&lastDate, &created, &updated, &unreachableSince, &unreachableReason); err != nil {
		return schedule.Record{}, err
	}

	var err error
	if rec.TimeOfDay, err = schedule.ParseTimeOfDay(tod); err != nil {
		return schedule.Record{}, fmt.Errorf("%w: recipient %s: %v", ErrCorrupt, rec.RecipientID, err)
	}
	if lastDate.Valid && lastDate.String != "" {
		d, err := schedule.ParseDate(lastDate.String)
		if err != nil {
			return schedule.Record{}, fmt.Errorf("%w: recipient %s: %v", ErrCorrupt, rec.RecipientID, err)
		}
		rec.LastDelivered = &d
	}
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	rec.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
	if unreachableSince.Valid && unreachableSince.String != "" {
		if t, err := time.Parse(time.RFC3339Nano, unreachableSince.String); err == nil {
			rec.UnreachableSince = &t
		}
	}
	rec.UnreachableReason = unreachableReason.String
	return rec, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func putRecord(ctx context.Context, ex execer, rec schedule.Record) error {
	var lastDate, unreachableSince any
	if rec.LastDelivered != nil {
		lastDate = rec.LastDelivered.String()
	}
	if rec.UnreachableSince != nil {
		unreachableSince = rec.UnreachableSince.UTC().Format(time.RFC3339Nano)
	}
	_, err := ex.ExecContext(ctx,
		`INSERT INTO schedules(`+recordColumns+`) VALUES(?,?,?,?,?,?,?,?,?,?)
		 ON CONFLICT(recipient_id) DO UPDATE SET
		   content_version=excluded.content_version,
		   time_of_day=excluded.time_of_day,
		   timezone=excluded.timezone,
		   rotation_cursor=excluded.rotation_cursor,
		   last_delivered_date=excluded.last_delivered_date,
		   updated_at=excluded.updated_at,
		   unreachable_since=excluded.unreachable_since,
		   unreachable_reason=excluded.unreachable_reason`,
		rec.RecipientID, rec.ContentVersion, rec.TimeOfDay.String(), rec.Timezone, rec.RotationCursor,
		lastDate, rec.CreatedAt.UTC().Format(time.RFC3339Nano), rec.UpdatedAt.UTC().Format(time.RFC3339Nano),
		unreachableSince, nullStr(rec.UnreachableReason),
	)
	return err
}

func (s *sqliteStore) Get(ctx context.Context, recipientID string) (schedule.Record, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM schedules WHERE recipient_id = ?`, recipientID)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return schedule.Record{}, false, nil
	}
	if err != nil {
		return schedule.Record{}, false, err
	}
	return rec, true, nil
}

func (s *sqliteStore) List(ctx context.Context) ([]schedule.Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+recordColumns+` FROM schedules ORDER BY recipient_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []schedule.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *sqliteStore) Upsert(ctx context.Context, rec schedule.Record) error {
	if strings.TrimSpace(rec.RecipientID) == "" {
		return errors.New("recipient id is required")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = rec.CreatedAt
	}
	return putRecord(ctx, s.db, rec)
}

func (s *sqliteStore) Update(ctx context.Context, recipientID string, fn func(rec *schedule.Record, found bool) error) error {
	if strings.TrimSpace(recipientID) == "" {
		return errors.New("recipient id is required")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM schedules WHERE recipient_id = ?`, recipientID)
	cur, err := scanRecord(row)
	found := true
	if errors.Is(err, sql.ErrNoRows) {
		cur, found = schedule.Record{}, false
	} else if err != nil {
		return err
	}

	next := cur.Clone()
	if err := fn(&next, found); err != nil {
		if errors.Is(err, schedule.ErrNoChange) {
			return nil
		}
		return err
	}
	next.RecipientID = recipientID
	if next.CreatedAt.IsZero() {
		next.CreatedAt = time.Now().UTC()
	}
	if next.UpdatedAt.IsZero() {
		next.UpdatedAt = next.CreatedAt
	}
	if err := putRecord(ctx, tx, next); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *sqliteStore) Delete(ctx context.Context, recipientID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM schedules WHERE recipient_id = ?`, recipientID)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
