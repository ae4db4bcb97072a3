// Package friendstore persists friend records, important dates, manual
// busy blocks, and the call log in a local SQLite database.
package friendstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"closer/internal/model"
	"closer/internal/util"
)

var validate = validator.New()

// DB wraps the SQLite handle.
type DB struct{ sql *sql.DB }

func Open(path string) (*DB, error) {
	d, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := d.Exec(`PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL; PRAGMA foreign_keys=ON;`); err != nil {
		return nil, err
	}
	db := &DB{sql: d}
	if err := db.migrate(); err != nil {
		_ = d.Close()
		return nil, err
	}
	return db, nil
}

func (d *DB) Close() error { return d.sql.Close() }

func (d *DB) migrate() error {
	_, err := d.sql.Exec(`
	CREATE TABLE IF NOT EXISTS friends (
	  id TEXT PRIMARY KEY,
	  name TEXT NOT NULL,
	  phone TEXT,
	  timezone TEXT,
	  city TEXT,
	  cadence TEXT NOT NULL,
	  priority TEXT,
	  last_called_at INTEGER,
	  weekday_start TEXT,
	  weekday_end TEXT,
	  weekend_start TEXT,
	  weekend_end TEXT,
	  created_at INTEGER NOT NULL,
	  updated_at INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS important_dates (
	  id TEXT PRIMARY KEY,
	  friend_id TEXT NOT NULL REFERENCES friends(id) ON DELETE CASCADE,
	  label TEXT NOT NULL,
	  month INTEGER NOT NULL,
	  day INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_dates_friend ON important_dates(friend_id);
	CREATE TABLE IF NOT EXISTS busy_blocks (
	  id TEXT PRIMARY KEY,
	  day TEXT NOT NULL,
	  start_time TEXT NOT NULL,
	  end_time TEXT NOT NULL,
	  created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_busy_day ON busy_blocks(day);
	CREATE TABLE IF NOT EXISTS call_log (
	  id INTEGER PRIMARY KEY AUTOINCREMENT,
	  friend_id TEXT NOT NULL,
	  ts INTEGER NOT NULL,
	  kind TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_call_ts ON call_log(ts);
	CREATE TABLE IF NOT EXISTS kv (
	  key TEXT PRIMARY KEY,
	  value TEXT NOT NULL
	);
	`)
	return err
}

// CreateFriend validates and inserts a new friend, assigning ID and
// timestamps. The stored record is returned.
func (d *DB) CreateFriend(ctx context.Context, f model.Friend, now time.Time) (model.Friend, error) {
	f.Name = util.NormalizeWhitespace(f.Name)
	if f.Cadence == "" {
		f.Cadence = model.CadenceMonthly
	}
	if err := validate.Struct(f); err != nil {
		return model.Friend{}, fmt.Errorf("friend: %w", err)
	}
	if _, err := f.DayPolicy(); err != nil {
		return model.Friend{}, err
	}
	f.ID = uuid.NewString()
	f.CreatedAt = now.UTC()
	f.UpdatedAt = now.UTC()
	_, err := d.sql.ExecContext(ctx, `INSERT INTO friends
	  (id, name, phone, timezone, city, cadence, priority, last_called_at,
	   weekday_start, weekday_end, weekend_start, weekend_end, created_at, updated_at)
	  VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		f.ID, f.Name, f.Phone, f.Timezone, f.City, string(f.Cadence), f.Priority,
		nullUnix(f.LastCalledAt), f.WeekdayStart, f.WeekdayEnd, f.WeekendStart, f.WeekendEnd,
		f.CreatedAt.Unix(), f.UpdatedAt.Unix())
	if err != nil {
		return model.Friend{}, err
	}
	return f, nil
}

// SaveFriend validates and replaces an existing friend record.
func (d *DB) SaveFriend(ctx context.Context, f model.Friend, now time.Time) error {
	if f.ID == "" {
		return errors.New("friend id is empty")
	}
	if err := validate.Struct(f); err != nil {
		return fmt.Errorf("friend: %w", err)
	}
	if _, err := f.DayPolicy(); err != nil {
		return err
	}
	res, err := d.sql.ExecContext(ctx, `UPDATE friends SET
	  name=?, phone=?, timezone=?, city=?, cadence=?, priority=?, last_called_at=?,
	  weekday_start=?, weekday_end=?, weekend_start=?, weekend_end=?, updated_at=?
	  WHERE id=?`,
		f.Name, f.Phone, f.Timezone, f.City, string(f.Cadence), f.Priority,
		nullUnix(f.LastCalledAt), f.WeekdayStart, f.WeekdayEnd, f.WeekendStart, f.WeekendEnd,
		now.UTC().Unix(), f.ID)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("friend %s not found", f.ID)
	}
	return nil
}

func (d *DB) GetFriend(ctx context.Context, id string) (model.Friend, error) {
	row := d.sql.QueryRowContext(ctx, friendSelect+` WHERE id=?`, id)
	return scanFriend(row)
}

// ListFriends returns all friends, newest first.
func (d *DB) ListFriends(ctx context.Context) ([]model.Friend, error) {
	rows, err := d.sql.QueryContext(ctx, friendSelect+` ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Friend
	for rows.Next() {
		f, err := scanFriend(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (d *DB) DeleteFriend(ctx context.Context, id string) error {
	_, err := d.sql.ExecContext(ctx, `DELETE FROM friends WHERE id=?`, id)
	return err
}

// MarkContacted updates the friend's last-contact timestamp and appends a
// call-log row. kind is "call" or "message".
func (d *DB) MarkContacted(ctx context.Context, friendID, kind string, now time.Time) error {
	res, err := d.sql.ExecContext(ctx, `UPDATE friends SET last_called_at=?, updated_at=? WHERE id=?`,
		now.UTC().Unix(), now.UTC().Unix(), friendID)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("friend %s not found", friendID)
	}
	_, err = d.sql.ExecContext(ctx, `INSERT INTO call_log(friend_id, ts, kind) VALUES(?,?,?)`,
		friendID, now.UTC().Unix(), kind)
	return err
}

// CountContactsWithin counts call-log rows in [start, end).
func (d *DB) CountContactsWithin(ctx context.Context, start, end time.Time) (int, error) {
	row := d.sql.QueryRowContext(ctx, `SELECT COUNT(1) FROM call_log WHERE ts>=? AND ts<?`,
		start.UTC().Unix(), end.UTC().Unix())
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// AddImportantDate validates and inserts a yearly recurring date.
func (d *DB) AddImportantDate(ctx context.Context, date model.ImportantDate) (model.ImportantDate, error) {
	if err := validate.Struct(date); err != nil {
		return model.ImportantDate{}, fmt.Errorf("important date: %w", err)
	}
	date.ID = uuid.NewString()
	_, err := d.sql.ExecContext(ctx, `INSERT INTO important_dates(id, friend_id, label, month, day) VALUES(?,?,?,?,?)`,
		date.ID, date.FriendID, date.Label, date.Month, date.Day)
	if err != nil {
		return model.ImportantDate{}, err
	}
	return date, nil
}

// ListImportantDates returns dates for one friend (or all when friendID is
// empty), ordered by month then day.
func (d *DB) ListImportantDates(ctx context.Context, friendID string) ([]model.ImportantDate, error) {
	q := `SELECT id, friend_id, label, month, day FROM important_dates`
	args := []any{}
	if friendID != "" {
		q += ` WHERE friend_id=?`
		args = append(args, friendID)
	}
	q += ` ORDER BY month, day`
	rows, err := d.sql.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.ImportantDate
	for rows.Next() {
		var id model.ImportantDate
		if err := rows.Scan(&id.ID, &id.FriendID, &id.Label, &id.Month, &id.Day); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (d *DB) DeleteImportantDate(ctx context.Context, id string) error {
	_, err := d.sql.ExecContext(ctx, `DELETE FROM important_dates WHERE id=?`, id)
	return err
}

// SaveKV stores an opaque value under key, replacing any previous one.
// Used for refresh snapshots and cursors.
func (d *DB) SaveKV(ctx context.Context, key, value string) error {
	_, err := d.sql.ExecContext(ctx, `INSERT INTO kv(key, value) VALUES(?,?)
	  ON CONFLICT(key) DO UPDATE SET value=excluded.value`, key, value)
	return err
}

// LoadKV returns the value for key, or "" when absent.
func (d *DB) LoadKV(ctx context.Context, key string) (string, error) {
	row := d.sql.QueryRowContext(ctx, `SELECT value FROM kv WHERE key=?`, key)
	var v string
	if err := row.Scan(&v); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return v, nil
}

const friendSelect = `SELECT id, name, phone, timezone, city, cadence, priority,
  last_called_at, weekday_start, weekday_end, weekend_start, weekend_end,
  created_at, updated_at FROM friends`

type rowScanner interface{ Scan(dest ...any) error }

func scanFriend(r rowScanner) (model.Friend, error) {
	var f model.Friend
	var cadence string
	var last sql.NullInt64
	var created, updated int64
	err := r.Scan(&f.ID, &f.Name, &f.Phone, &f.Timezone, &f.City, &cadence, &f.Priority,
		&last, &f.WeekdayStart, &f.WeekdayEnd, &f.WeekendStart, &f.WeekendEnd, &created, &updated)
	if err != nil {
		return f, err
	}
	f.Cadence = model.Cadence(cadence)
	if last.Valid {
		t := time.Unix(last.Int64, 0).UTC()
		f.LastCalledAt = &t
	}
	f.CreatedAt = time.Unix(created, 0).UTC()
	f.UpdatedAt = time.Unix(updated, 0).UTC()
	return f, nil
}

func nullUnix(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Unix()
}
