package backlog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"couchlog/internal/config"
	"couchlog/internal/titles"
)

// Store manages backlog persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the backlog database and applies migrations.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.BacklogDBPath())
}

// OpenPath opens the backlog database at an explicit path.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Enqueue durably records a completion for later replay. A completion already
// pending for the same identity is not duplicated.
func (s *Store) Enqueue(ctx context.Context, entry Entry) (*Entry, error) {
	if entry.Title == "" {
		return nil, errors.New("backlog entry requires a title")
	}
	if entry.WatchedAt.IsZero() {
		entry.WatchedAt = time.Now().UTC()
	}

	existing, err := s.find(ctx, entry)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	now := time.Now().UTC()
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO backlog_entries (
            catalog_id, media_type, title, year, season, episode,
            watched_at, attempt_count, last_error, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, 0, NULL, ?)`,
		entry.CatalogID,
		string(entry.MediaType),
		entry.Title,
		entry.Year,
		entry.Season,
		entry.Episode,
		entry.WatchedAt.UTC().Format(time.RFC3339Nano),
		now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("insert backlog entry: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *Store) find(ctx context.Context, entry Entry) (*Entry, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+entryColumns+` FROM backlog_entries
         WHERE catalog_id = ? AND title = ? AND season = ? AND episode = ?
         LIMIT 1`,
		entry.CatalogID,
		entry.Title,
		entry.Season,
		entry.Episode,
	)
	found, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find backlog entry: %w", err)
	}
	return found, nil
}

// GetByID fetches a single entry.
func (s *Store) GetByID(ctx context.Context, id int64) (*Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM backlog_entries WHERE id = ?`, id)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get backlog entry: %w", err)
	}
	return entry, nil
}

// Pending returns all entries oldest first, the order Flush replays them in.
func (s *Store) Pending(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM backlog_entries ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query backlog: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan backlog entry: %w", err)
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate backlog: %w", err)
	}
	return entries, nil
}

// Count returns the number of pending entries.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM backlog_entries").Scan(&count); err != nil {
		return 0, fmt.Errorf("count backlog: %w", err)
	}
	return count, nil
}

// Remove deletes an entry by id.
func (s *Store) Remove(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM backlog_entries WHERE id = ?", id); err != nil {
		return fmt.Errorf("remove backlog entry: %w", err)
	}
	return nil
}

// Clear deletes every entry.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM backlog_entries"); err != nil {
		return fmt.Errorf("clear backlog: %w", err)
	}
	return nil
}

func (s *Store) recordAttempt(ctx context.Context, id int64, attemptCount int, lastError string) error {
	if _, err := s.db.ExecContext(ctx,
		"UPDATE backlog_entries SET attempt_count = ?, last_error = ? WHERE id = ?",
		attemptCount, nullableString(lastError), id); err != nil {
		return fmt.Errorf("record backlog attempt: %w", err)
	}
	return nil
}

const entryColumns = `id, catalog_id, media_type, title, year, season, episode,
    watched_at, attempt_count, last_error, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*Entry, error) {
	var (
		entry     Entry
		mediaType string
		watchedAt string
		createdAt string
		lastError sql.NullString
	)
	if err := row.Scan(
		&entry.ID,
		&entry.CatalogID,
		&mediaType,
		&entry.Title,
		&entry.Year,
		&entry.Season,
		&entry.Episode,
		&watchedAt,
		&entry.AttemptCount,
		&lastError,
		&createdAt,
	); err != nil {
		return nil, err
	}

	entry.MediaType = titles.MediaType(mediaType)
	entry.LastError = lastError.String
	if ts, err := time.Parse(time.RFC3339Nano, watchedAt); err == nil {
		entry.WatchedAt = ts
	}
	if ts, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		entry.CreatedAt = ts
	}
	return &entry, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
