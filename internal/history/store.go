package history

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

// Source records how a completion reached the catalog service.
type Source string

const (
	// SourceLive means the completion was reported while the service was
	// reachable.
	SourceLive Source = "live"
	// SourceBacklog means the completion was replayed from the backlog.
	SourceBacklog Source = "backlog"
)

// Record is one reported completion.
type Record struct {
	ID        int64
	CatalogID int64
	MediaType titles.MediaType
	Title     string
	Year      int
	Season    int
	Episode   int
	WatchedAt time.Time
	Source    Source
	CreatedAt time.Time
}

// Store manages watch-history persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the history database and applies migrations.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.HistoryDBPath())
}

// OpenPath opens the history database at an explicit path.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
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

// Add appends a record.
func (s *Store) Add(ctx context.Context, record Record) (*Record, error) {
	if record.CatalogID == 0 {
		return nil, errors.New("history record requires a catalog id")
	}
	if record.WatchedAt.IsZero() {
		record.WatchedAt = time.Now().UTC()
	}
	if record.Source == "" {
		record.Source = SourceLive
	}

	now := time.Now().UTC()
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO watch_history (
            catalog_id, media_type, title, year, season, episode,
            watched_at, source, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.CatalogID,
		string(record.MediaType),
		record.Title,
		record.Year,
		record.Season,
		record.Episode,
		record.WatchedAt.UTC().Format(time.RFC3339Nano),
		string(record.Source),
		now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("insert history record: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	record.ID = id
	record.CreatedAt = now
	return &record, nil
}

// Has reports whether a completion for the given identity was already
// recorded.
func (s *Store) Has(ctx context.Context, catalogID int64, season, episode int) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM watch_history
         WHERE catalog_id = ? AND season = ? AND episode = ?`,
		catalogID, season, episode).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check history: %w", err)
	}
	return count > 0, nil
}

// Recent returns up to limit records, newest first. A non-positive limit
// returns everything.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	query := `SELECT id, catalog_id, media_type, title, year, season, episode,
        watched_at, source, created_at
        FROM watch_history ORDER BY watched_at DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			record    Record
			mediaType string
			watchedAt string
			source    string
			createdAt string
		)
		if err := rows.Scan(
			&record.ID,
			&record.CatalogID,
			&mediaType,
			&record.Title,
			&record.Year,
			&record.Season,
			&record.Episode,
			&watchedAt,
			&source,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan history record: %w", err)
		}
		record.MediaType = titles.MediaType(mediaType)
		record.Source = Source(source)
		if ts, err := time.Parse(time.RFC3339Nano, watchedAt); err == nil {
			record.WatchedAt = ts
		}
		if ts, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			record.CreatedAt = ts
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return records, nil
}

// Count returns the number of records.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM watch_history").Scan(&count); err != nil {
		return 0, fmt.Errorf("count history: %w", err)
	}
	return count, nil
}
