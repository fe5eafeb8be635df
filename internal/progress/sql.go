package progress

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "github.com/lib/pq"  // PostgreSQL driver
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// dialect captures the differences between the SQL backends.
type dialect struct {
	name   string
	driver string
	bind   func(n int) string // Placeholder for the nth argument (1-indexed)
}

var (
	sqliteDialect = dialect{
		name:   "sqlite",
		driver: "sqlite",
		bind:   func(int) string { return "?" },
	}
	postgresDialect = dialect{
		name:   "postgres",
		driver: "postgres",
		bind:   func(n int) string { return "$" + strconv.Itoa(n) },
	}
)

const createTable = `CREATE TABLE IF NOT EXISTS progress (
	storage_key  TEXT NOT NULL,
	lesson_id    TEXT NOT NULL,
	completed_at TIMESTAMP NOT NULL,
	PRIMARY KEY (storage_key, lesson_id)
)`

// SQLStore keeps the set in a progress table, one row per completed
// lesson. Rows for lessons that stay completed keep their original
// completed_at.
type SQLStore struct {
	db    *sql.DB
	d     dialect
	retry RetryConfig
}

// NewSQLiteStore opens (or creates) a SQLite database at path.
func NewSQLiteStore(ctx context.Context, path string) (*SQLStore, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite progress store: path is required")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, NewStoreError("sqlite", "open", err)
		}
	}

	db, err := sql.Open(sqliteDialect.driver, path)
	if err != nil {
		return nil, NewStoreError("sqlite", "open", err)
	}
	// SQLite allows a single writer
	db.SetMaxOpenConns(1)

	return newSQLStore(ctx, db, sqliteDialect)
}

// NewPostgresStore connects to PostgreSQL using dsn.
func NewPostgresStore(ctx context.Context, dsn string) (*SQLStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres progress store: database connection required (set progress.dsn or DATABASE_URL env)")
	}

	db, err := sql.Open(postgresDialect.driver, dsn)
	if err != nil {
		return nil, NewStoreError("postgres", "open", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	return newSQLStore(ctx, db, postgresDialect)
}

func newSQLStore(ctx context.Context, db *sql.DB, d dialect) (*SQLStore, error) {
	s := &SQLStore{db: db, d: d, retry: DefaultRetryConfig()}

	err := withRetry(ctx, d.name, "connect", s.retry, func(ctx context.Context) error {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := db.PingContext(pingCtx); err != nil {
			return NewStoreError(d.name, "connect", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	if _, err := db.ExecContext(ctx, createTable); err != nil {
		db.Close()
		return nil, NewStoreError(d.name, "migrate", err)
	}
	return s, nil
}

// Backend returns the dialect name.
func (s *SQLStore) Backend() string { return s.d.name }

func (s *SQLStore) Load(ctx context.Context) (Set, error) {
	var set Set
	err := withRetry(ctx, s.d.name, "load", s.retry, func(ctx context.Context) error {
		var err error
		set, err = s.load(ctx, s.db)
		return err
	})
	return set, err
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *SQLStore) load(ctx context.Context, q querier) (Set, error) {
	query := "SELECT lesson_id FROM progress WHERE storage_key = " + s.d.bind(1)
	rows, err := q.QueryContext(ctx, query, StorageKey)
	if err != nil {
		return nil, NewStoreError(s.d.name, "load", err)
	}
	defer rows.Close()

	set := NewSet()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, NewStoreError(s.d.name, "load", err)
		}
		set.Add(id)
	}
	if err := rows.Err(); err != nil {
		return nil, NewStoreError(s.d.name, "load", err)
	}
	return set, nil
}

func (s *SQLStore) Save(ctx context.Context, set Set) error {
	return withRetry(ctx, s.d.name, "save", s.retry, func(ctx context.Context) error {
		return s.save(ctx, set)
	})
}

func (s *SQLStore) save(ctx context.Context, set Set) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return NewStoreError(s.d.name, "save", err)
	}
	defer tx.Rollback()

	existing, err := s.load(ctx, tx)
	if err != nil {
		return err
	}

	del := fmt.Sprintf("DELETE FROM progress WHERE storage_key = %s AND lesson_id = %s", s.d.bind(1), s.d.bind(2))
	for id := range existing {
		if set.Has(id) {
			continue
		}
		if _, err := tx.ExecContext(ctx, del, StorageKey, id); err != nil {
			return NewStoreError(s.d.name, "save", err)
		}
	}

	ins := fmt.Sprintf("INSERT INTO progress (storage_key, lesson_id, completed_at) VALUES (%s, %s, %s)",
		s.d.bind(1), s.d.bind(2), s.d.bind(3))
	now := time.Now().UTC()
	for _, id := range set.Sorted() {
		if existing.Has(id) {
			continue
		}
		if _, err := tx.ExecContext(ctx, ins, StorageKey, id, now); err != nil {
			return NewStoreError(s.d.name, "save", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return NewStoreError(s.d.name, "save", err)
	}
	return nil
}

// CompletedAt returns when lessonID was completed.
func (s *SQLStore) CompletedAt(ctx context.Context, lessonID string) (time.Time, bool, error) {
	query := fmt.Sprintf("SELECT completed_at FROM progress WHERE storage_key = %s AND lesson_id = %s", s.d.bind(1), s.d.bind(2))
	var at time.Time
	err := s.db.QueryRowContext(ctx, query, StorageKey, lessonID).Scan(&at)
	if err == sql.ErrNoRows {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, NewStoreError(s.d.name, "load", err)
	}
	return at, true, nil
}

// Close releases the database connection
func (s *SQLStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
