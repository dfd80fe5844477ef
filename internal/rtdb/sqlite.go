// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Persists leaf paths in one table; Apply commits in one transaction

package rtdb

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Leaf type tags in the nodes table.
const (
	kindString = "s"
	kindInt    = "i"
	kindBool   = "b"
)

// SQLiteStore implements Store on a SQLite database. Each row is one leaf
// path; interior nodes are implied by their descendants.
type SQLiteStore struct {
	db     *sql.DB
	keys   *keyGenerator
	hub    *watchHub
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) a store at the given path. Parent
// directories are created if needed and the schema is created on first use.
func NewSQLiteStore(path string, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "rtdb")

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		keys:   newKeyGenerator(),
		hub:    newWatchHub(logger),
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("sqlite tree store initialized", "path", path)
	return s, nil
}

func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS nodes (
			path TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			str  TEXT,
			num  INTEGER,
			flag INTEGER
		);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Get returns the leaf at path or the assembled subtree below it.
func (s *SQLiteStore) Get(ctx context.Context, path string) (any, error) {
	if _, err := splitPath(path); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT path, kind, str, num, flag FROM nodes
		WHERE path = ? OR path LIKE ? ESCAPE '\'
		ORDER BY path`,
		path, likePrefix(path))
	if err != nil {
		return nil, fmt.Errorf("querying nodes: %w", err)
	}
	defer rows.Close()

	leaves := make(map[string]any)
	for rows.Next() {
		var (
			p, kind string
			str     sql.NullString
			num     sql.NullInt64
			flag    sql.NullInt64
		)
		if err := rows.Scan(&p, &kind, &str, &num, &flag); err != nil {
			return nil, fmt.Errorf("scanning node: %w", err)
		}
		switch kind {
		case kindString:
			leaves[p] = str.String
		case kindInt:
			leaves[p] = num.Int64
		case kindBool:
			leaves[p] = flag.Int64 != 0
		default:
			return nil, fmt.Errorf("unknown node kind %q at %q", kind, p)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating nodes: %w", err)
	}
	if len(leaves) == 0 {
		return nil, ErrNotFound
	}
	return assemble(path, leaves), nil
}

// Apply commits every entry in one transaction, then notifies watchers.
func (s *SQLiteStore) Apply(ctx context.Context, u Update) error {
	if len(u) == 0 {
		return nil
	}
	writes, err := flatten(u)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	// Deletions first so a subtree replacement cannot clobber its own
	// fresh leaves.
	for path, value := range writes {
		if value != nil {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM nodes WHERE path = ? OR path LIKE ? ESCAPE '\'`,
			path, likePrefix(path)); err != nil {
			return fmt.Errorf("deleting %q: %w", path, err)
		}
	}
	for path, value := range writes {
		if value == nil {
			continue
		}
		var (
			kind string
			str  sql.NullString
			num  sql.NullInt64
			flag sql.NullInt64
		)
		switch v := value.(type) {
		case string:
			kind, str = kindString, sql.NullString{String: v, Valid: true}
		case int64:
			kind, num = kindInt, sql.NullInt64{Int64: v, Valid: true}
		case bool:
			kind = kindBool
			flag = sql.NullInt64{Valid: true}
			if v {
				flag.Int64 = 1
			}
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO nodes (path, kind, str, num, flag) VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(path) DO UPDATE SET kind=excluded.kind,
				str=excluded.str, num=excluded.num, flag=excluded.flag`,
			path, kind, str, num, flag); err != nil {
			return fmt.Errorf("writing %q: %w", path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing update: %w", err)
	}

	paths := make([]string, 0, len(writes))
	for p := range writes {
		paths = append(paths, p)
	}
	s.hub.publish(paths)
	return nil
}

// PushKey returns a fresh time-ordered child key.
func (s *SQLiteStore) PushKey() string {
	return s.keys.next()
}

// Watch registers for change events under prefix.
func (s *SQLiteStore) Watch(ctx context.Context, prefix string) (<-chan Event, func()) {
	return s.hub.watch(ctx, prefix)
}

// Close tears down watchers and closes the database.
func (s *SQLiteStore) Close() error {
	s.hub.close()
	return s.db.Close()
}

// likePrefix builds the LIKE pattern matching strict descendants of path,
// escaping LIKE metacharacters that may appear in keys.
func likePrefix(path string) string {
	escaped := make([]rune, 0, len(path))
	for _, r := range path {
		if r == '%' || r == '_' || r == '\\' {
			escaped = append(escaped, '\\')
		}
		escaped = append(escaped, r)
	}
	return string(escaped) + "/%"
}
