// Package sqlite implements the repository interfaces using SQLite as the storage backend.
//
// WHY modernc.org/sqlite INSTEAD OF github.com/mattn/go-sqlite3?
// mattn/go-sqlite3 uses CGo, which means you need a C compiler installed and
// cross-compilation becomes painful. modernc.org/sqlite is a pure Go translation
// of the SQLite C code: no C compiler needed, works everywhere Go works.
//
// TRANSACTIONS:
// Every repository method runs against a querier, which is either the pool
// (*sql.DB) or a single transaction (*sql.Tx). WithinTx hands the callback a
// *DB bound to the transaction, so the same methods compose into one atomic
// unit: authorise, cascade, write, commit.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sqlitedriver "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/sakif/obsidian/internal/apperror"
	"github.com/sakif/obsidian/internal/repository"
)

// querier is the subset of *sql.DB and *sql.Tx the repository methods use.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// DB wraps a sql.DB connection pool and provides repository methods.
// A DB returned by WithinTx shares the pool but routes every query through tx.
type DB struct {
	conn *sql.DB
	q    querier
	tx   *sql.Tx
}

// compile-time check that *DB implements every repository contract
var _ repository.BoardRepository = (*DB)(nil)

// New opens the SQLite database at dbPath and runs migrations.
//
// dbPath examples:
//   - "data/obsidian.db" → file-based database (persistent)
//   - ":memory:"         → in-memory database (tests)
//
// SINGLE CONNECTION:
// PRAGMAs (foreign_keys in particular) are per-connection, an in-memory
// database exists only on the connection that created it, and SQLite
// serialises writers anyway. Pinning the pool to one connection keeps all
// three facts true for every query.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL keeps the file consistent if the process dies mid-write.
	if dbPath != ":memory:" {
		if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
			conn.Close()
			return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
		}
	}

	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn, q: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// WithinTx implements repository.BoardRepository.
func (db *DB) WithinTx(ctx context.Context, fn func(tx repository.BoardRepository) error) error {
	return db.atomic(ctx, func(txdb *DB) error { return fn(txdb) })
}

// atomic runs fn inside a transaction, reusing the current one if db is
// already transaction-bound. Cascading deletes call this so they are atomic
// whether or not the caller opened a transaction.
func (db *DB) atomic(ctx context.Context, fn func(txdb *DB) error) error {
	if db.tx != nil {
		return fn(db)
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning transaction: %w", err)
	}

	if err := fn(&DB{conn: db.conn, q: tx, tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return fmt.Errorf("sqlite: rolling back after %v: %w", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing transaction: %w", err)
	}
	return nil
}

// migrate creates the schema. CREATE ... IF NOT EXISTS makes it idempotent.
//
// The table for rows is called board_rows: ROWS is an SQL keyword
// (window frames) and quoting it everywhere is error-prone.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			email         TEXT NOT NULL UNIQUE,
			name          TEXT NOT NULL,
			password_hash TEXT NOT NULL,
			created_at    DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS projects (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			name        TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			owner_id    INTEGER NOT NULL REFERENCES users(id),
			created_at  DATETIME NOT NULL,
			updated_at  DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_projects_owner_id ON projects(owner_id);

		CREATE TABLE IF NOT EXISTS project_members (
			project_id INTEGER NOT NULL REFERENCES projects(id),
			user_id    INTEGER NOT NULL REFERENCES users(id),
			PRIMARY KEY (project_id, user_id)
		);
		CREATE INDEX IF NOT EXISTS idx_project_members_user_id ON project_members(user_id);

		CREATE TABLE IF NOT EXISTS board_rows (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			name       TEXT NOT NULL,
			project_id INTEGER NOT NULL REFERENCES projects(id),
			created_at DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_board_rows_project_id ON board_rows(project_id);

		CREATE TABLE IF NOT EXISTS work_items (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			title       TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			row_id      INTEGER NOT NULL REFERENCES board_rows(id),
			created_at  DATETIME NOT NULL,
			updated_at  DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_work_items_row_id ON work_items(row_id);

		CREATE TABLE IF NOT EXISTS comments (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			content      TEXT NOT NULL,
			user_id      INTEGER NOT NULL REFERENCES users(id),
			work_item_id INTEGER NOT NULL REFERENCES work_items(id),
			created_at   DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_comments_work_item_id ON comments(work_item_id, created_at);

		CREATE TABLE IF NOT EXISTS files (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			filename     TEXT NOT NULL,
			path         TEXT NOT NULL,
			work_item_id INTEGER NOT NULL REFERENCES work_items(id),
			created_at   DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_files_work_item_id ON files(work_item_id);
	`)
	if err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

// isUniqueViolation reports whether err is SQLite's UNIQUE/PRIMARY KEY
// constraint failure.
func isUniqueViolation(err error) bool {
	var se *sqlitedriver.Error
	if !errors.As(err, &se) {
		return false
	}
	code := se.Code()
	return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}

// isForeignKeyViolation reports whether err is SQLite's FOREIGN KEY constraint failure.
func isForeignKeyViolation(err error) bool {
	var se *sqlitedriver.Error
	return errors.As(err, &se) && se.Code() == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY
}

// checkAffected turns "0 rows affected" into a NotFound error.
func checkAffected(result sql.Result, resource string, id int64) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound(resource, id)
	}
	return nil
}
