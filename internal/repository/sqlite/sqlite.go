// Package sqlite implements the repository interfaces on an embedded SQLite database.
//
// modernc.org/sqlite is a pure Go translation of SQLite, so the binary builds
// without CGo. Importing it registers the "sqlite" driver with database/sql;
// its Error type is also used to recognise constraint failures.
//
// SQLite allows a single writer at a time. The pool is capped at one connection,
// which makes every transaction run to completion before the next one starts:
// two toggles on the same post always observe each other's result. It also
// keeps ":memory:" databases coherent, since each SQLite connection would
// otherwise get its own private in-memory database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/sakif/lumi/internal/repository"
)

// compile-time check that *DB implements repository.Store
var _ repository.Store = (*DB)(nil)

// DB owns the connection pool and hands out the per-table repositories.
type DB struct {
	conn  *sql.DB
	users *UserDB
	posts *PostDB
}

// New opens the database at dbPath and runs migrations.
//
// dbPath examples:
//   - "data/lumi.db" → file-based database (persistent)
//   - ":memory:"     → in-memory database (tests)
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

	// WAL has no effect on ":memory:" but keeps readers of a file DB from
	// blocking on the writer when the file is opened by other tools.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	// Foreign keys are OFF by default in SQLite.
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{
		conn:  conn,
		users: &UserDB{conn: conn},
		posts: &PostDB{conn: conn},
	}

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

func (db *DB) Users() repository.UserRepository { return db.users }

func (db *DB) Posts() repository.PostRepository { return db.posts }

// WithTx runs fn inside one transaction. The deferred Rollback is a no-op after
// a successful Commit and releases the connection on every error path.
func (db *DB) WithTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&txQueries{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing transaction: %w", err)
	}
	return nil
}

// migrate creates the schema. CREATE ... IF NOT EXISTS keeps it idempotent.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			username      TEXT NOT NULL UNIQUE,
			email         TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			full_name     TEXT NOT NULL DEFAULT '',
			role          TEXT NOT NULL DEFAULT 'user',
			avatar_url    TEXT NOT NULL DEFAULT '',
			posts_count   INTEGER NOT NULL DEFAULT 0,
			created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	// media_urls holds a JSON array; SQLite has no array type.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS posts (
			id             TEXT PRIMARY KEY,
			user_id        TEXT NOT NULL REFERENCES users(id),
			caption        TEXT NOT NULL DEFAULT '',
			media_type     TEXT NOT NULL DEFAULT '',
			media_urls     TEXT NOT NULL DEFAULT '[]',
			likes_count    INTEGER NOT NULL DEFAULT 0,
			comments_count INTEGER NOT NULL DEFAULT 0,
			shares_count   INTEGER NOT NULL DEFAULT 0,
			location       TEXT NOT NULL DEFAULT '',
			is_public      BOOLEAN NOT NULL DEFAULT 1,
			created_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_posts_created_at ON posts(created_at);
		CREATE INDEX IF NOT EXISTS idx_posts_user_id ON posts(user_id);
	`)
	if err != nil {
		return fmt.Errorf("creating posts table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS likes (
			user_id    TEXT NOT NULL REFERENCES users(id),
			post_id    TEXT NOT NULL REFERENCES posts(id),
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (user_id, post_id)
		);
		CREATE INDEX IF NOT EXISTS idx_likes_post_id ON likes(post_id);
	`)
	if err != nil {
		return fmt.Errorf("creating likes table: %w", err)
	}

	return nil
}

// uniqueViolation reports whether err is a UNIQUE failure and, if so, which
// column SQLite named. modernc formats these as
// "constraint failed: UNIQUE constraint failed: users.email (2067)".
func uniqueViolation(err error) (string, bool) {
	var se *sqlite.Error
	if !errors.As(err, &se) || se.Code()&0xff != sqlite3.SQLITE_CONSTRAINT {
		return "", false
	}
	msg := se.Error()
	i := strings.LastIndex(msg, "UNIQUE constraint failed: ")
	if i < 0 {
		return "", false
	}

	col := msg[i+len("UNIQUE constraint failed: "):]
	col, _, _ = strings.Cut(col, " ")
	col, _, _ = strings.Cut(col, ",")
	if _, name, ok := strings.Cut(col, "."); ok {
		return name, true
	}
	return col, true
}

// foreignKeyViolation reports a FOREIGN KEY failure (e.g. a post for a deleted user).
func foreignKeyViolation(err error) bool {
	var se *sqlite.Error
	return errors.As(err, &se) &&
		se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT &&
		strings.Contains(se.Error(), "FOREIGN KEY constraint failed")
}
