// Package postgres implements the repository interfaces on PostgreSQL via pgx.
//
// The like toggle relies on SELECT ... FOR UPDATE on the post row: concurrent
// toggles for the same post queue behind the row lock, so each one observes
// the committed result of the one before it under READ COMMITTED.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sakif/lumi/internal/repository"
)

var _ repository.Store = (*DB)(nil)

// SQLSTATE codes the repositories translate.
const (
	uniqueViolationCode     = "23505"
	foreignKeyViolationCode = "23503"
)

type DB struct {
	pool  *pgxpool.Pool
	users *UserDB
	posts *PostDB
}

// New connects to dsn, pings and migrates. maxConns <= 0 keeps the pgxpool default.
func New(ctx context.Context, dsn string, maxConns int32) (*DB, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: parsing dsn: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	cfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeCacheStatement

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: connecting: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: pinging: %w", err)
	}

	db := &DB{
		pool:  pool,
		users: &UserDB{pool: pool},
		posts: &PostDB{pool: pool},
	}
	if err := db.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: running migrations: %w", err)
	}
	return db, nil
}

func (db *DB) Close() error {
	db.pool.Close()
	return nil
}

func (db *DB) Users() repository.UserRepository { return db.users }

func (db *DB) Posts() repository.PostRepository { return db.posts }

// WithTx wraps fn in pgx.BeginTxFunc, which commits on nil and rolls back otherwise.
func (db *DB) WithTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	return pgx.BeginTxFunc(ctx, db.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return fn(&txQueries{tx: tx})
	})
}

func (db *DB) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			username      TEXT NOT NULL UNIQUE,
			email         TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			full_name     TEXT NOT NULL DEFAULT '',
			role          TEXT NOT NULL DEFAULT 'user',
			avatar_url    TEXT NOT NULL DEFAULT '',
			posts_count   INTEGER NOT NULL DEFAULT 0,
			created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS posts (
			id             TEXT PRIMARY KEY,
			user_id        TEXT NOT NULL REFERENCES users(id),
			caption        TEXT NOT NULL DEFAULT '',
			media_type     TEXT NOT NULL DEFAULT '',
			media_urls     TEXT[] NOT NULL DEFAULT '{}',
			likes_count    INTEGER NOT NULL DEFAULT 0,
			comments_count INTEGER NOT NULL DEFAULT 0,
			shares_count   INTEGER NOT NULL DEFAULT 0,
			location       TEXT NOT NULL DEFAULT '',
			is_public      BOOLEAN NOT NULL DEFAULT TRUE,
			created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_posts_created_at ON posts(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_posts_user_id ON posts(user_id)`,
		`CREATE TABLE IF NOT EXISTS likes (
			user_id    TEXT NOT NULL REFERENCES users(id),
			post_id    TEXT NOT NULL REFERENCES posts(id),
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (user_id, post_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_likes_post_id ON likes(post_id)`,
	}
	for _, stmt := range stmts {
		if _, err := db.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("executing %q: %w", firstLine(stmt), err)
		}
	}
	return nil
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}

// pgCode returns the SQLSTATE and constraint name of a server error.
func pgCode(err error) (code, constraint string) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code, pgErr.ConstraintName
	}
	return "", ""
}

// conflictField maps Postgres' default constraint names ("users_email_key") to a column.
func conflictField(constraint string) string {
	switch constraint {
	case "users_email_key":
		return "email"
	case "users_username_key":
		return "username"
	}
	return ""
}
