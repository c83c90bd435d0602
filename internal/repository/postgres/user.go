package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/xid"

	"github.com/sakif/lumi/internal/apperror"
	"github.com/sakif/lumi/internal/model"
	"github.com/sakif/lumi/internal/repository"
)

var _ repository.UserRepository = (*UserDB)(nil)

type UserDB struct {
	pool *pgxpool.Pool
}

const userColumns = `id, username, email, password_hash, full_name, role, avatar_url, posts_count, created_at`

func (u *UserDB) Create(ctx context.Context, user *model.User) error {
	user.ID = xid.New().String()
	user.CreatedAt = time.Now().UTC()
	user.PostsCount = 0
	if user.Role == "" {
		user.Role = model.RoleUser
	}

	_, err := u.pool.Exec(ctx,
		`INSERT INTO users (id, username, email, password_hash, full_name, role, avatar_url, posts_count, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, 0, $8)`,
		user.ID, user.Username, user.Email, user.PasswordHash,
		user.FullName, user.Role, user.AvatarURL, user.CreatedAt,
	)
	if err != nil {
		if code, constraint := pgCode(err); code == uniqueViolationCode {
			return apperror.Conflict("user", conflictField(constraint))
		}
		return fmt.Errorf("postgres: inserting user %q: %w", user.Username, err)
	}
	return nil
}

func (u *UserDB) GetByCredentials(ctx context.Context, email, passwordHash string) (*model.User, error) {
	user, err := scanUser(u.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1 AND password_hash = $2`,
		email, passwordHash,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NotFound("user", email)
		}
		return nil, fmt.Errorf("postgres: getting user by credentials: %w", err)
	}
	return user, nil
}

func (u *UserDB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	user, err := scanUser(u.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("postgres: getting user %s: %w", id, err)
	}
	return user, nil
}

func scanUser(row pgx.Row) (*model.User, error) {
	var user model.User
	err := row.Scan(
		&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.FullName,
		&user.Role, &user.AvatarURL, &user.PostsCount, &user.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}
