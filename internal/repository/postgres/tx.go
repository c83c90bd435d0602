package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/xid"

	"github.com/sakif/lumi/internal/apperror"
	"github.com/sakif/lumi/internal/model"
	"github.com/sakif/lumi/internal/repository"
)

var _ repository.Tx = (*txQueries)(nil)

type txQueries struct {
	tx pgx.Tx
}

// LockPost takes a row lock on the post until the transaction ends.
func (q *txQueries) LockPost(ctx context.Context, postID string) (*model.Post, error) {
	post, err := scanPost(q.tx.QueryRow(ctx,
		`SELECT `+postColumns+` FROM posts WHERE id = $1 FOR UPDATE`, postID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NotFound("post", postID)
		}
		return nil, fmt.Errorf("postgres: locking post %s: %w", postID, err)
	}
	return post, nil
}

func (q *txQueries) HasLike(ctx context.Context, userID, postID string) (bool, error) {
	var exists bool
	err := q.tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM likes WHERE user_id = $1 AND post_id = $2)`,
		userID, postID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("postgres: looking up like (%s, %s): %w", userID, postID, err)
	}
	return exists, nil
}

func (q *txQueries) InsertLike(ctx context.Context, userID, postID string) error {
	_, err := q.tx.Exec(ctx,
		`INSERT INTO likes (user_id, post_id, created_at) VALUES ($1, $2, $3)`,
		userID, postID, time.Now().UTC(),
	)
	if err != nil {
		switch code, constraint := pgCode(err); code {
		case uniqueViolationCode:
			return apperror.Conflict("like", "")
		case foreignKeyViolationCode:
			if constraint == "likes_post_id_fkey" {
				return apperror.NotFound("post", postID)
			}
			return apperror.UserNotFound(userID)
		}
		return fmt.Errorf("postgres: inserting like (%s, %s): %w", userID, postID, err)
	}
	return nil
}

func (q *txQueries) DeleteLike(ctx context.Context, userID, postID string) error {
	tag, err := q.tx.Exec(ctx,
		`DELETE FROM likes WHERE user_id = $1 AND post_id = $2`, userID, postID)
	if err != nil {
		return fmt.Errorf("postgres: deleting like (%s, %s): %w", userID, postID, err)
	}
	return requireOneRow(tag, apperror.NotFound("like", userID+"/"+postID))
}

func (q *txQueries) AddLikes(ctx context.Context, postID string, delta int) error {
	tag, err := q.tx.Exec(ctx,
		`UPDATE posts SET likes_count = likes_count + $1 WHERE id = $2`, delta, postID)
	if err != nil {
		return fmt.Errorf("postgres: updating likes_count for post %s: %w", postID, err)
	}
	return requireOneRow(tag, apperror.NotFound("post", postID))
}

func (q *txQueries) InsertPost(ctx context.Context, post *model.Post) error {
	post.ID = xid.New().String()
	post.CreatedAt = time.Now().UTC()
	if post.MediaURLs == nil {
		post.MediaURLs = []string{}
	}

	_, err := q.tx.Exec(ctx,
		`INSERT INTO posts (id, user_id, caption, media_type, media_urls, location, is_public, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		post.ID, post.UserID, post.Caption, post.MediaType,
		post.MediaURLs, post.Location, post.IsPublic, post.CreatedAt,
	)
	if err != nil {
		if code, _ := pgCode(err); code == foreignKeyViolationCode {
			return apperror.UserNotFound(post.UserID)
		}
		return fmt.Errorf("postgres: inserting post: %w", err)
	}
	return nil
}

func (q *txQueries) IncrementPostsCount(ctx context.Context, userID string) error {
	tag, err := q.tx.Exec(ctx,
		`UPDATE users SET posts_count = posts_count + 1 WHERE id = $1`, userID)
	if err != nil {
		return fmt.Errorf("postgres: incrementing posts_count for user %s: %w", userID, err)
	}
	return requireOneRow(tag, apperror.UserNotFound(userID))
}

func requireOneRow(tag pgconn.CommandTag, notFound error) error {
	if tag.RowsAffected() == 0 {
		return notFound
	}
	return nil
}
