package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/lumi/internal/apperror"
	"github.com/sakif/lumi/internal/model"
	"github.com/sakif/lumi/internal/repository"
)

var _ repository.Tx = (*txQueries)(nil)

// txQueries runs every statement on one *sql.Tx.
type txQueries struct {
	tx *sql.Tx
}

// LockPost reads the post inside the transaction. The pool has a single
// connection, so holding the transaction already excludes every other writer.
func (q *txQueries) LockPost(ctx context.Context, postID string) (*model.Post, error) {
	post, err := scanPost(q.tx.QueryRowContext(ctx, `SELECT `+postColumns+` FROM posts WHERE id = ?`, postID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("post", postID)
		}
		return nil, fmt.Errorf("sqlite: locking post %s: %w", postID, err)
	}
	return post, nil
}

func (q *txQueries) HasLike(ctx context.Context, userID, postID string) (bool, error) {
	var one int
	err := q.tx.QueryRowContext(ctx,
		`SELECT 1 FROM likes WHERE user_id = ? AND post_id = ?`, userID, postID,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("sqlite: looking up like (%s, %s): %w", userID, postID, err)
	}
	return true, nil
}

func (q *txQueries) InsertLike(ctx context.Context, userID, postID string) error {
	_, err := q.tx.ExecContext(ctx,
		`INSERT INTO likes (user_id, post_id, created_at) VALUES (?, ?, ?)`,
		userID, postID, time.Now().UTC(),
	)
	if err != nil {
		if _, ok := uniqueViolation(err); ok {
			return apperror.Conflict("like", "")
		}
		// LockPost has already seen the post in this transaction, so the
		// only reference that can dangle is the user.
		if foreignKeyViolation(err) {
			return apperror.UserNotFound(userID)
		}
		return fmt.Errorf("sqlite: inserting like (%s, %s): %w", userID, postID, err)
	}
	return nil
}

func (q *txQueries) DeleteLike(ctx context.Context, userID, postID string) error {
	res, err := q.tx.ExecContext(ctx,
		`DELETE FROM likes WHERE user_id = ? AND post_id = ?`, userID, postID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: deleting like (%s, %s): %w", userID, postID, err)
	}
	return requireOneRow(res, apperror.NotFound("like", userID+"/"+postID))
}

// AddLikes adjusts likes_count in place; the read-modify-write happens in SQLite.
func (q *txQueries) AddLikes(ctx context.Context, postID string, delta int) error {
	res, err := q.tx.ExecContext(ctx,
		`UPDATE posts SET likes_count = likes_count + ? WHERE id = ?`, delta, postID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating likes_count for post %s: %w", postID, err)
	}
	return requireOneRow(res, apperror.NotFound("post", postID))
}

// InsertPost fills ID and CreatedAt and writes the row.
func (q *txQueries) InsertPost(ctx context.Context, post *model.Post) error {
	post.ID = xid.New().String()
	post.CreatedAt = time.Now().UTC()

	mediaJSON, err := encodeMediaURLs(post.MediaURLs)
	if err != nil {
		return fmt.Errorf("sqlite: %w", err)
	}

	_, err = q.tx.ExecContext(ctx,
		`INSERT INTO posts (id, user_id, caption, media_type, media_urls, location, is_public, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		post.ID,
		post.UserID,
		post.Caption,
		post.MediaType,
		mediaJSON,
		post.Location,
		post.IsPublic,
		post.CreatedAt,
	)
	if err != nil {
		if foreignKeyViolation(err) {
			return apperror.UserNotFound(post.UserID)
		}
		return fmt.Errorf("sqlite: inserting post: %w", err)
	}
	return nil
}

func (q *txQueries) IncrementPostsCount(ctx context.Context, userID string) error {
	res, err := q.tx.ExecContext(ctx,
		`UPDATE users SET posts_count = posts_count + 1 WHERE id = ?`, userID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: incrementing posts_count for user %s: %w", userID, err)
	}
	return requireOneRow(res, apperror.UserNotFound(userID))
}

// requireOneRow turns "0 rows affected" into notFound.
func requireOneRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
