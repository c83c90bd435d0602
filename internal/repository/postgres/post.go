package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sakif/lumi/internal/apperror"
	"github.com/sakif/lumi/internal/model"
	"github.com/sakif/lumi/internal/repository"
)

var _ repository.PostRepository = (*PostDB)(nil)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

type PostDB struct {
	pool *pgxpool.Pool
}

const feedQuery = `
	SELECT p.id, p.caption, p.media_type, p.media_urls, p.likes_count,
	       p.comments_count, p.shares_count, p.location, p.created_at,
	       u.id, u.username, u.full_name, u.avatar_url
	FROM posts p
	JOIN users u ON p.user_id = u.id`

// List returns posts newest first. Without a UserID only public posts are returned.
func (p *PostDB) List(ctx context.Context, filter repository.PostFilter) ([]model.FeedPost, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	offset := max(filter.Offset, 0)

	var (
		rows pgx.Rows
		err  error
	)
	if filter.UserID != "" {
		rows, err = p.pool.Query(ctx,
			feedQuery+` WHERE p.user_id = $1 ORDER BY p.created_at DESC, p.id DESC LIMIT $2 OFFSET $3`,
			filter.UserID, limit, offset)
	} else {
		rows, err = p.pool.Query(ctx,
			feedQuery+` WHERE p.is_public = TRUE ORDER BY p.created_at DESC, p.id DESC LIMIT $1 OFFSET $2`,
			limit, offset)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: listing posts: %w", err)
	}
	defer rows.Close()

	posts := make([]model.FeedPost, 0, limit)
	for rows.Next() {
		var fp model.FeedPost
		if err := rows.Scan(
			&fp.ID, &fp.Caption, &fp.MediaType, &fp.MediaURLs, &fp.LikesCount,
			&fp.CommentsCount, &fp.SharesCount, &fp.Location, &fp.CreatedAt,
			&fp.Author.ID, &fp.Author.Username, &fp.Author.FullName, &fp.Author.AvatarURL,
		); err != nil {
			return nil, fmt.Errorf("postgres: scanning post row: %w", err)
		}
		if fp.MediaURLs == nil {
			fp.MediaURLs = []string{}
		}
		posts = append(posts, fp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterating posts: %w", err)
	}
	return posts, nil
}

func (p *PostDB) GetByID(ctx context.Context, id string) (*model.Post, error) {
	post, err := scanPost(p.pool.QueryRow(ctx, `SELECT `+postColumns+` FROM posts WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NotFound("post", id)
		}
		return nil, fmt.Errorf("postgres: getting post %s: %w", id, err)
	}
	return post, nil
}

func (p *PostDB) LikeCount(ctx context.Context, postID string) (int, error) {
	var n int
	if err := p.pool.QueryRow(ctx, `SELECT COUNT(*) FROM likes WHERE post_id = $1`, postID).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: counting likes for post %s: %w", postID, err)
	}
	return n, nil
}

const postColumns = `id, user_id, caption, media_type, media_urls, likes_count,
	comments_count, shares_count, location, is_public, created_at`

func scanPost(row pgx.Row) (*model.Post, error) {
	var post model.Post
	err := row.Scan(
		&post.ID, &post.UserID, &post.Caption, &post.MediaType, &post.MediaURLs, &post.LikesCount,
		&post.CommentsCount, &post.SharesCount, &post.Location, &post.IsPublic, &post.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if post.MediaURLs == nil {
		post.MediaURLs = []string{}
	}
	return &post, nil
}
