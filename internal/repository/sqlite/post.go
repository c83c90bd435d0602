package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sakif/lumi/internal/apperror"
	"github.com/sakif/lumi/internal/model"
	"github.com/sakif/lumi/internal/repository"
)

// compile-time check that *PostDB implements repository.PostRepository
var _ repository.PostRepository = (*PostDB)(nil)

// Page size bounds shared by both listing paths.
const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// PostDB is the read side of the posts and likes tables. Writes go through txQueries.
type PostDB struct {
	conn *sql.DB
}

// List returns posts newest first, each joined with its author.
// Without a UserID filter only public posts are returned.
func (p *PostDB) List(ctx context.Context, filter repository.PostFilter) ([]model.FeedPost, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	const base = `
		SELECT p.id, p.caption, p.media_type, p.media_urls, p.likes_count,
		       p.comments_count, p.shares_count, p.location, p.created_at,
		       u.id, u.username, u.full_name, u.avatar_url
		FROM posts p
		JOIN users u ON p.user_id = u.id`

	var (
		rows *sql.Rows
		err  error
	)
	if filter.UserID != "" {
		rows, err = p.conn.QueryContext(ctx,
			base+` WHERE p.user_id = ? ORDER BY p.created_at DESC, p.id DESC LIMIT ? OFFSET ?`,
			filter.UserID, limit, offset,
		)
	} else {
		rows, err = p.conn.QueryContext(ctx,
			base+` WHERE p.is_public = 1 ORDER BY p.created_at DESC, p.id DESC LIMIT ? OFFSET ?`,
			limit, offset,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing posts: %w", err)
	}
	defer rows.Close()

	posts := make([]model.FeedPost, 0, limit)
	for rows.Next() {
		var (
			fp        model.FeedPost
			mediaJSON string
		)
		if err := rows.Scan(
			&fp.ID, &fp.Caption, &fp.MediaType, &mediaJSON, &fp.LikesCount,
			&fp.CommentsCount, &fp.SharesCount, &fp.Location, &fp.CreatedAt,
			&fp.Author.ID, &fp.Author.Username, &fp.Author.FullName, &fp.Author.AvatarURL,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning post row: %w", err)
		}
		if fp.MediaURLs, err = decodeMediaURLs(mediaJSON); err != nil {
			return nil, fmt.Errorf("sqlite: post %s: %w", fp.ID, err)
		}
		posts = append(posts, fp)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating posts: %w", err)
	}

	return posts, nil
}

// GetByID retrieves a single post.
func (p *PostDB) GetByID(ctx context.Context, id string) (*model.Post, error) {
	post, err := scanPost(p.conn.QueryRowContext(ctx, `SELECT `+postColumns+` FROM posts WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("post", id)
		}
		return nil, fmt.Errorf("sqlite: getting post %s: %w", id, err)
	}
	return post, nil
}

// LikeCount counts the Like rows that reference postID.
func (p *PostDB) LikeCount(ctx context.Context, postID string) (int, error) {
	var n int
	err := p.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM likes WHERE post_id = ?`, postID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sqlite: counting likes for post %s: %w", postID, err)
	}
	return n, nil
}

const postColumns = `id, user_id, caption, media_type, media_urls, likes_count,
	comments_count, shares_count, location, is_public, created_at`

func scanPost(row *sql.Row) (*model.Post, error) {
	var (
		post      model.Post
		mediaJSON string
	)
	err := row.Scan(
		&post.ID, &post.UserID, &post.Caption, &post.MediaType, &mediaJSON, &post.LikesCount,
		&post.CommentsCount, &post.SharesCount, &post.Location, &post.IsPublic, &post.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if post.MediaURLs, err = decodeMediaURLs(mediaJSON); err != nil {
		return nil, fmt.Errorf("post %s: %w", post.ID, err)
	}
	return &post, nil
}

func encodeMediaURLs(urls []string) (string, error) {
	if urls == nil {
		urls = []string{}
	}
	b, err := json.Marshal(urls)
	if err != nil {
		return "", fmt.Errorf("encoding media_urls: %w", err)
	}
	return string(b), nil
}

func decodeMediaURLs(s string) ([]string, error) {
	urls := []string{}
	if s == "" {
		return urls, nil
	}
	if err := json.Unmarshal([]byte(s), &urls); err != nil {
		return nil, fmt.Errorf("decoding media_urls: %w", err)
	}
	return urls, nil
}
