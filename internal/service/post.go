// Package service contains the business logic layer of the application.
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (Business layer) → validates, enforces rules, orchestrates
//	Repository (Data layer)  → reads/writes the database
//
// Services take repository interfaces, never a concrete *sqlite.DB or
// *postgres.DB, so tests run them against an in-memory SQLite store and
// main.go picks the real store from config.
package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"strings"
	"time"

	"github.com/sakif/lumi/internal/apperror"
	"github.com/sakif/lumi/internal/auth"
	"github.com/sakif/lumi/internal/model"
	"github.com/sakif/lumi/internal/repository"
	"github.com/sakif/lumi/internal/storage"
)

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// PostService lists posts, creates them with media, and toggles likes.
type PostService struct {
	store  repository.Store
	blobs  storage.BlobStore
	logger *slog.Logger
}

func NewPostService(store repository.Store, blobs storage.BlobStore, logger *slog.Logger) *PostService {
	return &PostService{
		store:  store,
		blobs:  blobs,
		logger: logger,
	}
}

// MediaFile is one upload as clients send it: base64 data plus a content type.
type MediaFile struct {
	Data string `json:"data"`
	Type string `json:"type"`
}

// CreatePostInput is the create form. IsPublic defaults to true when nil.
type CreatePostInput struct {
	Caption    string
	MediaType  string
	MediaFiles []MediaFile
	Location   string
	IsPublic   *bool
}

// CreatePostResult is what the client needs to render the new post.
type CreatePostResult struct {
	PostID    string    `json:"post_id"`
	CreatedAt time.Time `json:"created_at"`
	MediaURLs []string  `json:"media_urls"`
}

// ToggleResult reports the state after a toggle.
type ToggleResult struct {
	Liked      bool `json:"liked"`
	LikesCount int  `json:"likes_count"`
}

// List returns a page of posts, newest first, each with its author.
// With a UserID it returns all of that user's posts; without, only public ones.
func (s *PostService) List(ctx context.Context, userID string, limit, offset int) ([]model.FeedPost, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	offset = max(offset, 0)

	posts, err := s.store.Posts().List(ctx, repository.PostFilter{
		UserID:      strings.TrimSpace(userID),
		ListOptions: repository.ListOptions{Limit: limit, Offset: offset},
	})
	if err != nil {
		return nil, fmt.Errorf("service/post: listing posts: %w", err)
	}
	return posts, nil
}

// Create uploads the media in order, then inserts the post and bumps the
// owner's posts_count in one transaction.
//
// All media is decoded before anything is uploaded, so a bad file fails the
// request without touching the blob store. Uploads that succeed before a
// failed transaction are left in the bucket.
func (s *PostService) Create(ctx context.Context, id *auth.Identity, in CreatePostInput) (*CreatePostResult, error) {
	if id == nil {
		return nil, apperror.Unauthorized()
	}

	payloads := make([][]byte, len(in.MediaFiles))
	types := make([]string, len(in.MediaFiles))
	for i, f := range in.MediaFiles {
		contentType, err := mediaContentType(f.Type)
		if err != nil {
			return nil, apperror.ValidationFailed("media_files",
				fmt.Sprintf("media file %d: %v", i, err))
		}
		types[i] = contentType

		data, err := decodeMedia(f.Data)
		if err != nil {
			return nil, apperror.ValidationFailed("media_files",
				fmt.Sprintf("media file %d is not valid base64", i))
		}
		if len(data) == 0 {
			return nil, apperror.ValidationFailed("media_files",
				fmt.Sprintf("media file %d is empty", i))
		}
		payloads[i] = data
	}

	urls := make([]string, 0, len(payloads))
	for i, data := range payloads {
		url, err := s.blobs.Put(ctx, data, types[i])
		if err != nil {
			return nil, fmt.Errorf("service/post: uploading media %d: %w", i, err)
		}
		urls = append(urls, url)
	}

	post := &model.Post{
		UserID:    id.UserID,
		Caption:   in.Caption,
		MediaType: in.MediaType,
		MediaURLs: urls,
		Location:  in.Location,
		IsPublic:  in.IsPublic == nil || *in.IsPublic,
	}
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		if err := tx.InsertPost(ctx, post); err != nil {
			return err
		}
		return tx.IncrementPostsCount(ctx, id.UserID)
	})
	if err != nil {
		if errors.Is(err, apperror.ErrUserNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("service/post: creating post: %w", err)
	}

	s.logger.Info("post created",
		slog.String("postID", post.ID),
		slog.String("userID", id.UserID),
		slog.Int("media", len(urls)),
	)
	return &CreatePostResult{PostID: post.ID, CreatedAt: post.CreatedAt, MediaURLs: urls}, nil
}

// ToggleLike likes the post if the caller has not, and unlikes it if they have.
//
// The existence check, the like row and the likes_count update share one
// transaction that first locks the post, so two concurrent toggles by the
// same user always end in one like and one unlike.
func (s *PostService) ToggleLike(ctx context.Context, id *auth.Identity, postID string) (*ToggleResult, error) {
	if id == nil {
		return nil, apperror.Unauthorized()
	}
	postID = strings.TrimSpace(postID)
	if postID == "" {
		return nil, apperror.ValidationFailed("post_id", "post_id is required")
	}

	var result ToggleResult
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		post, err := tx.LockPost(ctx, postID)
		if err != nil {
			return err
		}
		liked, err := tx.HasLike(ctx, id.UserID, postID)
		if err != nil {
			return err
		}

		if liked {
			if err := tx.DeleteLike(ctx, id.UserID, postID); err != nil {
				return err
			}
			if err := tx.AddLikes(ctx, postID, -1); err != nil {
				return err
			}
			result = ToggleResult{Liked: false, LikesCount: post.LikesCount - 1}
			return nil
		}

		if err := tx.InsertLike(ctx, id.UserID, postID); err != nil {
			return err
		}
		if err := tx.AddLikes(ctx, postID, 1); err != nil {
			return err
		}
		result = ToggleResult{Liked: true, LikesCount: post.LikesCount + 1}
		return nil
	})
	if err != nil {
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			return nil, err
		}
		return nil, fmt.Errorf("service/post: toggling like on %s: %w", postID, err)
	}

	s.logger.Info("like toggled",
		slog.String("postID", postID),
		slog.String("userID", id.UserID),
		slog.Bool("liked", result.Liked),
	)
	return &result, nil
}

// mediaContentType normalizes a client-supplied media type. Only image and
// video types are stored; SVG is refused because browsers run its scripts.
// Parameters are dropped, so the result is safe to derive a file extension from.
func mediaContentType(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return model.DefaultMediaType, nil
	}
	mediaType, _, err := mime.ParseMediaType(raw)
	if err != nil {
		return "", fmt.Errorf("invalid type %q", raw)
	}
	if !strings.HasPrefix(mediaType, "image/") && !strings.HasPrefix(mediaType, "video/") {
		return "", fmt.Errorf("type %q is not an image or video", mediaType)
	}
	if strings.HasPrefix(mediaType, "image/svg") {
		return "", fmt.Errorf("type %q is not allowed", mediaType)
	}
	return mediaType, nil
}

// decodeMedia accepts raw standard base64 or a data URL
// ("data:image/png;base64,....").
func decodeMedia(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "data:") {
		_, payload, ok := strings.Cut(s, ",")
		if !ok {
			return nil, errors.New("data URL without payload")
		}
		s = payload
	}
	return base64.StdEncoding.DecodeString(s)
}
