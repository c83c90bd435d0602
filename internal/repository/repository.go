// Package repository declares the storage contracts the services depend on.
//
// Two implementations live in subpackages: sqlite (embedded, the default) and
// postgres. Both enforce the same unique constraints and both run Tx callbacks
// inside a single database transaction.
package repository

import (
	"context"

	"github.com/sakif/lumi/internal/model"
)

type ListOptions struct {
	Limit  int
	Offset int
}

// PostFilter narrows a feed listing. An empty UserID means the public feed.
type PostFilter struct {
	UserID string
	ListOptions
}

// UserRepository reads and writes user accounts.
type UserRepository interface {
	// Create inserts the user, filling ID and CreatedAt. A duplicate username
	// or email returns an apperror.ErrConflict.
	Create(ctx context.Context, user *model.User) error
	// GetByCredentials matches email AND password hash in one lookup.
	// Returns apperror.ErrNotFound when nothing matches.
	GetByCredentials(ctx context.Context, email, passwordHash string) (*model.User, error)
	GetUserByID(ctx context.Context, id string) (*model.User, error)
}

// PostRepository holds the read side of posts.
type PostRepository interface {
	List(ctx context.Context, filter PostFilter) ([]model.FeedPost, error)
	GetByID(ctx context.Context, id string) (*model.Post, error)
	// LikeCount counts Like rows for a post. Used to audit the denormalized counter.
	LikeCount(ctx context.Context, postID string) (int, error)
}

// Tx is the set of writes that must commit together.
type Tx interface {
	// LockPost returns the post and holds it for the rest of the transaction,
	// so concurrent toggles on the same post are serialized.
	// Returns apperror.ErrNotFound if the post does not exist.
	LockPost(ctx context.Context, postID string) (*model.Post, error)
	HasLike(ctx context.Context, userID, postID string) (bool, error)
	InsertLike(ctx context.Context, userID, postID string) error
	DeleteLike(ctx context.Context, userID, postID string) error
	AddLikes(ctx context.Context, postID string, delta int) error

	InsertPost(ctx context.Context, post *model.Post) error
	IncrementPostsCount(ctx context.Context, userID string) error
}

// Store is the full storage surface. WithTx commits when fn returns nil and
// rolls back otherwise, releasing the connection on every path.
type Store interface {
	Users() UserRepository
	Posts() PostRepository
	WithTx(ctx context.Context, fn func(tx Tx) error) error
	Close() error
}
