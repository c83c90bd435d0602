package service

import (
	"context"
	"encoding/base64"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/lumi/internal/apperror"
	"github.com/sakif/lumi/internal/auth"
	"github.com/sakif/lumi/internal/model"
)

func b64(s string) string { return base64.StdEncoding.EncodeToString([]byte(s)) }

func (e *testEnv) createPost(t *testing.T, owner *AuthResult) string {
	t.Helper()
	res, err := e.posts.Create(context.Background(), identityOf(owner), CreatePostInput{Caption: "post"})
	require.NoError(t, err)
	return res.PostID
}

// assertLikesCount checks likes_count against the Like rows.
func (e *testEnv) assertLikesCount(t *testing.T, postID string, want int) {
	t.Helper()
	ctx := context.Background()
	post, err := e.store.Posts().GetByID(ctx, postID)
	require.NoError(t, err)
	rows, err := e.store.Posts().LikeCount(ctx, postID)
	require.NoError(t, err)
	assert.Equal(t, want, post.LikesCount, "likes_count")
	assert.Equal(t, want, rows, "like rows")
}

// =========================================================================
// CREATE
// =========================================================================

func TestCreatePost_UploadsInOrder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.register(t, "alice")

	res, err := env.posts.Create(ctx, identityOf(alice), CreatePostInput{
		Caption:   "beach",
		MediaType: "image",
		MediaFiles: []MediaFile{
			{Data: b64("first"), Type: "image/png"},
			{Data: b64("second")},
			{Data: "data:video/mp4;base64," + b64("third"), Type: "video/mp4"},
		},
		Location: "Lisbon",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, res.PostID)
	assert.False(t, res.CreatedAt.IsZero())
	assert.Equal(t, []string{
		"https://cdn.test/posts/a", "https://cdn.test/posts/b", "https://cdn.test/posts/c",
	}, res.MediaURLs)

	require.Len(t, env.blobs.objects, 3)
	assert.Equal(t, "first", string(env.blobs.objects[0].data))
	assert.Equal(t, "image/png", env.blobs.objects[0].contentType)
	assert.Equal(t, model.DefaultMediaType, env.blobs.objects[1].contentType)
	assert.Equal(t, "third", string(env.blobs.objects[2].data))

	post, err := env.store.Posts().GetByID(ctx, res.PostID)
	require.NoError(t, err)
	assert.Equal(t, res.MediaURLs, post.MediaURLs)
	assert.Equal(t, "Lisbon", post.Location)
	assert.True(t, post.IsPublic)

	user, err := env.store.Users().GetUserByID(ctx, alice.User.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, user.PostsCount)
}

func TestCreatePost_InvalidBase64UploadsNothing(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "alice")

	_, err := env.posts.Create(context.Background(), identityOf(alice), CreatePostInput{
		MediaFiles: []MediaFile{{Data: b64("ok")}, {Data: "%%% not base64"}},
	})
	require.True(t, errors.Is(err, apperror.ErrValidation), "got %v", err)
	assert.Empty(t, env.blobs.objects)

	posts, err := env.posts.List(context.Background(), alice.User.ID, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, posts)
}

func TestCreatePost_RejectsNonMediaTypes(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "alice")

	for _, typ := range []string{"text/html", "application/javascript", "image/svg+xml", "image/png; x=\"", "nonsense"} {
		t.Run(typ, func(t *testing.T) {
			_, err := env.posts.Create(context.Background(), identityOf(alice), CreatePostInput{
				MediaFiles: []MediaFile{{Data: b64("<script>alert(1)</script>"), Type: typ}},
			})
			require.True(t, errors.Is(err, apperror.ErrValidation), "got %v", err)

			var appErr *apperror.AppError
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, "media_files", appErr.Field)
		})
	}
	assert.Empty(t, env.blobs.objects)
}

func TestCreatePost_StripsTypeParameters(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "alice")

	_, err := env.posts.Create(context.Background(), identityOf(alice), CreatePostInput{
		MediaFiles: []MediaFile{{Data: b64("img"), Type: "Image/PNG; charset=binary"}},
	})
	require.NoError(t, err)
	require.Len(t, env.blobs.objects, 1)
	assert.Equal(t, "image/png", env.blobs.objects[0].contentType)
}

func TestCreatePost_Unauthorized(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.posts.Create(context.Background(), nil, CreatePostInput{Caption: "x"})
	assert.True(t, errors.Is(err, apperror.ErrUnauthorized))
}

func TestCreatePost_UnknownOwnerRollsBack(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.posts.Create(context.Background(), &auth.Identity{UserID: "ghost"}, CreatePostInput{Caption: "x"})
	require.True(t, errors.Is(err, apperror.ErrUserNotFound), "got %v", err)

	posts, err := env.posts.List(context.Background(), "", 0, 0)
	require.NoError(t, err)
	assert.Empty(t, posts)
}

func TestCreatePost_UploadFailure(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "alice")
	env.blobs.err = errors.New("bucket unavailable")

	_, err := env.posts.Create(context.Background(), identityOf(alice), CreatePostInput{
		MediaFiles: []MediaFile{{Data: b64("x")}},
	})
	require.Error(t, err)

	user, err := env.store.Users().GetUserByID(context.Background(), alice.User.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, user.PostsCount)
}

// =========================================================================
// LIST
// =========================================================================

func TestListPosts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.register(t, "alice")
	bob := env.register(t, "bob")

	private := false
	_, err := env.posts.Create(ctx, identityOf(alice), CreatePostInput{Caption: "a1"})
	require.NoError(t, err)
	_, err = env.posts.Create(ctx, identityOf(alice), CreatePostInput{Caption: "a2-private", IsPublic: &private})
	require.NoError(t, err)
	_, err = env.posts.Create(ctx, identityOf(bob), CreatePostInput{Caption: "b1"})
	require.NoError(t, err)

	feed, err := env.posts.List(ctx, "", 0, 0)
	require.NoError(t, err)
	require.Len(t, feed, 2)
	assert.Equal(t, "b1", feed[0].Caption)
	assert.Equal(t, "bob", feed[0].Author.Username)
	assert.Equal(t, "a1", feed[1].Caption)

	mine, err := env.posts.List(ctx, alice.User.ID, 0, 0)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, "a2-private", mine[0].Caption)

	page, err := env.posts.List(ctx, "", 1, -5)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "b1", page[0].Caption)
}

// =========================================================================
// TOGGLE LIKE
// =========================================================================

func TestToggleLike_TwiceRestoresCount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.register(t, "alice")
	postID := env.createPost(t, alice)

	first, err := env.posts.ToggleLike(ctx, identityOf(alice), postID)
	require.NoError(t, err)
	assert.True(t, first.Liked)
	assert.Equal(t, 1, first.LikesCount)
	env.assertLikesCount(t, postID, 1)

	second, err := env.posts.ToggleLike(ctx, identityOf(alice), postID)
	require.NoError(t, err)
	assert.False(t, second.Liked)
	assert.Equal(t, 0, second.LikesCount)
	env.assertLikesCount(t, postID, 0)
}

func TestToggleLike_Errors(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "alice")

	_, err := env.posts.ToggleLike(context.Background(), nil, "p")
	assert.True(t, errors.Is(err, apperror.ErrUnauthorized))

	_, err = env.posts.ToggleLike(context.Background(), identityOf(alice), " ")
	assert.True(t, errors.Is(err, apperror.ErrValidation))

	_, err = env.posts.ToggleLike(context.Background(), identityOf(alice), "missing")
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
}

func TestToggleLike_DeletedUserOnExistingPost(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "alice")
	postID := env.createPost(t, alice)

	_, err := env.posts.ToggleLike(context.Background(), &auth.Identity{UserID: "ghost"}, postID)
	require.True(t, errors.Is(err, apperror.ErrUserNotFound), "got %v", err)
	env.assertLikesCount(t, postID, 0)
}

func TestToggleLike_ConcurrentDistinctUsers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.register(t, "owner")
	postID := env.createPost(t, owner)

	const n = 20
	likers := make([]*auth.Identity, n)
	for i := range likers {
		likers[i] = identityOf(env.register(t, "liker"+string(rune('a'+i))))
	}

	var wg sync.WaitGroup
	results := make(chan *ToggleResult, n)
	errs := make(chan error, n)
	for _, id := range likers {
		wg.Add(1)
		go func(id *auth.Identity) {
			defer wg.Done()
			res, err := env.posts.ToggleLike(ctx, id, postID)
			if err != nil {
				errs <- err
				return
			}
			results <- res
		}(id)
	}
	wg.Wait()
	close(results)
	close(errs)

	for err := range errs {
		t.Fatalf("ToggleLike() error = %v", err)
	}
	liked := 0
	for res := range results {
		if res.Liked {
			liked++
		}
	}
	assert.Equal(t, n, liked)
	env.assertLikesCount(t, postID, n)
}

func TestToggleLike_ConcurrentSameUser(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.register(t, "alice")
	postID := env.createPost(t, alice)

	var wg sync.WaitGroup
	results := make([]*ToggleResult, 2)
	errs := make([]error, 2)
	for i := range 2 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = env.posts.ToggleLike(ctx, identityOf(alice), postID)
		}(i)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	// Serialized: one create, then one delete.
	assert.NotEqual(t, results[0].Liked, results[1].Liked)
	env.assertLikesCount(t, postID, 0)
}

// =========================================================================
// END TO END
// =========================================================================

func TestScenario_RegisterLoginPostLikeUnlike(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.auth.Register(ctx, RegisterInput{Username: "a", Email: "a@example.com", Password: "pw"})
	require.NoError(t, err)

	login, err := env.auth.Login(ctx, "a@example.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, 0, login.User.PostsCount)

	claims, err := env.tokens.Verify(login.Token)
	require.NoError(t, err)
	caller := claims.Identity()

	created, err := env.posts.Create(ctx, caller, CreatePostInput{Caption: "P"})
	require.NoError(t, err)

	verified, err := env.auth.Verify(ctx, login.Token)
	require.NoError(t, err)
	assert.Equal(t, 1, verified.User.PostsCount)

	env.assertLikesCount(t, created.PostID, 0)

	like, err := env.posts.ToggleLike(ctx, caller, created.PostID)
	require.NoError(t, err)
	assert.True(t, like.Liked)
	env.assertLikesCount(t, created.PostID, 1)

	unlike, err := env.posts.ToggleLike(ctx, caller, created.PostID)
	require.NoError(t, err)
	assert.False(t, unlike.Liked)
	env.assertLikesCount(t, created.PostID, 0)
}
