package model

import "time"

// DefaultMediaType is assumed for uploads that arrive without a content type.
const DefaultMediaType = "image/jpeg"

// Post is a single feed entry. LikesCount is denormalized and must always equal
// the number of Like rows pointing at the post.
type Post struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	Caption       string    `json:"caption"`
	MediaType     string    `json:"media_type"`
	MediaURLs     []string  `json:"media_urls"`
	LikesCount    int       `json:"likes_count"`
	CommentsCount int       `json:"comments_count"`
	SharesCount   int       `json:"shares_count"`
	Location      string    `json:"location"`
	IsPublic      bool      `json:"is_public"`
	CreatedAt     time.Time `json:"created_at"`
}

// Author is the compact user projection joined onto listed posts.
type Author struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	FullName  string `json:"full_name"`
	AvatarURL string `json:"avatar_url"`
}

// FeedPost is a post as it appears in a listing.
type FeedPost struct {
	ID            string    `json:"id"`
	Caption       string    `json:"caption"`
	MediaType     string    `json:"media_type"`
	MediaURLs     []string  `json:"media_urls"`
	LikesCount    int       `json:"likes_count"`
	CommentsCount int       `json:"comments_count"`
	SharesCount   int       `json:"shares_count"`
	Location      string    `json:"location"`
	CreatedAt     time.Time `json:"created_at"`
	Author        Author    `json:"author"`
}

// Like ties a user to a post. At most one exists per (UserID, PostID).
type Like struct {
	UserID    string    `json:"user_id"`
	PostID    string    `json:"post_id"`
	CreatedAt time.Time `json:"created_at"`
}
