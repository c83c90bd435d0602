// Package model defines the data structures used throughout the application.
package model

import "time"

// Roles carried in the token's role claim.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is a registered account.
//
// PasswordHash is tagged json:"-" so a User can never leak its digest through
// an encoder by accident. Handlers still respond with PublicUser.
type User struct {
	ID           string    `json:"id"           db:"id"`
	Username     string    `json:"username"     db:"username"`
	Email        string    `json:"email"        db:"email"`
	PasswordHash string    `json:"-"            db:"password_hash"`
	FullName     string    `json:"full_name"    db:"full_name"`
	Role         string    `json:"role"         db:"role"`
	AvatarURL    string    `json:"avatar_url"   db:"avatar_url"`
	PostsCount   int       `json:"posts_count"  db:"posts_count"`
	CreatedAt    time.Time `json:"created_at"   db:"created_at"`
}

// PublicUser is the projection returned by register, login and verify.
type PublicUser struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	FullName   string `json:"full_name"`
	Role       string `json:"role"`
	AvatarURL  string `json:"avatar_url"`
	PostsCount int    `json:"posts_count"`
}

// Public strips the password hash.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:         u.ID,
		Username:   u.Username,
		Email:      u.Email,
		FullName:   u.FullName,
		Role:       u.Role,
		AvatarURL:  u.AvatarURL,
		PostsCount: u.PostsCount,
	}
}
