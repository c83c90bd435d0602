// Package auth issues and verifies the signed identity tokens used by the API.
//
// TOKEN FLOW:
//  1. POST /api/auth {action: "register"|"login"} returns a JWT in the body
//  2. The client sends it back on every call in the X-Auth-Token header
//     (Authorization: Bearer <token> is accepted too)
//  3. Middleware verifies the signature and expiry and puts the Identity in
//     the request context
//  4. POST /api/auth {action: "verify"} re-fetches the user row, so profile
//     data always comes from the database and never from the claims
//
// JWT STRUCTURE (three base64-encoded parts separated by dots):
//
//	HEADER.PAYLOAD.SIGNATURE
//	- Header: {"alg":"HS256","typ":"JWT"}
//	- Payload: {"user_id":"...","username":"...","role":"user","exp":1234567890}
//	- Signature: HMAC-SHA256(header+"."+payload, secretKey)
//
// There is no refresh token and no revocation list. A token is good until exp.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sakif/lumi/internal/apperror"
	"github.com/sakif/lumi/internal/model"
)

// TokenTTL is the lifetime of every token issued on register or login.
const TokenTTL = 30 * 24 * time.Hour

// MinSecretLength is the shortest signing secret NewTokenService accepts.
const MinSecretLength = 16

// TokenService signs and verifies HS256 tokens with a single secret.
//
// The secret is injected once at startup and never changes for the life of the
// process. A TokenService is safe for concurrent use.
type TokenService struct {
	secret []byte
	now    func() time.Time
}

// NewTokenService creates a TokenService with the given secret.
// Example: JWT_SECRET_KEY=$(openssl rand -hex 32)
func NewTokenService(secret string) (*TokenService, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("auth: JWT secret must be at least %d characters", MinSecretLength)
	}
	return &TokenService{secret: []byte(secret), now: time.Now}, nil
}

// Claims is the token payload. Field names match what existing clients decode.
type Claims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// Identity is the caller resolved from a verified token.
type Identity struct {
	UserID   string
	Username string
	Role     string
}

// Identity returns the caller described by the claims.
func (c *Claims) Identity() *Identity {
	return &Identity{UserID: c.UserID, Username: c.Username, Role: c.Role}
}

// Issue signs a token for user that expires after TokenTTL.
func (s *TokenService) Issue(user *model.User) (string, error) {
	return s.IssueWithDuration(user, TokenTTL)
}

// IssueWithDuration signs a token with a custom lifetime.
// Tests use a negative duration to mint already-expired tokens.
func (s *TokenService) IssueWithDuration(user *model.User, d time.Duration) (string, error) {
	now := s.now()
	c := Claims{
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// Verify parses tokenStr and checks its signature and expiry.
//
// An elapsed exp returns apperror.TokenExpired. Everything else that is wrong
// with the token (bad signature, wrong algorithm, garbage input, missing
// user_id) returns apperror.TokenInvalid. Callers rely on the two staying
// distinct.
//
// ALGORITHM CONFUSION:
// jwt.WithValidMethods pins HS256, so a token claiming "none" or RS256 is
// rejected before the key is ever used.
func (s *TokenService) Verify(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&Claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperror.TokenExpired()
		}
		return nil, apperror.TokenInvalid()
	}

	c, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || c.UserID == "" {
		return nil, apperror.TokenInvalid()
	}
	return c, nil
}
