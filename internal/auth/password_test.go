package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDigest_KnownVector(t *testing.T) {
	// sha256("password")
	assert.Equal(t,
		"5e884898da28047151d0e56f8dc6292773603d0d6aabbdd62a11ef721d1542d8",
		Digest("password"))
}

func TestDigest_IsLowercaseHex(t *testing.T) {
	d := Digest("correct-horse-battery-staple")

	assert.Len(t, d, 64)
	assert.Equal(t, strings.ToLower(d), d)
}

// Unsalted: equal passwords give equal hashes across users.
func TestDigest_SamePasswordSameHash(t *testing.T) {
	assert.Equal(t, Digest("same-password"), Digest("same-password"))
}

func TestDigest_DifferentPasswords(t *testing.T) {
	cases := []struct {
		name string
		a, b string
	}{
		{"case", "Password", "password"},
		{"whitespace", "password ", "password"},
		{"unicode", "пароль", "密码"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.NotEqual(t, Digest(tc.a), Digest(tc.b))
		})
	}
}
