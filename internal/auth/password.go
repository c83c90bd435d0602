package auth

import (
	"crypto/sha256"
	"encoding/hex"
)

// Digest returns the lowercase hex SHA-256 of plaintext.
//
// There is no per-user salt: two accounts with the same password store the same
// hash. Existing rows were written this way and login matches on email and
// digest in one query, so changing the scheme means migrating stored hashes.
//
// TODO: move to a salted, slow KDF together with a rehash-on-login migration.
func Digest(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}
