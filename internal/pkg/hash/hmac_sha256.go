package hash

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// HMACSHA256 implements the Hash interface using a keyed SHA-256 MAC.
// Output is deterministic, so it is fit for lookup keys but not for storing
// low-entropy secrets.
type HMACSHA256 struct {
	secret []byte
}

// NewHMACSHA256 creates a new hasher with a secret.
func NewHMACSHA256(secret string) *HMACSHA256 {
	return &HMACSHA256{secret: []byte(secret)}
}

// Hash returns the hex-encoded HMAC of str.
func (s *HMACSHA256) Hash(str string) ([]byte, error) {
	return []byte(s.Sum(str)), nil
}

// Sum returns the hex-encoded HMAC of str.
func (s *HMACSHA256) Sum(str string) string {
	h := hmac.New(sha256.New, s.secret)
	h.Write([]byte(str))
	return hex.EncodeToString(h.Sum(nil))
}

// Verify checks whether str matches the given hex-encoded MAC.
func (s *HMACSHA256) Verify(hashed, str string) bool {
	want, err := hex.DecodeString(hashed)
	if err != nil {
		return false
	}

	h := hmac.New(sha256.New, s.secret)
	h.Write([]byte(str))
	return hmac.Equal(want, h.Sum(nil))
}
