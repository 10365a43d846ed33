package uid

import "github.com/google/uuid"

// UUID generates time-ordered (v7) UUID strings. Suitable for correlation
// and token ids where sortability helps when reading logs.
type UUID struct{}

// NewUUID returns a UUID generator.
func NewUUID() *UUID {
	return &UUID{}
}

// Generate returns a new UUID string.
func (u *UUID) Generate() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString() // fallback: uuidV4
	}
	return id.String()
}

// RandomUUID generates fully random (v4) UUID strings. Pending challenge ids
// are bearer handles, so they must not leak issuance time.
type RandomUUID struct{}

// NewRandomUUID returns a v4 UUID generator.
func NewRandomUUID() *RandomUUID {
	return &RandomUUID{}
}

// Generate returns a new random UUID string.
func (*RandomUUID) Generate() string {
	return uuid.NewString()
}

// IsUUID reports whether s is a canonical, hyphenated UUID.
func IsUUID(s string) bool {
	if len(s) != 36 {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}
