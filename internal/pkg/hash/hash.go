package hash

// Hash hashes secrets for storage and verifies candidates against a stored hash.
type Hash interface {
	// Hash returns the encoded hash of str.
	Hash(str string) ([]byte, error)
	// Verify reports whether str matches hashed. Implementations compare in
	// constant time.
	Verify(hashed, str string) bool
}

const (
	// AlgorithmBcrypt selects Bcrypt.
	AlgorithmBcrypt = "bcrypt"
	// AlgorithmArgon2id selects Argon2id.
	AlgorithmArgon2id = "argon2id"
)
