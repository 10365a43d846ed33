// Package seal encrypts small records at rest with AES-256-GCM.
//
// Every ciphertext is bound to a Scope through GCM additional data, so a
// record sealed for one pending challenge cannot be replayed under another
// key in the store.
package seal

// Purpose separates ciphertexts sealed for different uses.
type Purpose string

const (
	// PurposeChallengeRecord scopes encryption to pending challenge records.
	PurposeChallengeRecord Purpose = "challenge_record"
)

// Scope binds a ciphertext to its owner and use.
type Scope struct {
	// Subject identifies the owner, e.g. the pending challenge id.
	Subject string
	// Purpose is the encryption purpose.
	Purpose Purpose
}

// Sealer encrypts and decrypts scoped payloads.
type Sealer interface {
	Seal(plaintext []byte, scope Scope) ([]byte, error)
	Open(ciphertext []byte, scope Scope) ([]byte, error)
}

// KeyProvider provides raw AES-256 keys (32 bytes).
type KeyProvider interface {
	Key(scope Scope) ([]byte, error)
}
