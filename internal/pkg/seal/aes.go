package seal

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Ciphertext layout:
//
//	[0..1]   uint16 version
//	[2..13]  nonce
//	[14..]   gcm.Seal output (ciphertext + tag)
const (
	formatVersion uint16 = 1
	nonceSize            = 12
	keyLen               = 32
	headerLen            = 2 + nonceSize
)

var (
	// ErrNotConfigured indicates a missing key provider.
	ErrNotConfigured = errors.New("seal: not configured")
	// ErrPlaintextEmpty indicates an empty plaintext input.
	ErrPlaintextEmpty = errors.New("seal: plaintext is empty")
	// ErrInvalidKeyLength indicates the key is not 32 bytes.
	ErrInvalidKeyLength = errors.New("seal: invalid key length")
	// ErrCiphertextTooShort indicates a truncated ciphertext.
	ErrCiphertextTooShort = errors.New("seal: ciphertext too short")
	// ErrUnsupportedVersion indicates an unknown ciphertext layout.
	ErrUnsupportedVersion = errors.New("seal: unsupported ciphertext version")
	// ErrOpenFailed hides whether the key, the scope or the data was wrong.
	ErrOpenFailed = errors.New("seal: open failed")
	// ErrMissingStaticKey indicates a missing static key.
	ErrMissingStaticKey = errors.New("seal: missing static key")
)

// AESGCM implements Sealer using AES-256-GCM.
type AESGCM struct {
	keys KeyProvider
}

// NewAESGCM constructs an AES-GCM sealer.
func NewAESGCM(keys KeyProvider) *AESGCM {
	return &AESGCM{keys: keys}
}

func (e *AESGCM) aead(scope Scope) (cipher.AEAD, error) {
	if e == nil || e.keys == nil {
		return nil, ErrNotConfigured
	}

	key, err := e.keys.Key(scope)
	if err != nil {
		return nil, fmt.Errorf("seal: key provider: %w", err)
	}
	if len(key) != keyLen {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidKeyLength, len(key), keyLen)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("seal: aes init: %w", err)
	}
	return cipher.NewGCMWithNonceSize(block, nonceSize)
}

// Seal encrypts plaintext, binding the result to scope.
func (e *AESGCM) Seal(plaintext []byte, scope Scope) ([]byte, error) {
	if len(plaintext) == 0 {
		return nil, ErrPlaintextEmpty
	}

	gcm, err := e.aead(scope)
	if err != nil {
		return nil, err
	}

	out := make([]byte, headerLen, headerLen+len(plaintext)+gcm.Overhead())
	binary.BigEndian.PutUint16(out[0:2], formatVersion)
	if _, err := io.ReadFull(rand.Reader, out[2:headerLen]); err != nil {
		return nil, fmt.Errorf("seal: nonce: %w", err)
	}

	return gcm.Seal(out, out[2:headerLen], plaintext, scopeAAD(scope)), nil
}

// Open decrypts ciphertext sealed under the same scope.
func (e *AESGCM) Open(ciphertext []byte, scope Scope) ([]byte, error) {
	if len(ciphertext) <= headerLen {
		return nil, ErrCiphertextTooShort
	}
	if v := binary.BigEndian.Uint16(ciphertext[0:2]); v != formatVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, v)
	}

	gcm, err := e.aead(scope)
	if err != nil {
		return nil, err
	}

	plain, err := gcm.Open(nil, ciphertext[2:headerLen], ciphertext[headerLen:], scopeAAD(scope))
	if err != nil {
		return nil, ErrOpenFailed
	}
	return plain, nil
}

// scopeAAD hashes a labelled canonical form so the AAD has a fixed length and
// no separator ambiguity.
func scopeAAD(s Scope) []byte {
	sum := sha256.Sum256([]byte("subject=" + s.Subject + "\npurpose=" + string(s.Purpose) + "\n"))
	return sum[:]
}

// StaticKeyProvider returns the same key for every scope.
type StaticKeyProvider struct {
	// KeyBytes is the raw AES key material.
	KeyBytes []byte
}

// Key returns a copy of the static key.
func (p StaticKeyProvider) Key(_ Scope) ([]byte, error) {
	if len(p.KeyBytes) == 0 {
		return nil, ErrMissingStaticKey
	}
	k := make([]byte, len(p.KeyBytes))
	copy(k, p.KeyBytes)
	return k, nil
}
