package otp

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"
)

const (
	// MinLength is the shortest code the provider accepts.
	MinLength = 4
	// MaxLength is the longest code the provider accepts.
	MaxLength = 10
	// DefaultLength is used when no length is configured.
	DefaultLength = 6
)

// ErrInvalidLength is returned for lengths outside [MinLength, MaxLength].
var ErrInvalidLength = errors.New("otp: code length must be between 4 and 10")

// Generator produces fixed-length numeric codes.
type Generator interface {
	Generate(length int) (string, error)
}

// Numeric is a Generator backed by a cryptographically secure source.
type Numeric struct {
	reader io.Reader
}

// NewNumeric returns a Numeric reading from crypto/rand.
func NewNumeric() *Numeric {
	return &Numeric{reader: rand.Reader}
}

// NewNumericFromReader returns a Numeric reading from r. Tests use it to make
// output deterministic; production code must use NewNumeric.
func NewNumericFromReader(r io.Reader) *Numeric {
	return &Numeric{reader: r}
}

// Generate returns a code of exactly length digits.
func (n *Numeric) Generate(length int) (string, error) {
	if length < MinLength || length > MaxLength {
		return "", ErrInvalidLength
	}

	upper := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(length)), nil)
	v, err := rand.Int(n.reader, upper)
	if err != nil {
		return "", fmt.Errorf("otp: read random: %w", err)
	}

	return fmt.Sprintf("%0*d", length, v.Int64()), nil
}
