package jwt

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidSigningMethod = errors.New("jwt: signing method is not HS512")
	// ErrSigningKeyTooShort rejects HS512 keys under 64 bytes.
	ErrSigningKeyTooShort = errors.New("jwt: HS512 signing key must be at least 64 bytes")
	ErrTokenExpired       = errors.New("jwt: token has expired")
	ErrInvalidToken       = errors.New("jwt: invalid token")
)

// JWT signs resume assertions and verifies pipeline credentials.
type JWT interface {
	// Generate signs a token for subject asserting the given authentication methods.
	Generate(subject string, amr ...string) (string, error)
	Verify(tokenStr string) (Claims, error)
}

type clocker interface {
	Now() time.Time
}

type generator interface {
	Generate() string
}

// Config defines the inputs for building a JWT implementation.
type Config struct {
	Secret    []byte
	Issuer    string
	Audiences []string
	TTL       time.Duration
	// Clock defaults to time.Now when nil.
	Clock clocker
	// UUID fills the jti claim when set.
	UUID generator
}

// Claims are the registered claims plus the amr claim of RFC 8176.
// A pipeline credential carries no amr; a resume assertion lists the
// methods the user completed.
type Claims struct {
	jwt.RegisteredClaims
	AMR []string `json:"amr,omitempty"`
}

// Asserts reports whether the token claims the user completed method.
func (c Claims) Asserts(method string) bool {
	return slices.Contains(c.AMR, method)
}

// IsAssertion reports whether the token is a resume assertion rather than a
// pipeline credential.
func (c Claims) IsAssertion() bool {
	return len(c.AMR) > 0
}

type authKey struct{}

// GetAuth returns the claims of the authenticated caller, or nil.
func GetAuth(ctx context.Context) *Claims {
	if clm, ok := ctx.Value(authKey{}).(Claims); ok {
		return &clm
	}
	return nil
}

func SetAuth(ctx context.Context, clm Claims) context.Context {
	return context.WithValue(ctx, authKey{}, clm)
}
