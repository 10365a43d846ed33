// Package jwt is helpers for working with JSON Web Tokens (JWT).
//
// It includes:
//   - A Claims type (registered claims + authentication methods).
//   - A symmetric HS512 implementation for generating and verifying tokens.
//   - Context helpers for storing and retrieving authenticated claims.
//
// The same implementation verifies the pipeline's bearer tokens and signs the
// resume assertions handed back to it.
package jwt
