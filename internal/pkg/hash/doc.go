// Package hash provides helpers for hashing and verifying secrets.
//
// One-time codes issued by the local verification strategy are stored only as
// a salted slow hash (bcrypt or argon2id) and checked with the algorithm's own
// verify primitive. HMACSHA256 is a keyed, deterministic variant used where a
// stable lookup key is needed, such as deriving cache keys from pending ids.
package hash
