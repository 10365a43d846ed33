// Package messaging provides a broker-agnostic API for publishing messages.
//
// Business code depends on Publisher only, so the broker (currently NATS)
// can be swapped without touching use-case code.
package messaging
