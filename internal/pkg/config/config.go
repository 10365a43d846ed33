package config

import (
	"io"
	"time"
)

// TimeConfig reads integer configuration values as durations.
type TimeConfig interface {
	// GetSecond returns the value for key interpreted as a number of seconds.
	GetSecond(key string) time.Duration

	// GetMinute returns the value for key interpreted as a number of minutes.
	GetMinute(key string) time.Duration
}

// Config defines the read-only configuration surface used by the application.
//
// Missing keys resolve to the zero value of the requested type; use IsSet to
// tell an explicit zero apart from an absent key.
type Config interface {
	io.Closer
	TimeConfig

	// IsSet reports whether key has a value from any source (file, env, default).
	IsSet(key string) bool

	GetInt(key string) int
	GetBool(key string) bool
	GetFloat64(key string) float64
	GetString(key string) string

	// GetBinary returns the value for key decoded from standard base64.
	// Invalid encodings yield nil.
	GetBinary(key string) []byte

	// GetArray returns the value for key split on commas, each element trimmed.
	// Empty elements are dropped.
	GetArray(key string) []string
}
