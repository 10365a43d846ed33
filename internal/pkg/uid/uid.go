// Package uid generates string identifiers.
package uid

// StringID generates string identifiers.
type StringID interface {
	Generate() string
}
