package validator

// Validator validates structs annotated with `validate` tags.
type Validator interface {
	// Validate returns nil when data satisfies its rules. On failure the
	// error is a V10ValidationError keyed by field name.
	Validate(data any) error
}
