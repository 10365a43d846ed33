package entity

import "errors"

var (
	// ErrConfiguration marks settings the module cannot start with.
	ErrConfiguration = errors.New("challenge: invalid configuration")

	ErrMissingAttribute    = errors.New("challenge: mobile number attribute is missing")
	ErrInvalidPhoneNumber  = errors.New("challenge: invalid phone number")
	ErrInteractionRequired = errors.New("challenge: user interaction required")

	// ErrInconsistentState means a step was reached that the record's state
	// cannot lead to. It points at an integration bug, not at user input.
	ErrInconsistentState = errors.New("challenge: inconsistent state")

	// ErrInvalidRecord is returned by ChallengeRequest.Validate.
	ErrInvalidRecord = errors.New("challenge: invalid record")
)
