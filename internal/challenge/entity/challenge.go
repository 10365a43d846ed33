package entity

import (
	"fmt"
	"time"

	"github.com/shandysiswandi/stepup/internal/pkg/sms"
)

// ChallengeRequest is the pending step-up record persisted between user
// interactions. Only one strategy's issuance fields are ever populated.
type ChallengeRequest struct {
	ID       string   `json:"id"`
	State    State    `json:"state"`
	Strategy Strategy `json:"strategy"`

	Recipient       string `json:"recipient"`
	Originator      string `json:"originator"`
	CodeLength      int    `json:"code_length"`
	ValidForSeconds int    `json:"valid_for_seconds"`
	MessageTemplate string `json:"message_template"`
	AllowPush       bool   `json:"allow_push,omitempty"`
	AppKey          string `json:"app_key,omitempty"`

	// local
	SecretHash string    `json:"secret_hash,omitempty"`
	CreatedAt  time.Time `json:"created_at,omitzero"`

	// delegated
	Reference string    `json:"reference,omitempty"`
	NotBefore time.Time `json:"not_before,omitzero"`
	NotAfter  time.Time `json:"not_after,omitzero"`

	LastFailureReason string `json:"last_failure_reason,omitempty"`
	Expired           bool   `json:"expired,omitempty"`
	Invalid           bool   `json:"invalid,omitempty"`
	ResendRequested   bool   `json:"resend_requested,omitempty"`

	PipelineState string `json:"pipeline_state,omitempty"`
	Attempts      int    `json:"attempts,omitempty"`
}

// Issued reports whether a code is currently outstanding for the record.
func (c *ChallengeRequest) Issued() bool {
	switch c.Strategy {
	case StrategyLocal:
		return c.SecretHash != ""
	case StrategyDelegated:
		return c.Reference != ""
	default:
		return false
	}
}

// Window returns the validity window of the outstanding code.
func (c *ChallengeRequest) Window() (start, end time.Time) {
	if c.Strategy == StrategyLocal {
		return c.CreatedAt, c.CreatedAt.Add(time.Duration(c.ValidForSeconds) * time.Second)
	}
	return c.NotBefore, c.NotAfter
}

// InWindow reports whether now lies within the validity window, bounds included.
func (c *ChallengeRequest) InWindow(now time.Time) bool {
	start, end := c.Window()
	return !now.Before(start) && !now.After(end)
}

// ResetIssuance drops the outstanding code and every re-prompt reason so the
// record can be dispatched again.
func (c *ChallengeRequest) ResetIssuance() {
	c.SecretHash = ""
	c.CreatedAt = time.Time{}
	c.Reference = ""
	c.NotBefore = time.Time{}
	c.NotAfter = time.Time{}

	c.LastFailureReason = ""
	c.Expired = false
	c.Invalid = false
	c.ResendRequested = false
	c.Attempts = 0
}

// Validate checks the record invariants. Every store write calls it.
func (c *ChallengeRequest) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("%w: id is empty", ErrInvalidRecord)
	}
	if !c.State.IsKnown() {
		return fmt.Errorf("%w: unknown state %q", ErrInvalidRecord, c.State)
	}
	if c.Strategy != StrategyLocal && c.Strategy != StrategyDelegated {
		return fmt.Errorf("%w: unknown strategy %q", ErrInvalidRecord, c.Strategy)
	}

	if c.Recipient == "" || len(c.Recipient) > sms.MaxRecipientDigits || !isDigits(c.Recipient) {
		return fmt.Errorf("%w: recipient must be digits only", ErrInvalidRecord)
	}
	if err := sms.ValidateOriginator(c.Originator); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}

	local := c.SecretHash != "" || !c.CreatedAt.IsZero()
	delegated := c.Reference != "" || !c.NotBefore.IsZero() || !c.NotAfter.IsZero()
	switch {
	case local && delegated:
		return fmt.Errorf("%w: both local and delegated fields are set", ErrInvalidRecord)
	case local && c.Strategy != StrategyLocal, delegated && c.Strategy != StrategyDelegated:
		return fmt.Errorf("%w: issuance fields do not match strategy %s", ErrInvalidRecord, c.Strategy)
	}

	if c.Issued() {
		if start, end := c.Window(); end.Before(start) {
			return fmt.Errorf("%w: window ends before it starts", ErrInvalidRecord)
		}
	}

	switch c.State {
	case StateSent, StateInvalid, StateVerified:
		if !c.Issued() {
			return fmt.Errorf("%w: state %s without an issued code", ErrInvalidRecord, c.State)
		}
	}

	return nil
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
