package sms

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shandysiswandi/stepup/internal/pkg/otp"
	"github.com/shandysiswandi/stepup/internal/pkg/uid"
)

// CodePlaceholder is substituted with the one-time code in message templates.
const CodePlaceholder = "{code}"

// MaxRecipientDigits is the longest recipient the provider accepts.
const MaxRecipientDigits = 16

var (
	// ErrProvider matches every *ProviderError via errors.Is.
	ErrProvider = errors.New("sms: provider failure")
	// ErrPrecondition wraps request violations detected before any network I/O.
	ErrPrecondition = errors.New("sms: precondition failed")
	// ErrConfiguration is returned by constructors for unusable settings.
	ErrConfiguration = errors.New("sms: invalid configuration")

	ErrInvalidRecipient   = errors.New("sms: recipient must be numeric with at most 16 digits")
	ErrInvalidCodeLength  = errors.New("sms: code length must be between 4 and 10")
	ErrInvalidValidity    = errors.New("sms: validity must be positive")
	ErrMissingPlaceholder = errors.New("sms: message must contain the " + CodePlaceholder + " placeholder")
	ErrInvalidAppKey      = errors.New("sms: app key must be a UUID when push is allowed")
	ErrInvalidReference   = errors.New("sms: reference must be a UUID")
	ErrEmptyMessage       = errors.New("sms: message body is empty")
)

// ChallengeSender creates provider-side challenges and verifies codes against them.
type ChallengeSender interface {
	SendChallenge(ctx context.Context, req SendChallengeRequest) (*Receipt, error)
	VerifyChallenge(ctx context.Context, reference, code string) (bool, error)
}

// MessageSender delivers a plain text message.
type MessageSender interface {
	SendMessage(ctx context.Context, msg TextMessage) error
}

// SendChallengeRequest describes a provider-generated challenge.
type SendChallengeRequest struct {
	Recipient       string
	Originator      string
	CodeLength      int
	ValidForSeconds int
	MessageTemplate string
	AllowPush       bool
	AppKey          string
}

// Validate checks the request against provider constraints.
func (r SendChallengeRequest) Validate() error {
	if err := validateRecipient(r.Recipient); err != nil {
		return err
	}
	if err := ValidateOriginator(r.Originator); err != nil {
		return fmt.Errorf("%w: %w", ErrPrecondition, err)
	}
	if r.CodeLength < otp.MinLength || r.CodeLength > otp.MaxLength {
		return fmt.Errorf("%w: %w", ErrPrecondition, ErrInvalidCodeLength)
	}
	if r.ValidForSeconds <= 0 {
		return fmt.Errorf("%w: %w", ErrPrecondition, ErrInvalidValidity)
	}
	if !strings.Contains(r.MessageTemplate, CodePlaceholder) {
		return fmt.Errorf("%w: %w", ErrPrecondition, ErrMissingPlaceholder)
	}
	if r.AllowPush && !uid.IsUUID(r.AppKey) {
		return fmt.Errorf("%w: %w", ErrPrecondition, ErrInvalidAppKey)
	}
	return nil
}

// Receipt is the provider's acknowledgement of a created challenge.
type Receipt struct {
	Reference string
	NotBefore time.Time
	NotAfter  time.Time
}

// TextMessage is a single SMS with a fully rendered body.
type TextMessage struct {
	Recipient  string
	Originator string
	Body       string
	// Reference is echoed back by the provider in delivery reports.
	Reference string
}

// Validate checks the message against provider constraints.
func (m TextMessage) Validate() error {
	if err := validateRecipient(m.Recipient); err != nil {
		return err
	}
	if err := ValidateOriginator(m.Originator); err != nil {
		return fmt.Errorf("%w: %w", ErrPrecondition, err)
	}
	if strings.TrimSpace(m.Body) == "" {
		return fmt.Errorf("%w: %w", ErrPrecondition, ErrEmptyMessage)
	}
	return nil
}

// Render substitutes code into template.
func Render(template, code string) string {
	return strings.ReplaceAll(template, CodePlaceholder, code)
}

func validateRecipient(recipient string) error {
	if recipient == "" || utf8.RuneCountInString(recipient) > MaxRecipientDigits || !isNumeric(recipient) {
		return fmt.Errorf("%w: %w", ErrPrecondition, ErrInvalidRecipient)
	}
	return nil
}

// ProviderError describes a failed provider call: a transport failure or
// timeout (Err set) or a non-2xx answer (StatusCode set).
type ProviderError struct {
	Op         string
	StatusCode int
	// Message and Status come from the provider's error body. They are meant
	// for logs, not for end users.
	Message string
	Status  int
	Timeout bool
	Err     error
}

func (e *ProviderError) Error() string {
	switch {
	case e.Err != nil && e.Timeout:
		return fmt.Sprintf("sms: %s timed out: %v", e.Op, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("sms: %s failed: %v", e.Op, e.Err)
	case e.Message != "":
		return fmt.Sprintf("sms: %s rejected with http %d: %s (status %d)", e.Op, e.StatusCode, e.Message, e.Status)
	default:
		return fmt.Sprintf("sms: %s rejected with http %d", e.Op, e.StatusCode)
	}
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Is reports ErrProvider as a match.
func (e *ProviderError) Is(target error) bool { return target == ErrProvider }
