package sms

import (
	"errors"
	"strings"
	"unicode/utf8"
)

const (
	maxNumericOriginator = 16
	minOriginator        = 3
	maxAlphaOriginator   = 11
)

var (
	// ErrSenderIDTooLong is returned for numeric originators above 16 digits.
	ErrSenderIDTooLong = errors.New("sms: numeric sender id must be at most 16 digits")
	// ErrSenderIDInvalidLength is returned for originators outside the accepted length.
	ErrSenderIDInvalidLength = errors.New("sms: sender id must be 3-11 characters, or 3-16 digits when numeric")
)

// ValidateOriginator checks a sender id against provider rules.
//
// A fully numeric originator is a phone number and may have up to 16 digits;
// anything else is alphanumeric and must be 3 to 11 characters once spaces are
// removed. The character set itself is left to the provider.
func ValidateOriginator(originator string) error {
	if isNumeric(originator) {
		switch n := len(originator); {
		case n > maxNumericOriginator:
			return ErrSenderIDTooLong
		case n < minOriginator:
			return ErrSenderIDInvalidLength
		}
		return nil
	}

	n := utf8.RuneCountInString(strings.ReplaceAll(originator, " ", ""))
	if n < minOriginator || n > maxAlphaOriginator {
		return ErrSenderIDInvalidLength
	}
	return nil
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
