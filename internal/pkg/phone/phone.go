// Package phone canonicalizes user supplied mobile numbers into the digits-only
// form the SMS provider expects: "00" + country calling code + national
// significant number.
package phone

import (
	"errors"
	"strconv"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// DefaultRegion is used when a number carries no international prefix.
const DefaultRegion = "NL"

// unknownRegion makes the parser take the region from the number itself.
const unknownRegion = "ZZ"

// ErrInvalidPhoneNumber is returned when a string is not a viable, valid number.
var ErrInvalidPhoneNumber = errors.New("phone: invalid phone number")

// Normalize parses raw and returns its canonical digits-only form.
//
// When raw contains a '+' the region is inferred from the number; otherwise
// defaultRegion applies (DefaultRegion when empty).
func Normalize(raw, defaultRegion string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrInvalidPhoneNumber
	}

	region := strings.ToUpper(strings.TrimSpace(defaultRegion))
	if region == "" {
		region = DefaultRegion
	}
	if strings.Contains(raw, "+") {
		region = unknownRegion
	}

	num, err := phonenumbers.Parse(raw, region)
	if err != nil {
		return "", errors.Join(ErrInvalidPhoneNumber, err)
	}
	if !phonenumbers.IsValidNumber(num) {
		return "", ErrInvalidPhoneNumber
	}

	return "00" + strconv.Itoa(int(num.GetCountryCode())) + phonenumbers.GetNationalSignificantNumber(num), nil
}

// Normalizer binds a default region so callers need not thread it through.
type Normalizer struct {
	region string
}

// NewNormalizer returns a Normalizer for region (DefaultRegion when empty).
func NewNormalizer(region string) *Normalizer {
	if strings.TrimSpace(region) == "" {
		region = DefaultRegion
	}
	return &Normalizer{region: region}
}

// Normalize canonicalizes raw using the bound default region.
func (n *Normalizer) Normalize(raw string) (string, error) {
	return Normalize(raw, n.region)
}

// Mask hides all but the last three digits of a canonical number, for logs
// and confirmation pages.
func Mask(canonical string) string {
	const visible = 3
	if len(canonical) <= visible {
		return strings.Repeat("*", len(canonical))
	}
	return strings.Repeat("*", len(canonical)-visible) + canonical[len(canonical)-visible:]
}
