package payment

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"pizzeria/internal/apperr"
)

var (
	cardNumberPattern = regexp.MustCompile(`^\d{16}$`)
	// Format only. The date is never compared with the current month, so an
	// expired "01/20" still passes.
	expiryPattern = regexp.MustCompile(`^\d{2}/\d{2}$`)
	cvvPattern    = regexp.MustCompile(`^\d{3}$`)
)

type Card struct {
	Number string
	Expiry string
	CVV    string
}

// Validate checks presence and format of every field.
func (c Card) Validate() error {
	if c.Number == "" || c.Expiry == "" || c.CVV == "" {
		return fmt.Errorf("card details are incomplete: %w", apperr.ErrValidation)
	}
	if !cardNumberPattern.MatchString(c.normalizedNumber()) {
		return fmt.Errorf("invalid card number: %w", apperr.ErrValidation)
	}
	if !expiryPattern.MatchString(c.Expiry) {
		return fmt.Errorf("invalid expiry date %q: %w", c.Expiry, apperr.ErrValidation)
	}
	if !cvvPattern.MatchString(c.CVV) {
		return fmt.Errorf("invalid cvv: %w", apperr.ErrValidation)
	}
	return nil
}

// Masked keeps only the last four digits. Call after Validate.
func (c Card) Masked() string {
	n := c.normalizedNumber()
	return "XXXX-XXXX-XXXX-" + n[len(n)-4:]
}

func (c Card) normalizedNumber() string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, c.Number)
}
