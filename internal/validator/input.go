// Package validator checks and normalizes user input before it enters a
// conversation.
package validator

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// spaceRegexp is compiled once at package init and reused across all Sanitize calls.
var spaceRegexp = regexp.MustCompile(`\s+`)

type InputValidator struct {
	maxLength int
	minLength int
}

func NewInputValidator() *InputValidator {
	return &InputValidator{
		maxLength: 8000,
		minLength: 1,
	}
}

func (v *InputValidator) Validate(text string) error {
	if len(text) < v.minLength {
		return fmt.Errorf("message too short: minimum %d characters", v.minLength)
	}

	if len(text) > v.maxLength {
		return fmt.Errorf("message too long: maximum %d characters", v.maxLength)
	}

	if !utf8.ValidString(text) {
		return errors.New("invalid UTF-8 encoding")
	}

	if strings.TrimSpace(text) == "" {
		return errors.New("message is empty")
	}

	return nil
}

func (v *InputValidator) Sanitize(text string) string {
	text = strings.TrimSpace(text)
	text = spaceRegexp.ReplaceAllString(text, " ")
	return text
}
