package credentials

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// MinPasswordLength is the shortest password accepted before calling the backend.
// Lengths are counted in runes, so "ぱ" and "🎬" each count as one character.
const MinPasswordLength = 8

// Max length constants for user-editable fields.
const (
	MaxEmailLength = 254
	MaxNameLength  = 100
)

// Domain errors
var (
	ErrPasswordTooShort = errors.New("password must be at least 8 characters")
	ErrEmptyEmail       = errors.New("email cannot be empty")
	ErrInvalidEmail     = errors.New("email must contain '@'")
	ErrEmailTooLong     = errors.New("email cannot exceed 254 characters")
	ErrEmptyPassword    = errors.New("password cannot be empty")
	ErrNameTooLong      = errors.New("name cannot exceed 100 characters")
)

// Login carries the login form fields.
type Login struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Remember bool   `json:"-"`
}

// Signup carries the signup form fields.
type Signup struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Gender   string `json:"gender"`
}

// Validate checks the login fields that must be present before a backend call.
// PRE: none
// POST: returns nil if the form may be submitted
func (l *Login) Validate() error {
	if err := validateEmail(l.Email); err != nil {
		return err
	}
	if l.Password == "" {
		return ErrEmptyPassword
	}
	return nil
}

// Validate checks the signup precheck: a short password is rejected without a network call.
// PRE: none
// POST: returns ErrPasswordTooShort for passwords under MinPasswordLength characters
func (s *Signup) Validate() error {
	if utf8.RuneCountInString(s.Password) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	if utf8.RuneCountInString(s.Name) > MaxNameLength {
		return ErrNameTooLong
	}
	return validateEmail(s.Email)
}

func validateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return ErrEmptyEmail
	}
	if len(email) > MaxEmailLength {
		return ErrEmailTooLong
	}
	if !strings.Contains(email, "@") {
		return ErrInvalidEmail
	}
	return nil
}

// Hint levels for the password strength hint.
const (
	HintNeutral = "neutral"
	HintWarning = "warning"
	HintOK      = "ok"
)

// Hint is the password strength hint shown under the signup password field.
type Hint struct {
	Text  string `json:"text"`
	Level string `json:"level"`
}

// PasswordHint computes the strength hint for the current password value.
func PasswordHint(password string) Hint {
	return HintForLength(utf8.RuneCountInString(password))
}

// HintForLength computes the strength hint from a length in runes. The hint
// depends on nothing else, so callers never need the password itself.
// PRE: none
// POST: neutral for n <= 0, warning with the remaining count below the minimum, ok otherwise
func HintForLength(n int) Hint {
	switch {
	case n <= 0:
		return Hint{Text: fmt.Sprintf("Must be at least %d characters", MinPasswordLength), Level: HintNeutral}
	case n < MinPasswordLength:
		return Hint{Text: fmt.Sprintf("%d more characters needed", MinPasswordLength-n), Level: HintWarning}
	default:
		return Hint{Text: "Strong password ✓", Level: HintOK}
	}
}
