package validation

import (
	"errors"
	"net/mail"
)

// ValidateEmail checks an address returned by an identity provider.
// RFC 5321 caps the full address at 254 characters.
func ValidateEmail(email string) error {
	if email == "" {
		return errors.New("email address is required")
	}
	if len(email) > 254 {
		return errors.New("email address is too long (max 254 characters)")
	}

	_, err := mail.ParseAddress(email)
	if err != nil {
		return errors.New("invalid email address format")
	}

	return nil
}
