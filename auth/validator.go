package auth

import (
	"fmt"
	"pick-roll/errors"
	"unicode"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type RegisterRequest struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=12,max=72"`
}

// ValidateRegister checks the email format and the password policy.
func ValidateRegister(req RegisterRequest) error {
	if err := validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrInvalidArgument, err)
	}
	return ValidatePassword(req.Password)
}

// ValidatePassword requires 12 to 72 characters with upper, lower, digit and symbol.
func ValidatePassword(password string) error {
	if err := validate.Var(password, "required,min=12,max=72"); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrInvalidPassword, err)
	}
	if !isPasswordComplex(password) {
		return errors.ErrInvalidPassword
	}
	return nil
}

func isPasswordComplex(s string) bool {
	var upper, lower, digit, special bool
	for _, r := range s {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			special = true
		}
	}
	return upper && lower && digit && special
}
