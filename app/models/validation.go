package models

import (
	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validator returns the validator shared by the application's models.
func Validator() *validator.Validate {
	return validate
}

// ValidateAddress checks that s is a 0x-prefixed 20-byte hex address.
func ValidateAddress(s string) error {
	return validate.Var(s, "required,eth_addr")
}
