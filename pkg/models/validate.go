package models

import (
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	phonePattern   = regexp.MustCompile(`^\+?[1-9]\d{0,15}$`)
	phoneSeparator = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "")
)

// ValidPhone accepts up to 16 digits with an optional leading plus, ignoring
// spaces, dashes and parentheses.
func ValidPhone(phone string) bool {
	return phonePattern.MatchString(phoneSeparator.Replace(phone))
}

// RegisterValidators adds the storefront's custom tags to v.
func RegisterValidators(v *validator.Validate) error {
	return v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return ValidPhone(fl.Field().String())
	})
}
