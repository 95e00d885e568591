package checkout

import (
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"

	"shophub.store/storefront/pkg/global"
	"shophub.store/storefront/pkg/models"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	if err := models.RegisterValidators(v); err != nil {
		panic(err)
	}
	return v
}

// FieldErrors maps a form field to the message shown next to it.
type FieldErrors map[string]string

func (e FieldErrors) Error() string {
	fields := slices.Sorted(maps.Keys(e))
	return fmt.Sprintf("invalid shipping details: %s", strings.Join(fields, ", "))
}

func (e FieldErrors) Is(target error) bool {
	return target == global.ErrInvalidRequest
}

// ValidateShipping returns nil when info is complete.
func ValidateShipping(info models.ShippingInfo) FieldErrors {
	err := validate.Struct(info)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return FieldErrors{"": err.Error()}
	}
	out := make(FieldErrors, len(verrs))
	for _, fe := range verrs {
		out[fe.Field()] = message(fe)
	}
	return out
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "email":
		return "Please enter a valid email address"
	case "phone":
		return "Please enter a valid phone number"
	}
	return fmt.Sprintf("%s is invalid", fe.Field())
}
