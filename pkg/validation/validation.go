package validation

import (
	"fmt"
	"reflect"
	"strings"
	"unicode"

	pkgerrors "github.com/angelmondragon/momopay/pkg/errors"
	"github.com/go-playground/validator/v10"
)

// MinMobileDigits is the shortest subscriber number a provider accepts.
const MinMobileDigits = 9

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" || tag == "-" {
			return f.Name
		}
		return tag
	})
	_ = v.RegisterValidation("mobile", func(fl validator.FieldLevel) bool {
		return IsMobileNumber(fl.Field().String())
	})
	return v
}

// IsMobileNumber accepts an optional leading '+', digits and spaces, with at least
// MinMobileDigits digits.
func IsMobileNumber(raw string) bool {
	value := strings.TrimSpace(raw)
	value = strings.TrimPrefix(value, "+")
	digits := 0
	for _, r := range value {
		switch {
		case unicode.IsDigit(r):
			digits++
		case r == ' ':
		default:
			return false
		}
	}
	return digits >= MinMobileDigits
}

// Struct validates dest and converts failures into a VALIDATION_ERROR carrying
// per-field messages.
func Struct(dest any) error {
	if err := validate.Struct(dest); err != nil {
		return formatValidationErrors(err)
	}
	return nil
}

func formatValidationErrors(err error) *pkgerrors.Error {
	if errs, ok := err.(validator.ValidationErrors); ok {
		details := map[string]string{}
		for _, fieldErr := range errs {
			details[fieldErr.Field()] = validationMessage(fieldErr)
		}
		return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
	}
	return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "validation failed")
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "email":
		return "must be a valid email"
	case "mobile":
		return "must be a valid phone number"
	case "oneof":
		return fmt.Sprintf("must be one of %s", fe.Param())
	}
	return "is invalid"
}
