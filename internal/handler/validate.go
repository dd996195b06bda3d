package handler

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

const (
	minPhoneDigits = 7
	maxPhoneDigits = 15
)

// NewValidator returns a validator that reports JSON field names and knows
// the phone_digits tag.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.RegisterValidation("phone_digits", phoneDigits); err != nil {
		panic(err)
	}
	return v
}

// phoneDigits accepts free text holding 7 to 15 digits once everything else
// is stripped.
func phoneDigits(fl validator.FieldLevel) bool {
	n := CountDigits(fl.Field().String())
	return n >= minPhoneDigits && n <= maxPhoneDigits
}

// CountDigits returns the number of ASCII digits in s.
func CountDigits(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "email":
		return fe.Field() + " must be a valid email address"
	case "phone_digits":
		return fmt.Sprintf("%s must contain between %d and %d digits", fe.Field(), minPhoneDigits, maxPhoneDigits)
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}
