package service

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// NewValidator returns a validator that reports fields by their json names,
// so error messages match the wire format clients actually send.
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	return v
}

// validationMessage turns a validator error into a message naming the first
// failing field. Falls back to the given message for non-field errors.
func validationMessage(err error, fallback string) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return fallback
	}
	failed := fieldErrs[0]
	switch failed.Tag() {
	case "required":
		return failed.Field() + " is required"
	case "email":
		return failed.Field() + " must be a valid email address"
	case "uuid4":
		return failed.Field() + " must be a valid id"
	}
	return failed.Field() + " is invalid"
}
