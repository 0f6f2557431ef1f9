package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// registerExclusive adds a custom validator ensuring two fields are mutually exclusive
// and makes errors report flag names instead of Go field names.
func registerExclusive(validate *validator.Validate) error {
	if err := validate.RegisterValidation("exclusive", validateExclusive); err != nil {
		return fmt.Errorf("registering exclusive validation: %w", err)
	}

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		const splitSize = 2

		name := strings.SplitN(fld.Tag.Get("label"), ",", splitSize)[0]
		if name == "" || name == "-" {
			return fld.Name
		}

		return name
	})

	return nil
}

// validateExclusive fails when both the field and the field named by the parameter are set.
func validateExclusive(fl validator.FieldLevel) bool {
	field := fl.Field()
	other := fl.Parent().FieldByName(fl.Param())

	if !field.IsValid() || !other.IsValid() {
		return true
	}

	return field.IsZero() || other.IsZero()
}

// describe turns validator errors into one readable line per field.
func describe(err error) error {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return err
	}

	messages := make([]string, 0, len(errs))

	for _, e := range errs {
		switch e.Tag() {
		case "exclusive":
			messages = append(messages, fmt.Sprintf("%s is mutually exclusive with %s", e.Field(), flagName(e)))
		case "required", "required_without":
			messages = append(messages, e.Field()+" is required")
		default:
			messages = append(messages, fmt.Sprintf("%s failed %q (%v)", e.Field(), e.ActualTag(), e.Value()))
		}
	}

	return errors.New(strings.Join(messages, "; "))
}

func flagName(e validator.FieldError) string {
	return "--" + strings.ToLower(e.Param())
}
