package model

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the struct-level constraints declared in the `validate` tags of a model value
func Validate(value any) error {
	err := validate.Struct(value)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}

	messages := lo.Map(validationErrors, func(fieldError validator.FieldError, _ int) string {
		if fieldError.Param() != "" {
			return fmt.Sprintf("%v must satisfy %v=%v (got %v)", fieldError.Namespace(), fieldError.Tag(), fieldError.Param(), fieldError.Value())
		}
		return fmt.Sprintf("%v must satisfy %v", fieldError.Namespace(), fieldError.Tag())
	})
	return errors.New(strings.Join(messages, "; "))
}
