package learnhub

import (
	"errors"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks a request struct against its `validate` tags. A failure
// is returned as a KindInvalid *Error whose Message describes the first
// offending field.
func Validate(v any) error {
	err := validatorInstance().Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &Error{Kind: KindInvalid, Message: "invalid request", Err: err}
	}
	return &Error{Kind: KindInvalid, Message: fieldMessage(verrs[0]), Err: err}
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email address", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "eqfield":
		return fmt.Sprintf("%s must match %s", field, fe.Param())
	case "nefield":
		return fmt.Sprintf("%s must differ from %s", field, fe.Param())
	case "containsany":
		switch fe.Param() {
		case "abcdefghijklmnopqrstuvwxyz":
			return fmt.Sprintf("%s must contain a lowercase letter", field)
		case "ABCDEFGHIJKLMNOPQRSTUVWXYZ":
			return fmt.Sprintf("%s must contain an uppercase letter", field)
		case "0123456789":
			return fmt.Sprintf("%s must contain a digit", field)
		}
	}
	return fmt.Sprintf("%s is invalid", field)
}
