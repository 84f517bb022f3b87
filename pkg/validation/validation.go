package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	dErrors "hackmate/pkg/domain-errors"
)

// MinPhoneLength is the shortest phone number the capture form accepts.
const MinPhoneLength = 10

var defaultValidator = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return IsPhone(fl.Field().String())
	})
	return v
}

// IsPhone accepts any input of at least MinPhoneLength characters once
// surrounding whitespace is trimmed. Formatting such as "+", dashes and
// parentheses counts toward the length.
func IsPhone(raw string) bool {
	return utf8.RuneCountInString(strings.TrimSpace(raw)) >= MinPhoneLength
}

// FieldError scopes a validation failure to one input so a form can render it
// next to the offending field.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return e.Message
}

// NewFieldError builds a validation domain error scoped to field.
func NewFieldError(field, msg string) error {
	fe := &FieldError{Field: field, Message: msg}
	return &dErrors.Error{Code: dErrors.CodeValidation, Message: msg, Err: fe}
}

// AsFieldError extracts the field-scoped error from err, if any.
func AsFieldError(err error) (*FieldError, bool) {
	var fe *FieldError
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}

// Validate runs struct tags against req and reports the first failing field.
func Validate(req any) error {
	err := defaultValidator.Struct(req)
	if err == nil {
		return nil
	}
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) || len(validationErrs) == 0 {
		return dErrors.New(dErrors.CodeValidation, "invalid input")
	}
	fe := validationErrs[0]
	return NewFieldError(fe.Field(), ErrorMessage(fe))
}

// ErrorMessage converts a validator field error into participant-facing text.
func ErrorMessage(fe validator.FieldError) string {
	field := strings.ReplaceAll(fe.Field(), "_", " ")
	switch fe.ActualTag() {
	case "required", "notblank":
		return fmt.Sprintf("%s is required", field)
	case "phone":
		return "Please enter a valid phone number"
	case "email":
		return fmt.Sprintf("%s must be a valid email", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "gt", "gte":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
