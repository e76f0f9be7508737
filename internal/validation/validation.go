package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	validate = validator.New(validator.WithRequiredStructEnabled())

	// providerNameRegex keeps provider names safe to splice into a URL path
	providerNameRegex = regexp.MustCompile(`^[a-z][a-z0-9-]{0,31}$`)
)

// FieldError is a single failed rule on a struct field
type FieldError struct {
	Field   string
	Message string
}

// Error collects every failed rule of one struct
type Error struct {
	Fields []FieldError
}

func (e *Error) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, fmt.Sprintf("field '%s' %s", f.Field, f.Message))
	}
	return strings.Join(msgs, "; ")
}

// Struct validates s using its `validate` tags
func Struct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}

	out := &Error{Fields: make([]FieldError, 0, len(validationErrors))}
	for _, fe := range validationErrors {
		out.Fields = append(out.Fields, FieldError{Field: fe.Field(), Message: msgForTag(fe)})
	}
	return out
}

func msgForTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	default:
		return fmt.Sprintf("failed on '%s' validation", fe.Tag())
	}
}

// ValidateProviderName validates an identity provider name before it is used
// to build an initiation URL
func ValidateProviderName(name string) error {
	if name == "" {
		return errors.New("provider name cannot be empty")
	}
	if !providerNameRegex.MatchString(name) {
		return errors.New("provider name must be lowercase letters, digits or hyphens")
	}
	return nil
}

// ValidateDisplayName validates the name given at signup
func ValidateDisplayName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return errors.New("name cannot be empty")
	}
	if len(trimmed) > 100 {
		return errors.New("name must be 100 characters or less")
	}
	if strings.ContainsAny(trimmed, "<>") {
		return errors.New("name cannot contain angle brackets")
	}
	return nil
}
