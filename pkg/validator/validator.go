package validator

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/schema"
)

var (
	// ErrMalformedForm is returned when a request form cannot be parsed or
	// decoded into the target struct.
	ErrMalformedForm = errors.New("malformed form")
	// ErrRequestTooLarge is returned when the body exceeds the configured limit.
	ErrRequestTooLarge = errors.New("request body too large")
)

var (
	validate *validator.Validate
	decoder  *schema.Decoder
)

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())

	// Report fields by their form name so messages line up with the inputs.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		for _, tag := range []string{"schema", "json"} {
			name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
			if name != "" && name != "-" {
				return name
			}
		}
		return fld.Name
	})

	decoder = schema.NewDecoder()
	decoder.IgnoreUnknownKeys(true)
}

// Validate runs struct-level validation using go-playground/validator tags.
func Validate(s any) error {
	return validate.Struct(s)
}

// DecodeForm parses the request's URL query and form body into T using
// `schema` tags, trims string fields, then validates T.
//
// Errors: ErrRequestTooLarge, ErrMalformedForm, or validator.ValidationErrors
// (render with FormatValidationErrors). The decoded value is returned even on
// validation failure so the form can be re-rendered with the user's input.
func DecodeForm[T any](r *http.Request) (*T, error) {
	var dst T
	if err := r.ParseForm(); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, ErrRequestTooLarge
		}
		return nil, fmt.Errorf("%w: %w", ErrMalformedForm, err)
	}

	values := make(map[string][]string, len(r.Form))
	for k, vs := range r.Form {
		trimmed := make([]string, len(vs))
		for i, v := range vs {
			trimmed[i] = strings.TrimSpace(v)
		}
		values[k] = trimmed
	}

	if err := decoder.Decode(&dst, values); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedForm, err)
	}
	if err := Validate(&dst); err != nil {
		return &dst, err
	}
	return &dst, nil
}

// FormatValidationErrors converts validator.ValidationErrors into a map of
// field name → human-readable message.
func FormatValidationErrors(err error) map[string]string {
	errs := make(map[string]string)
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return errs
	}
	for _, e := range ve {
		errs[e.Field()] = formatFieldError(e)
	}
	return errs
}

func formatFieldError(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "This field is required"
	case "uuid", "uuid4":
		return "Must be a valid UUID"
	case "min":
		return fmt.Sprintf("Minimum length is %s", e.Param())
	case "max":
		return fmt.Sprintf("Maximum length is %s", e.Param())
	case "email":
		return "Must be a valid email address"
	case "url":
		return "Must be a valid URL"
	case "numeric":
		return "Must be a numeric value"
	case "alpha":
		return "Must contain only letters"
	case "alphanum":
		return "Must contain only letters and numbers"
	case "gte":
		return fmt.Sprintf("Must be greater than or equal to %s", e.Param())
	case "lte":
		return fmt.Sprintf("Must be less than or equal to %s", e.Param())
	case "oneof":
		return fmt.Sprintf("Must be one of: %s", e.Param())
	case "eqfield":
		return fmt.Sprintf("Must match %s", e.Param())
	default:
		return fmt.Sprintf("Validation failed on '%s'", e.Tag())
	}
}
