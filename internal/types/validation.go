package types

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// FieldIssue describes one failing field.
type FieldIssue struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Param   string `json:"param,omitempty"`
	Message string `json:"message"`
}

// ValidationError lists every field that failed validation.
type ValidationError struct {
	Issues []FieldIssue `json:"issues"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Issues))
	for i, is := range e.Issues {
		parts[i] = is.Field + " " + is.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Fields returns the names of the failing fields in report order.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.Issues))
	for i, is := range e.Issues {
		out[i] = is.Field
	}
	return out
}

// TypeMismatch reports a JSON value of the wrong type for field.
func TypeMismatch(field, expected string) *ValidationError {
	return &ValidationError{Issues: []FieldIssue{{
		Field:   field,
		Rule:    "type",
		Param:   expected,
		Message: "must be of type " + expected,
	}}}
}

func validateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := &ValidationError{Issues: make([]FieldIssue, 0, len(verrs))}
	for _, fe := range verrs {
		out.Issues = append(out.Issues, FieldIssue{
			Field:   fieldPath(fe),
			Rule:    fe.Tag(),
			Param:   fe.Param(),
			Message: issueMessage(fe),
		})
	}
	return out
}

// fieldPath drops the root struct name from the namespace,
// "CreateRecipeRequest.instructions[1]" becomes "instructions[1]".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

func issueMessage(fe validator.FieldError) string {
	unit := ""
	switch fe.Kind() {
	case reflect.String:
		unit = " characters"
	case reflect.Slice, reflect.Array, reflect.Map:
		unit = " items"
	}
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s%s", fe.Param(), unit)
	case "max":
		return fmt.Sprintf("must be at most %s%s", fe.Param(), unit)
	default:
		return fmt.Sprintf("failed %q validation", fe.Tag())
	}
}
