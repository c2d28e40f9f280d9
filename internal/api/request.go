package api

import (
	"encoding/json"
	"errors"
	"io"
	"reflect"

	"github.com/gin-gonic/gin"

	"github.com/twosmallonions/recipes/backend/internal/apperrors"
	"github.com/twosmallonions/recipes/backend/internal/types"
)

// bindJSON decodes the request body into dst. An empty body leaves dst at
// its zero value so validation reports the missing fields. A value of the
// wrong type is a validation failure; any other decode error is not
// classified.
func bindJSON(c *gin.Context, dst any) error {
	err := c.ShouldBindJSON(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		field := typeErr.Field
		if field == "" {
			field = "body"
		}
		return invalid(types.TypeMismatch(field, jsonTypeName(typeErr.Type)))
	}
	return apperrors.Wrap(err, apperrors.CodeUnknown, "malformed request body")
}

func invalid(err error) error {
	return apperrors.Wrap(err, apperrors.CodeInvalid, "validation failed")
}

func jsonTypeName(t reflect.Type) string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.String:
		return "string"
	case reflect.Bool:
		return "boolean"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "integer"
	case reflect.Float32, reflect.Float64:
		return "number"
	case reflect.Slice, reflect.Array:
		return "array"
	default:
		return "object"
	}
}
