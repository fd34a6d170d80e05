// Package schemavalidator holds the validator shared by the boundary and the
// reconciler, and JSON schema validation of reference data documents.
package schemavalidator

import (
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	schemaValidator *validator.Validate
	once            sync.Once
)

// V returns the validator. Field errors are reported under their json names.
func V() *validator.Validate {
	once.Do(func() {
		schemaValidator = validator.New(validator.WithRequiredStructEnabled())
		schemaValidator.RegisterTagNameFunc(GetJSONTag)
		registerValidators(schemaValidator)
	})
	return schemaValidator
}

// GetJSONTag retrieves the JSON tag for a given struct field.
// If the JSON tag is not found or is explicitly ignored, it falls back to the field name.
func GetJSONTag(field reflect.StructField) string {
	jsonTag := field.Tag.Get("json")
	if jsonTag == "" || jsonTag == "-" {
		return field.Name
	}
	return strings.Split(jsonTag, ",")[0]
}

// FirstError returns the field and a readable message for the first failed
// rule of a validation error. ok is false when err is not a validation error.
func FirstError(err error) (field, msg string, ok bool) {
	ve, isVe := err.(validator.ValidationErrors)
	if !isVe || len(ve) == 0 {
		return "", "", false
	}
	fe := ve[0]
	return fe.Field(), describe(fe), true
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "max":
		return "this field must not exceed " + fe.Param() + " characters"
	case "oneof":
		return "this field must be one of: " + fe.Param()
	case "catalogName":
		return "only lowercase letters, digits, dashes and underscores are allowed"
	case "restrictionLevel":
		return "unknown restriction level"
	case "updateFrequency", "syncFrequency":
		return "unknown frequency"
	case "url", "http_url":
		return "this field must be a valid URL"
	case "email":
		return "this field must be a valid email address"
	}
	return "invalid value (" + fe.Tag() + ")"
}
