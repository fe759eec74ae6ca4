// Package validation turns request validation failures into the error bag
// returned by the HTTP ingress:
//
//	{"errors": {"name": ["The name field is required."]}}
//
// Field names come from the `json` tag when present, so the bag uses the
// same names the client sent.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Errors holds validation errors by field.
type Errors struct {
	Bag map[string][]string `json:"errors"`
}

// Add appends msg to field's messages.
func (e *Errors) Add(field, msg string) {
	if e.Bag == nil {
		e.Bag = make(map[string][]string)
	}
	e.Bag[field] = append(e.Bag[field], msg)
}

// Has returns true if there are any errors.
func (e *Errors) Has() bool { return len(e.Bag) > 0 }

// First returns the first error for a field.
func (e *Errors) First(field string) string {
	if msgs, ok := e.Bag[field]; ok && len(msgs) > 0 {
		return msgs[0]
	}
	return ""
}

func (e *Errors) Error() string {
	return fmt.Sprintf("%d invalid field(s)", len(e.Bag))
}

// From extracts the error bag from err. It reports false when err carries
// no validation failures.
func From(err error) (*Errors, bool) {
	var bag *Errors
	if errors.As(err, &bag) {
		return bag, true
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return FromValidator(verrs), true
	}
	return nil, false
}

// FromValidator renders each failed constraint as a message.
func FromValidator(verrs validator.ValidationErrors) *Errors {
	bag := &Errors{}
	for _, fe := range verrs {
		field := fieldName(fe)
		bag.Add(field, Message(field, fe.Tag(), fe.Param(), fe.Kind()))
	}
	return bag
}

// Message is the human readable message for a failed tag.
func Message(field, tag, param string, kind reflect.Kind) string {
	switch tag {
	case "required", "required_if", "required_with", "required_without":
		return fmt.Sprintf("The %s field is required.", field)
	case "email":
		return fmt.Sprintf("The %s must be a valid email address.", field)
	case "url", "http_url":
		return fmt.Sprintf("The %s must be a valid URL.", field)
	case "numeric", "number":
		return fmt.Sprintf("The %s must be a number.", field)
	case "boolean":
		return fmt.Sprintf("The %s field must be true or false.", field)
	case "alpha":
		return fmt.Sprintf("The %s may only contain letters.", field)
	case "alphanum":
		return fmt.Sprintf("The %s may only contain letters and numbers.", field)
	case "oneof":
		return fmt.Sprintf("The selected %s is invalid.", field)
	case "eqfield":
		return fmt.Sprintf("The %s and %s must match.", field, strings.ToLower(param))
	case "nefield":
		return fmt.Sprintf("The %s and %s must be different.", field, strings.ToLower(param))
	case "min", "gte":
		if isSized(kind) {
			return fmt.Sprintf("The %s must be at least %s characters.", field, param)
		}
		return fmt.Sprintf("The %s must be greater than or equal to %s.", field, param)
	case "max", "lte":
		if isSized(kind) {
			return fmt.Sprintf("The %s may not be greater than %s characters.", field, param)
		}
		return fmt.Sprintf("The %s must be less than or equal to %s.", field, param)
	case "len":
		if isSized(kind) {
			return fmt.Sprintf("The %s must be %s characters.", field, param)
		}
		return fmt.Sprintf("The %s must be %s.", field, param)
	case "gt":
		return fmt.Sprintf("The %s must be greater than %s.", field, param)
	case "lt":
		return fmt.Sprintf("The %s must be less than %s.", field, param)
	}
	return fmt.Sprintf("The %s format is invalid.", field)
}

func isSized(kind reflect.Kind) bool {
	switch kind {
	case reflect.String, reflect.Slice, reflect.Map, reflect.Array:
		return true
	}
	return false
}

// fieldName prefers the json name of the field, then its lower-cased Go name.
func fieldName(fe validator.FieldError) string {
	if name := fe.Field(); name != fe.StructField() {
		return name
	}
	return strings.ToLower(fe.Field())
}

// JSONTagName is a validator.TagNameFunc reporting fields by their json name.
//
//	v := validator.New()
//	v.RegisterTagNameFunc(validation.JSONTagName)
func JSONTagName(fld reflect.StructField) string {
	name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
	switch name {
	case "-":
		return ""
	case "":
		return fld.Name
	}
	return name
}

// New returns a validator that names fields by their json tag.
func New() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(JSONTagName)
	return v
}
