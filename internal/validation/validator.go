// Package validation wraps go-playground/validator with the rules the API
// needs, and reports failures keyed by JSON field name.
//
//	type pollRequest struct {
//	    Action *float64 `json:"action" validate:"required,min=0,max=5,halfstep"`
//	}
package validation

import (
	"math"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validator is safe for concurrent use; build one and share it.
type Validator struct {
	v *validator.Validate
}

// New returns a Validator with the custom tags registered.
func New() *Validator {
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

	// halfstep: the number is a multiple of 0.5
	_ = v.RegisterValidation("halfstep", func(fl validator.FieldLevel) bool {
		f := fl.Field()
		switch f.Kind() {
		case reflect.Float32, reflect.Float64:
			d := f.Float() * 2
			return d == math.Trunc(d)
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return true
		}
		return false
	})

	return &Validator{v: v}
}

// FieldError is one failed rule.
type FieldError struct {
	Field string `json:"field"`
	Tag   string `json:"tag"`
	Param string `json:"param,omitempty"`
}

// FieldErrors is returned by Struct when validation fails.
type FieldErrors []FieldError

func (fe FieldErrors) Error() string {
	parts := make([]string, len(fe))
	for i, e := range fe {
		parts[i] = e.Field + ": " + e.Tag
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Map returns field -> failed tag.
func (fe FieldErrors) Map() map[string]string {
	m := make(map[string]string, len(fe))
	for _, e := range fe {
		m[e.Field] = e.Tag
	}
	return m
}

// Var validates a single value against tag, reporting failures under field.
func (v *Validator) Var(field string, value any, tag string) error {
	err := v.v.Var(value, tag)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	out := make(FieldErrors, len(verrs))
	for i, fe := range verrs {
		out[i] = FieldError{Field: field, Tag: fe.Tag(), Param: fe.Param()}
	}
	return out
}

// Struct validates s and returns FieldErrors, or another error when s is not
// a validatable struct.
func (v *Validator) Struct(s any) error {
	err := v.v.Struct(s)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	out := make(FieldErrors, len(verrs))
	for i, fe := range verrs {
		out[i] = FieldError{Field: fe.Field(), Tag: fe.Tag(), Param: fe.Param()}
	}
	return out
}
