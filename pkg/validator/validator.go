// Package validator wraps go-playground/validator with the rules and field
// naming used by the HTTP layer and configuration.
package validator

import (
	"errors"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// MaxIdentifierLength matches PostgreSQL's identifier limit.
const MaxIdentifierLength = 63

var (
	once     sync.Once
	validate *validator.Validate

	identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

// ValidationError is one failed rule. Field is the dotted path of the value
// below the validated root, named by its mapstructure, json or form tag.
type ValidationError struct {
	Field string `json:"field"`
	Tag   string `json:"tag"`
	Param string `json:"param"`
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return "validation failed"
	}
	parts := make([]string, len(v))
	for i, failure := range v {
		parts[i] = failure.Field + " failed on " + failure.Tag
		if failure.Param != "" {
			parts[i] += "=" + failure.Param
		}
	}
	return strings.Join(parts, "; ")
}

func ValidateStruct(s any) error {
	return translate(getValidator().Struct(s))
}

// ValidateVar checks value against tag and reports failures under name.
func ValidateVar(name string, value any, tag string) error {
	err := translate(getValidator().Var(value, tag))
	var failures ValidationErrors
	if errors.As(err, &failures) {
		for i := range failures {
			failures[i].Field = name
		}
	}
	return err
}

// IsIdentifier reports whether name is a plain SQL identifier that is safe
// to quote into a statement.
func IsIdentifier(name string) bool {
	return len(name) <= MaxIdentifierLength && identifierPattern.MatchString(name)
}

func translate(err error) error {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err
	}
	failures := make(ValidationErrors, 0, len(ve))
	for _, fe := range ve {
		failures = append(failures, ValidationError{
			Field: fieldPath(fe),
			Tag:   fe.Tag(),
			Param: fe.Param(),
		})
	}
	return failures
}

// fieldPath drops the root type name from the namespace: "Config.server.port"
// becomes "server.port".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func tagName(fld reflect.StructField) string {
	for _, key := range []string{"mapstructure", "json", "form"} {
		name, _, _ := strings.Cut(fld.Tag.Get(key), ",")
		if name != "" && name != "-" {
			return name
		}
	}
	return fld.Name
}

func getValidator() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(tagName)
		_ = validate.RegisterValidation("identifier", func(fl validator.FieldLevel) bool {
			return IsIdentifier(fl.Field().String())
		})
	})
	return validate
}
