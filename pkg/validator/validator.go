package validator

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

// DateLayout is the calendar date format accepted by the isodate rule.
const DateLayout = "2006-01-02"

var (
	once     sync.Once
	validate *validator.Validate
)

// ValidationError represents a single field validation failure.
type ValidationError struct {
	Field string `json:"field"`
	Tag   string `json:"tag"`
	Param string `json:"param"`
}

// Message renders the failure as a short sentence without the field name.
func (v ValidationError) Message() string {
	switch v.Tag {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "isodate":
		return "must be a YYYY-MM-DD date"
	case "min":
		return fmt.Sprintf("must be at least %s characters", v.Param)
	case "max":
		return fmt.Sprintf("must be at most %s characters", v.Param)
	case "gte":
		return fmt.Sprintf("must be at least %s", v.Param)
	case "lte":
		return fmt.Sprintf("must be at most %s", v.Param)
	case "oneof":
		return fmt.Sprintf("must be one of: %s", v.Param)
	default:
		if v.Param != "" {
			return fmt.Sprintf("failed validation: %s=%s", v.Tag, v.Param)
		}
		return "failed validation: " + v.Tag
	}
}

// ValidationErrors collects multiple validation failures.
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return "validation failed"
	}

	parts := make([]string, len(v))
	for i, err := range v {
		if err.Param != "" {
			parts[i] = err.Field + " failed on " + err.Tag + "=" + err.Param
		} else {
			parts[i] = err.Field + " failed on " + err.Tag
		}
	}
	return strings.Join(parts, "; ")
}

// ValidateStruct validates a struct using registered rules.
func ValidateStruct(s interface{}) error {
	err := getValidator().Struct(s)
	if err == nil {
		return nil
	}

	if ve, ok := err.(validator.ValidationErrors); ok {
		failures := make(ValidationErrors, 0, len(ve))
		for _, fe := range ve {
			failures = append(failures, ValidationError{
				Field: fe.Field(),
				Tag:   fe.Tag(),
				Param: fe.Param(),
			})
		}
		return failures
	}

	return err
}

// ValidateVar checks a single value against tag, e.g. "email" or
// "required,url". Failures carry Field "value".
func ValidateVar(value interface{}, tag string) error {
	err := getValidator().Var(value, tag)
	if err == nil {
		return nil
	}

	if ve, ok := err.(validator.ValidationErrors); ok {
		failures := make(ValidationErrors, 0, len(ve))
		for _, fe := range ve {
			failures = append(failures, ValidationError{
				Field: "value",
				Tag:   fe.Tag(),
				Param: fe.Param(),
			})
		}
		return failures
	}

	return err
}

// RegisterValidation exposes underlying validator custom rules.
func RegisterValidation(tag string, fn validator.Func) error {
	return getValidator().RegisterValidation(tag, fn)
}

// ParseDate parses a YYYY-MM-DD calendar date into a UTC midnight instant.
func ParseDate(value string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, strings.TrimSpace(value), time.UTC)
}

func isISODate(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	_, err := ParseDate(value)
	return err == nil
}

func getValidator() *validator.Validate {
	once.Do(func() {
		validate = validator.New()
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := fld.Tag.Get("json")
			if name == "" {
				return fld.Name
			}

			comma := strings.Index(name, ",")
			if comma != -1 {
				name = name[:comma]
			}

			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
		_ = validate.RegisterValidation("isodate", isISODate)
	})
	return validate
}
