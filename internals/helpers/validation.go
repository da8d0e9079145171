package helper

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// NewValidator reports field errors under their json names.
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// ValidationFields flattens validator errors to field -> messages. It returns nil
// when err is not a validator error.
func ValidationFields(err error) map[string][]string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return nil
	}
	out := make(map[string][]string, len(ve))
	for _, fe := range ve {
		out[fe.Field()] = append(out[fe.Field()], fieldMessage(fe))
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "uuid", "uuid4":
		return "must be a valid uuid"
	case "min":
		return fmt.Sprintf("must have at least %s item(s) or characters", fe.Param())
	case "max":
		return fmt.Sprintf("must have at most %s item(s) or characters", fe.Param())
	case "oneof":
		return "must be one of: " + fe.Param()
	case "datetime":
		return "must be a date in " + fe.Param() + " format"
	case "unique":
		return "must not contain duplicates"
	default:
		return "failed on " + fe.Tag()
	}
}
