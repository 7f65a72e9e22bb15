package project

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"slidecast/internal/encoders"
	"slidecast/internal/plan"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(field reflect.StructField) string {
			name, _, _ := strings.Cut(field.Tag.Get("toml"), ",")
			if name == "-" {
				return ""
			}
			if name == "" {
				return field.Name
			}
			return name
		})
		_ = v.RegisterValidation("resolution", func(fl validator.FieldLevel) bool {
			_, _, err := parseResolution(fl.Field().String())
			return err == nil
		})
		_ = v.RegisterValidation("codec", func(fl validator.FieldLevel) bool {
			_, ok := encoders.ParseFamily(fl.Field().String())
			return ok
		})
		_ = v.RegisterValidation("position", func(fl validator.FieldLevel) bool {
			_, ok := plan.ParsePosition(fl.Field().String())
			return ok
		})
		_ = v.RegisterValidation("effect", func(fl validator.FieldLevel) bool {
			_, ok := plan.ParseEffect(fl.Field().String())
			return ok
		})
		validate = v
	})
	return validate
}

// Problems returns the structural problems of the project file, one line
// each. Semantic checks against media and the encoder happen in plan.Build.
func (p *Project) Problems() []string {
	var problems []string
	if err := structValidator().Struct(p); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return []string{err.Error()}
		}
		for _, fe := range fieldErrs {
			problems = append(problems, describe(fe))
		}
	}
	if len(p.Slides) == 0 {
		problems = append(problems, "project has no slides")
	}
	return problems
}

func describe(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "Project.")
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "required_unless":
		return fmt.Sprintf("%s is required for audio and video slides", field)
	case "oneof":
		return fmt.Sprintf("%s: %v is not one of %s", field, fe.Value(), strings.ReplaceAll(fe.Param(), " ", ", "))
	case "gte", "min":
		return fmt.Sprintf("%s: %v is below %s", field, fe.Value(), fe.Param())
	case "lte", "max":
		return fmt.Sprintf("%s: %v is above %s", field, fe.Value(), fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s: %v is not a valid %s", field, fe.Value(), fe.Tag())
	}
}
