package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/screentime-server/screentime-server/pkg/devicestate"
	"github.com/screentime-server/screentime-server/pkg/schedule"
)

// Validator validates request structs using `validate` tags
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a new validator with the domain rules registered:
//
//	clock        "HH:MM[:SS]" time of day, 24:00 allowed
//	day          MONDAY..SUNDAY
//	devicestate  non-empty device state identifier
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterValidation("clock", func(fl validator.FieldLevel) bool {
		_, err := schedule.ParseClock(fl.Field().String())
		return err == nil
	})
	v.RegisterValidation("day", func(fl validator.FieldLevel) bool {
		_, err := schedule.ParseDay(fl.Field().String())
		return err == nil
	})
	v.RegisterValidation("devicestate", func(fl validator.FieldLevel) bool {
		_, err := devicestate.Parse(fl.Field().String())
		return err == nil
	})

	return &Validator{validate: v}
}

// Validate validates a struct
func (v *Validator) Validate(s interface{}) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, describe(fe))
	}
	return errors.New(strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s: field is required", fe.Field())
	case "email":
		return fmt.Sprintf("%s: invalid email format", fe.Field())
	case "min", "max":
		return fmt.Sprintf("%s: must satisfy %s=%s", fe.Field(), fe.Tag(), fe.Param())
	case "timezone", "clock", "day", "devicestate":
		return fmt.Sprintf("%s: invalid %s %q", fe.Field(), fe.Tag(), fe.Value())
	default:
		return fmt.Sprintf("%s: failed %s validation", fe.Field(), fe.Tag())
	}
}
