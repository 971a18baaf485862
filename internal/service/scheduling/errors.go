package scheduling

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	govalidator "github.com/go-playground/validator/v10"

	"slotline/backend/internal/domain"
	"slotline/backend/internal/store"
)

// ValidationError reports malformed input. It is returned before any lease
// is taken or any row is read.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func validationError(msg string) error {
	return &ValidationError{msg: msg}
}

type validator struct {
	v *govalidator.Validate
}

func newValidator() *validator {
	v := govalidator.New(govalidator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	// Registration only fails for an empty tag or nil func.
	_ = v.RegisterValidation("hhmm", func(fl govalidator.FieldLevel) bool {
		_, err := domain.ParseTimeOfDay(fl.Field().String())
		return err == nil
	})
	return &validator{v: v}
}

func (v *validator) Struct(s any) error {
	err := v.v.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs govalidator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, describe(fe))
	}
	return validationError(strings.Join(msgs, "; "))
}

func describe(fe govalidator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "required_without":
		return field + " is required when no provider is given"
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	case "hhmm":
		return field + " must be a time of day in HH:MM format"
	case "dive":
		return field + " is invalid"
	}
	return fmt.Sprintf("%s failed %s", field, fe.Tag())
}

// conflict wraps err so callers can match store.ErrConflict while keeping the
// reason, such as the appointment's current status.
func conflict(err error) error {
	return fmt.Errorf("%w: %w", store.ErrConflict, err)
}

func conflictf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{store.ErrConflict}, args...)...)
}
