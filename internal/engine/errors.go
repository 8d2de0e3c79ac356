package engine

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/Chinmai369/15th-FInance-Commission-ADP-Application-sub000/internal/store"
)

var ErrNotOwner = errors.New("work was submitted by another user")

// ValidationError reports a rejected input, scoped to one field when known.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// fromValidator turns the first struct tag failure into a ValidationError.
func fromValidator(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return invalid(fe.Field(), "is required")
	case "gte", "min":
		return invalid(fe.Field(), "must be at least %s", fe.Param())
	case "max":
		return invalid(fe.Field(), "must be at most %s characters", fe.Param())
	}
	return invalid(fe.Field(), "failed %s validation", fe.Tag())
}

func errNotFound(id string) error {
	return fmt.Errorf("%w: %s", store.ErrNotFound, id)
}

func errLocalNotFound(id string) error {
	return fmt.Errorf("%w: no local work %s", store.ErrNotFound, id)
}
