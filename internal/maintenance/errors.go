package maintenance

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/ukydev/fleet-maintenance/internal/db"
)

var (
	// ErrNotFound means the referenced car or maintenance record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrValidation means the input was rejected; the wrapped message says why.
	ErrValidation = errors.New("validation failed")
	// ErrConflict means the request contradicts the current state, such as
	// completing a record that is already done.
	ErrConflict = errors.New("conflict")
)

func notFound(what, id string, err error) error {
	if errors.Is(err, db.ErrNotFound) {
		return fmt.Errorf("%w: %s %s", ErrNotFound, what, id)
	}
	return err
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// validationError turns validator failures into ErrValidation.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return invalid("field %s failed on %s", fe.Field(), fe.Tag())
	}
	return fmt.Errorf("%w: %v", ErrValidation, err)
}
