package prescription

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrNotFound            = errors.New("prescription not found")
	ErrDiagnosisNotFound   = errors.New("diagnosis not found")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrValidation          = errors.New("validation failed")
	ErrGenerationFailed    = errors.New("prescription generation failed")
	ErrForbidden           = errors.New("forbidden")
	ErrDuplicate           = errors.New("prescription already exists for diagnosis")
	ErrUnsupportedLanguage = errors.New("unsupported language")
)

// TransitionError reports an approve or reject against a prescription that
// is no longer pending.
type TransitionError struct {
	ID        uuid.UUID
	Current   string
	Requested string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s prescription %s: already %s", verb(e.Requested), e.ID, e.Current)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

func verb(status string) string {
	switch status {
	case StatusApproved:
		return "approve"
	case StatusRejected:
		return "reject"
	}
	return "transition"
}

func validationError(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}
