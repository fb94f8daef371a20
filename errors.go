package tapestry

import (
	"errors"
	"fmt"
)

// Sentinel errors for page and form processing.
var (
	ErrNotFound          = errors.New("tapestry: page not found")
	ErrComponentNotFound = errors.New("tapestry: component not found")
	ErrMethodNotAllowed  = errors.New("tapestry: form submission requires POST")
	ErrMissingFormData   = errors.New("tapestry: submission is missing t:formdata")
	ErrInvalidFormData   = errors.New("tapestry: t:formdata is malformed")
	ErrDuplicateID       = errors.New("tapestry: duplicate component id")
	ErrNoEnvironment     = errors.New("tapestry: no environmental value")
)

// ReplayError reports a stored action that could not be replayed. The
// component id locates the failure; no partial replay is attempted.
type ReplayError struct {
	ComponentID string
	Kind        ActionKind
	Err         error
}

func (e *ReplayError) Error() string {
	return fmt.Sprintf("tapestry: replaying %s for component %q: %v", e.Kind, e.ComponentID, e.Err)
}

func (e *ReplayError) Unwrap() error {
	return e.Err
}

// IsNotFound checks if err is a page or component not-found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrComponentNotFound)
}

// IsBadSubmission checks if err was caused by the client's submission
// rather than by the application.
func IsBadSubmission(err error) bool {
	if errors.Is(err, ErrMissingFormData) || errors.Is(err, ErrInvalidFormData) {
		return true
	}
	var re *ReplayError
	return errors.As(err, &re)
}
