package workflow

import (
	"errors"
	"fmt"
)

var (
	// ErrActionUnavailable is returned for an action the current stage does not offer.
	ErrActionUnavailable = errors.New("action not available at this stage")

	// ErrOfferingLocked is returned when provider or scroll would change after Send.
	ErrOfferingLocked = errors.New("offering is locked at this stage")

	// ErrUnknownAction is returned by Dispatch for an unrecognised action name.
	ErrUnknownAction = errors.New("unknown action")
)

// ValidationError is a guard failure that leaves the session unchanged and
// is shown to the traveler as a warning.
type ValidationError struct {
	Action  Action
	Warning string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Action, e.Warning)
}

// WarningOf returns the warning carried by err, if any.
func WarningOf(err error) (string, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Warning, true
	}
	return "", false
}
