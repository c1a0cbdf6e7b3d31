package ccx

import (
	"errors"
	"fmt"
)

var (
	// ErrNoStore indicates Overrides was built without a state.Store.
	ErrNoStore = errors.New("ccx: override store not configured")
	// ErrUnknownField indicates the block does not define the requested field.
	ErrUnknownField = errors.New("ccx: unknown field")
	// ErrFieldNotOverridable indicates the field policy rejected an override.
	ErrFieldNotOverridable = errors.New("ccx: field is not overridable")
	// ErrInvalidCohort indicates a cohort without an identifier.
	ErrInvalidCohort = errors.New("ccx: cohort id must be provided")
	// ErrNilBlock indicates a nil Block was supplied.
	ErrNilBlock = errors.New("ccx: block must not be nil")
)

// OverrideError captures override metadata alongside the originating store or
// codec error.
type OverrideError struct {
	Op       string
	CohortID string
	Location Location
	Field    string
	Err      error
}

func (e *OverrideError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Field == "" {
		return fmt.Sprintf("ccx: %s cohort=%s location=%s: %v", e.Op, e.CohortID, e.Location, e.Err)
	}
	return fmt.Sprintf("ccx: %s cohort=%s location=%s field=%s: %v", e.Op, e.CohortID, e.Location, e.Field, e.Err)
}

func (e *OverrideError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func wrapOverrideError(op string, cohort Cohort, location Location, field string, err error) error {
	if err == nil {
		return nil
	}
	var overrideErr *OverrideError
	if errors.As(err, &overrideErr) {
		return err
	}
	return &OverrideError{
		Op:       op,
		CohortID: cohort.ID,
		Location: location,
		Field:    field,
		Err:      err,
	}
}
