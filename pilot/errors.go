package pilot

import (
	"errors"
	"fmt"
)

var (
	// ErrTabQuery is returned when the host fails to list tabs.
	ErrTabQuery = errors.New("pilot: tab query failed")
	// ErrNoTabs is returned when a tab query succeeds but matches nothing.
	ErrNoTabs = errors.New("pilot: no matching tabs")
	// ErrNoTaskID is returned when no candidate tab URL carries a task ID.
	ErrNoTaskID = errors.New("pilot: no task id found")
	// ErrNoTaskURL is returned when the first task tab has no URL.
	ErrNoTaskURL = errors.New("pilot: first task tab has no url")
	// ErrPermissionDenied is returned when the user declines a permission prompt.
	ErrPermissionDenied = errors.New("pilot: permission denied")
	// ErrPrerequisite is returned when a setting depends on a toggle that is off.
	ErrPrerequisite = errors.New("pilot: prerequisite setting disabled")
	// ErrInvalidSetting is returned for a malformed settings value or name.
	ErrInvalidSetting = errors.New("pilot: invalid setting")
)

// ValidationError reports the first tab/window field that failed the final
// orchestration check.
type ValidationError struct {
	Field    string
	Expected any
	Actual   any
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("pilot: validation failed on %s: expected %v, got %v", e.Field, e.Expected, e.Actual)
}
