package tip

import (
	"errors"
	"fmt"
)

// maxErrorDetail bounds the error text surfaced to observers.
const maxErrorDetail = 300

// ErrTipInFlight is returned when Run is called while another tip is active.
var ErrTipInFlight = errors.New("a tip is already in progress")

// ErrNothingToRetry is returned by Retry when no failed tip is held.
var ErrNothingToRetry = errors.New("no failed tip to retry")

// StepFailure records the step a tip failed at.
type StepFailure struct {
	Step Step
	Err  error
}

func (e *StepFailure) Error() string {
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e *StepFailure) Unwrap() error {
	return e.Err
}

// truncateDetail shortens error text so observers get a bounded message.
func truncateDetail(s string) string {
	if len(s) <= maxErrorDetail {
		return s
	}
	return s[:maxErrorDetail] + "..."
}
