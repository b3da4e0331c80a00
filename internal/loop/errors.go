package loop

import (
	"errors"
	"fmt"
)

// ValidationError reports malformed run input: an empty or over-length
// task, or a project path that is not an accessible directory. The loop never starts a run that
// fails validation.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("loop: validation failed: %s", e.Reason)
}

// PermissionTimeoutError records that the Navigator's review turn itself
// was cancelled or deadlined before producing a decision. Recovered
// locally with a synthetic deny; this is distinct from the broker's own
// ErrPermissionTimeout, which guard() in internal/pairing turns into a
// deny before this package ever sees it.
type PermissionTimeoutError struct {
	ToolID   string
	ToolName string
}

func (e *PermissionTimeoutError) Error() string {
	return fmt.Sprintf("loop: permission request for %s (tool %s) timed out", e.ToolID, e.ToolName)
}

// PermissionMalformedError records that the Navigator's review turn ended
// without an approve or deny command. Recovered the same way as a
// timeout: a synthetic deny, and the run continues.
type PermissionMalformedError struct {
	ToolID string
}

func (e *PermissionMalformedError) Error() string {
	return fmt.Sprintf("loop: navigator gave no approve/deny for tool %s", e.ToolID)
}

// ErrNavigatorEmptyBatch signals that a review-context ProcessDriverMessage
// call returned no NavigatorCommand. Retried by retryNavigatorReview up to
// navigatorEmptyBatchMaxRetries times before the loop falls back to
// EXECUTING with a neutral prompt.
var ErrNavigatorEmptyBatch = errors.New("loop: navigator review produced no command")

// ErrArchitectFailure means the planning session ended without a plan.
// Fatal: the loop transitions straight to FAILED.
var ErrArchitectFailure = errors.New("loop: architect failed to produce a plan")

// ErrProviderTransport means an agent session terminated abnormally —
// its stream closed, or returned an error, with no result. Fatal for the
// run in progress.
var ErrProviderTransport = errors.New("loop: provider session terminated abnormally")

// ErrCancelled means the root cancellation signal tripped. All waiters
// fail, both sessions end, and the loop reports FAILED with reason
// "cancelled".
var ErrCancelled = errors.New("loop: run cancelled")
