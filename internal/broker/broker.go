// Package broker gates reviewable tool calls behind the Navigator. Every
// Write, Edit, MultiEdit, or NotebookEdit attempted by the Driver is
// suspended here, turned into a PermissionRequest, and forwarded for
// review; the call resumes only once a PermissionResult is resolved, a
// timeout elapses, or the run is cancelled.
package broker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/pair-run/pair/internal/event"
	"github.com/pair-run/pair/pkg/types"
)

// ReviewableTools is the fixed set of tool names the broker gates.
var ReviewableTools = map[string]bool{
	"Write":        true,
	"Edit":         true,
	"MultiEdit":    true,
	"NotebookEdit": true,
}

// ErrPermissionTimeout is returned by Request when no PermissionResult
// arrives within the configured timeout.
var ErrPermissionTimeout = errors.New("broker: permission request timed out")

// ErrMalformedResult is returned when Resolve is called with a result
// that fails basic shape validation (spec.md's PermissionMalformedError).
var ErrMalformedResult = errors.New("broker: malformed permission result")

type pendingRequest struct {
	request types.PermissionRequest
	resultC chan types.PermissionResult
}

// Broker is the permission gate between the Driver and the Navigator.
type Broker struct {
	mu       sync.Mutex
	pending  map[string]*pendingRequest
	timeout  time.Duration
	doomLoop *DoomLoopDetector
	log      zerolog.Logger
}

// New creates a Broker with the given permission-wait timeout. log is used
// to report requests and resolutions the broker cannot otherwise surface,
// such as a Resolve for a requestId it no longer recognizes.
func New(timeout time.Duration, log zerolog.Logger) *Broker {
	return &Broker{
		pending:  make(map[string]*pendingRequest),
		timeout:  timeout,
		doomLoop: NewDoomLoopDetector(),
		log:      log,
	}
}

// Timeout returns the configured permission-wait timeout.
func (b *Broker) Timeout() time.Duration {
	return b.timeout
}

// IsReviewable reports whether toolName is one of the four gated tools.
func IsReviewable(toolName string) bool {
	return ReviewableTools[toolName]
}

// Request suspends a reviewable tool call and blocks until it is
// resolved, times out, or ctx is cancelled. driverTranscript is the
// flushed DriverBuffer content to attach for the Navigator's review.
func (b *Broker) Request(ctx context.Context, toolID, toolName string, input map[string]any, driverTranscript string) (types.PermissionResult, error) {
	requestID := ulid.Make().String()
	transcript := driverTranscript
	if diff := FormatDiff(toolName, input); diff != "" {
		transcript = transcript + "\n\n" + diff
	}
	req := types.PermissionRequest{
		RequestID:        requestID,
		DriverTranscript: transcript,
		ToolName:         toolName,
		Input:            input,
		ToolID:           toolID,
	}

	pr := &pendingRequest{request: req, resultC: make(chan types.PermissionResult, 1)}
	b.mu.Lock()
	b.pending[requestID] = pr
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		delete(b.pending, requestID)
		b.mu.Unlock()
	}()

	event.PublishSync(event.Event{
		Type: event.PermissionRequested,
		Data: event.PermissionRequestedData{Request: req},
	})

	timer := time.NewTimer(b.timeout)
	defer timer.Stop()

	select {
	case result := <-pr.resultC:
		return result, nil
	case <-ctx.Done():
		return types.PermissionResult{}, ctx.Err()
	case <-timer.C:
		return types.PermissionResult{}, ErrPermissionTimeout
	}
}

// Resolve delivers a PermissionResult for an outstanding request. If the
// request is unknown (already timed out or resolved) it logs a warning,
// drops the result, and returns nil.
func (b *Broker) Resolve(requestID string, result types.PermissionResult) error {
	if requestID == "" {
		return ErrMalformedResult
	}

	b.mu.Lock()
	pr, ok := b.pending[requestID]
	b.mu.Unlock()
	if !ok {
		b.log.Warn().Str("requestId", requestID).Msg("resolve for unknown or already-settled permission request, dropping")
		return nil
	}

	event.PublishSync(event.Event{
		Type: event.PermissionResolved,
		Data: event.PermissionResolvedData{RequestID: requestID, Result: result},
	})

	select {
	case pr.resultC <- result:
	default:
	}
	return nil
}

// CheckDoomLoop reports whether the given tool call repeats a recent
// pattern for sessionID often enough to count as a doom loop.
func (b *Broker) CheckDoomLoop(sessionID, toolName string, input map[string]any) bool {
	return b.doomLoop.Check(sessionID, toolName, input)
}

// ResetDoomLoop clears doom-loop history for a session, called once a
// Driver tool call is approved.
func (b *Broker) ResetDoomLoop(sessionID string) {
	b.doomLoop.Reset(sessionID)
}

// PendingCount returns the number of outstanding permission requests.
func (b *Broker) PendingCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}
