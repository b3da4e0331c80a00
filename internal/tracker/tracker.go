// Package tracker assigns and correlates the opaque identifiers the
// broker and the Driver/Navigator controllers use to track a tool call
// from the moment it is attempted to the moment its review is resolved.
package tracker

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/pair-run/pair/pkg/types"
)

// entry is the tracker's internal bookkeeping record for one tool call.
type entry struct {
	call      types.ToolCall
	createdAt time.Time
	waiters   []chan types.ToolCallStatus
}

// Tracker assigns monotonic opaque toolIds, correlates them with
// permission request IDs and provider call IDs, and lets callers block
// until a tool call's review is resolved.
type Tracker struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// New creates an empty Tracker.
func New() *Tracker {
	return &Tracker{entries: make(map[string]*entry)}
}

// Register creates a new ToolCall entry and returns its assigned toolId.
func (t *Tracker) Register(toolName string, input map[string]any, role types.Role) string {
	toolID := ulid.Make().String()

	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[toolID] = &entry{
		call: types.ToolCall{
			ToolID:      toolID,
			ToolName:    toolName,
			Input:       input,
			SessionRole: role,
			Timestamp:   time.Now().UnixMilli(),
			Status:      types.ToolCallPending,
		},
		createdAt: time.Now(),
	}
	return toolID
}

// AssociateCallID records the provider's own call ID for a tracked tool
// call, so a streamed result chunk can be correlated back to it.
func (t *Tracker) AssociateCallID(toolID, providerCallID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.entries[toolID]; ok {
		e.call.ProviderCallID = providerCallID
	}
}

// AssociatePermissionRequest records the broker's permission request ID
// for a tracked tool call.
func (t *Tracker) AssociatePermissionRequest(toolID, permissionRequestID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.entries[toolID]; ok {
		e.call.PermissionRequestID = permissionRequestID
	}
}

// RecordReview sets the terminal status and optional review comment for
// a tracked tool call, then wakes every goroutine blocked in
// WaitForReview on it.
func (t *Tracker) RecordReview(toolID string, status types.ToolCallStatus, comment string) {
	t.mu.Lock()
	e, ok := t.entries[toolID]
	if !ok {
		t.mu.Unlock()
		return
	}
	e.call.Status = status
	e.call.ReviewComment = comment
	waiters := e.waiters
	e.waiters = nil
	t.mu.Unlock()

	for _, ch := range waiters {
		ch <- status
		close(ch)
	}
}

// WaitForReview blocks until the tracked tool call reaches a terminal
// status, the context is cancelled, or timeout elapses. Returns the
// terminal status, or ToolCallPending with a non-nil error on timeout.
func (t *Tracker) WaitForReview(ctx context.Context, toolID string, timeout time.Duration) (types.ToolCallStatus, error) {
	t.mu.Lock()
	e, ok := t.entries[toolID]
	if !ok {
		t.mu.Unlock()
		return types.ToolCallPending, errUnknownToolID
	}
	if e.call.Status != types.ToolCallPending {
		status := e.call.Status
		t.mu.Unlock()
		return status, nil
	}
	ch := make(chan types.ToolCallStatus, 1)
	e.waiters = append(e.waiters, ch)
	t.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case status := <-ch:
		return status, nil
	case <-ctx.Done():
		return types.ToolCallPending, ctx.Err()
	case <-timer.C:
		return types.ToolCallPending, errReviewTimeout
	}
}

// Get returns the current state of a tracked tool call.
func (t *Tracker) Get(toolID string) (types.ToolCall, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[toolID]
	if !ok {
		return types.ToolCall{}, false
	}
	return e.call, true
}

// ClearOlderThan garbage-collects terminal entries created before cutoff.
// Pending entries are never removed regardless of age.
func (t *Tracker) ClearOlderThan(cutoff time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	for id, e := range t.entries {
		if e.call.Status == types.ToolCallPending {
			continue
		}
		if e.createdAt.Before(cutoff) {
			delete(t.entries, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked entries, pending or terminal.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
