package pairing

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pair-run/pair/internal/agentprovider"
	"github.com/pair-run/pair/internal/broker"
	"github.com/pair-run/pair/internal/event"
	"github.com/pair-run/pair/internal/tracker"
	"github.com/pair-run/pair/pkg/types"
)

func newTestRegistry(sess *agentprovider.MockSession) *agentprovider.Registry {
	r := agentprovider.NewRegistry()
	r.Register("mock", func(ctx context.Context, cfg agentprovider.Config) (agentprovider.Session, error) {
		return sess, nil
	})
	return r
}

type startResult struct {
	texts []string
	err   error
}

func TestDriverControllerCollectsTextAndCommands(t *testing.T) {
	sess := agentprovider.NewMockSession(8)
	tr := tracker.New()
	br := broker.New(time.Second, zerolog.Nop())

	d, err := NewDriverController(context.Background(), newTestRegistry(sess), "mock", agentprovider.Config{}, tr, br, zerolog.Nop())
	require.NoError(t, err)

	resC := make(chan startResult, 1)
	go func() {
		texts, err := d.StartImplementation(context.Background(), "add logout button", "1. Add handler.")
		resC <- startResult{texts, err}
	}()

	sess.Push(agentprovider.Message{
		Kind: agentprovider.MessageAssistant,
		Parts: []agentprovider.Part{
			{Kind: agentprovider.PartText, Text: "Looking at the header component first."},
			{Kind: agentprovider.PartToolUse, ToolUse: &agentprovider.ToolUse{
				ID:    "t1",
				Name:  "mcp__driver__driverRequestGuidance",
				Input: map[string]any{"context": "not sure which file owns the nav bar"},
			}},
		},
	})
	sess.Push(agentprovider.Message{Kind: agentprovider.MessageResult})

	res := <-resC
	require.NoError(t, res.err)
	assert.Equal(t, []string{"Looking at the header component first."}, res.texts)

	cmds := d.GetAndClearDriverCommands()
	require.Len(t, cmds, 1)
	assert.Equal(t, types.DriverRequestGuidance, cmds[0].Kind)
	assert.Equal(t, "not sure which file owns the nav bar", cmds[0].Context)
}

func TestDriverControllerDiscardsTextAfterRequestReview(t *testing.T) {
	sess := agentprovider.NewMockSession(8)
	tr := tracker.New()
	br := broker.New(time.Second, zerolog.Nop())

	d, err := NewDriverController(context.Background(), newTestRegistry(sess), "mock", agentprovider.Config{}, tr, br, zerolog.Nop())
	require.NoError(t, err)

	resC := make(chan startResult, 1)
	go func() {
		texts, err := d.StartImplementation(context.Background(), "task", "plan")
		resC <- startResult{texts, err}
	}()

	sess.Push(agentprovider.Message{
		Kind: agentprovider.MessageAssistant,
		Parts: []agentprovider.Part{
			{Kind: agentprovider.PartText, Text: "Implementation looks complete."},
			{Kind: agentprovider.PartToolUse, ToolUse: &agentprovider.ToolUse{
				ID:    "t1",
				Name:  "mcp__driver__driverRequestReview",
				Input: map[string]any{"context": "ready for review"},
			}},
			{Kind: agentprovider.PartText, Text: "trailing text the loop will never see"},
		},
	})
	sess.Push(agentprovider.Message{Kind: agentprovider.MessageResult})

	res := <-resC
	require.NoError(t, res.err)
	assert.Equal(t, []string{"Implementation looks complete."}, res.texts)

	cmds := d.GetAndClearDriverCommands()
	require.Len(t, cmds, 1)
	assert.Equal(t, types.DriverRequestReview, cmds[0].Kind)

	transcript := d.buffer.Flush()
	assert.Contains(t, transcript, "Implementation looks complete.")
	assert.Contains(t, transcript, "trailing text the loop will never see")
}

func TestDriverControllerGuardsReviewableToolThroughBroker(t *testing.T) {
	sess := agentprovider.NewMockSession(8)
	tr := tracker.New()
	br := broker.New(5*time.Second, zerolog.Nop())

	d, err := NewDriverController(context.Background(), newTestRegistry(sess), "mock", agentprovider.Config{}, tr, br, zerolog.Nop())
	require.NoError(t, err)

	var requestID string
	requestSeen := make(chan struct{})
	unsubscribe := event.Subscribe(event.PermissionRequested, func(e event.Event) {
		data := e.Data.(event.PermissionRequestedData)
		requestID = data.Request.RequestID
		close(requestSeen)
	})
	defer unsubscribe()

	decisionC := make(chan agentprovider.PermissionDecision, 1)
	go func() {
		decision, err := d.guard(context.Background(), "Write", map[string]any{"file_path": "a.go"}, "call-1")
		require.NoError(t, err)
		decisionC <- decision
	}()

	<-requestSeen
	require.NoError(t, br.Resolve(requestID, types.PermissionResult{Allowed: true, Comment: "looks good"}))

	decision := <-decisionC
	assert.True(t, decision.Allow)
	assert.Equal(t, 1, tr.Len())
}

func TestDriverControllerGuardSynthesizesTimeoutMessage(t *testing.T) {
	sess := agentprovider.NewMockSession(8)
	tr := tracker.New()
	br := broker.New(10*time.Millisecond, zerolog.Nop())

	d, err := NewDriverController(context.Background(), newTestRegistry(sess), "mock", agentprovider.Config{}, tr, br, zerolog.Nop())
	require.NoError(t, err)

	decision, err := d.guard(context.Background(), "Write", map[string]any{"file_path": "a.go"}, "call-1")
	require.ErrorIs(t, err, broker.ErrPermissionTimeout)
	assert.False(t, decision.Allow)
	assert.Equal(t, "Navigator did not respond within 10 ms", decision.Message)
}

func TestDriverControllerGuardDeniesDoomLoopWithoutReview(t *testing.T) {
	sess := agentprovider.NewMockSession(8)
	tr := tracker.New()
	br := broker.New(5*time.Second, zerolog.Nop())

	d, err := NewDriverController(context.Background(), newTestRegistry(sess), "mock", agentprovider.Config{}, tr, br, zerolog.Nop())
	require.NoError(t, err)

	input := map[string]any{"file_path": "a.go"}
	for i := 0; i < broker.DoomLoopThreshold-1; i++ {
		br.CheckDoomLoop(d.sessionID, "Write", input)
	}

	decision, err := d.guard(context.Background(), "Write", input, "call-1")
	require.NoError(t, err)
	assert.False(t, decision.Allow)
	assert.Contains(t, decision.Message, "driverRequestGuidance")
	assert.Equal(t, 0, br.PendingCount())
}

func TestDriverControllerStopInterruptsAndEnds(t *testing.T) {
	sess := agentprovider.NewMockSession(4)
	sess.Close()
	tr := tracker.New()
	br := broker.New(time.Second, zerolog.Nop())

	d, err := NewDriverController(context.Background(), newTestRegistry(sess), "mock", agentprovider.Config{}, tr, br, zerolog.Nop())
	require.NoError(t, err)

	require.NoError(t, d.Stop())
	assert.True(t, sess.Interrupted())
}
