package pairing

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pair-run/pair/internal/agentprovider"
	"github.com/pair-run/pair/pkg/types"
)

func TestNavigatorControllerDisallowsReviewableTools(t *testing.T) {
	sess := agentprovider.NewMockSession(4)
	sess.Close()

	var captured agentprovider.Config
	r := agentprovider.NewRegistry()
	r.Register("mock", func(ctx context.Context, cfg agentprovider.Config) (agentprovider.Session, error) {
		captured = cfg
		return sess, nil
	})

	_, err := NewNavigatorController(context.Background(), r, "mock", agentprovider.Config{}, zerolog.Nop())
	require.NoError(t, err)

	assert.Contains(t, captured.DisallowedTools, "Write")
	assert.Contains(t, captured.DisallowedTools, "Edit")
	assert.Contains(t, captured.DisallowedTools, "MultiEdit")
	assert.Contains(t, captured.DisallowedTools, "NotebookEdit")
}

type processResult struct {
	cmds []types.NavigatorCommand
	err  error
}

func TestNavigatorControllerProcessDriverMessageReturnsCommandBatch(t *testing.T) {
	sess := agentprovider.NewMockSession(8)
	n, err := NewNavigatorController(context.Background(), newTestRegistry(sess), "mock", agentprovider.Config{}, zerolog.Nop())
	require.NoError(t, err)

	resC := make(chan processResult, 1)
	go func() {
		cmds, err := n.ProcessDriverMessage(context.Background(), "Tool: Write - a.go", false)
		resC <- processResult{cmds, err}
	}()

	sess.Push(agentprovider.Message{
		Kind: agentprovider.MessageAssistant,
		Parts: []agentprovider.Part{
			{Kind: agentprovider.PartToolUse, ToolUse: &agentprovider.ToolUse{
				ID:    "t1",
				Name:  "mcp__navigator__navigatorApprove",
				Input: map[string]any{"requestId": "req-1", "comment": "fine"},
			}},
		},
	})
	sess.Push(agentprovider.Message{Kind: agentprovider.MessageResult})

	res := <-resC
	require.NoError(t, res.err)
	require.Len(t, res.cmds, 1)
	assert.Equal(t, types.NavigatorApprove, res.cmds[0].Kind)
	assert.Equal(t, "req-1", res.cmds[0].RequestID)
}

func TestNavigatorControllerReviewPermissionApprove(t *testing.T) {
	sess := agentprovider.NewMockSession(8)
	n, err := NewNavigatorController(context.Background(), newTestRegistry(sess), "mock", agentprovider.Config{}, zerolog.Nop())
	require.NoError(t, err)

	type reviewResult struct {
		result types.PermissionResult
		err    error
	}
	resC := make(chan reviewResult, 1)
	go func() {
		result, err := n.ReviewPermission(context.Background(), types.PermissionRequest{
			RequestID:        "req-1",
			ToolName:         "Write",
			DriverTranscript: "Tool: Write - a.go",
		})
		resC <- reviewResult{result, err}
	}()

	sess.Push(agentprovider.Message{
		Kind: agentprovider.MessageAssistant,
		Parts: []agentprovider.Part{
			{Kind: agentprovider.PartToolUse, ToolUse: &agentprovider.ToolUse{
				ID:    "t1",
				Name:  "mcp__navigator__navigatorApprove",
				Input: map[string]any{"requestId": "req-1"},
			}},
		},
	})
	sess.Push(agentprovider.Message{Kind: agentprovider.MessageResult})

	res := <-resC
	require.NoError(t, res.err)
	assert.True(t, res.result.Allowed)
}

func TestNavigatorControllerReviewPermissionNoDecisionFails(t *testing.T) {
	sess := agentprovider.NewMockSession(8)
	n, err := NewNavigatorController(context.Background(), newTestRegistry(sess), "mock", agentprovider.Config{}, zerolog.Nop())
	require.NoError(t, err)

	type reviewResult struct {
		result types.PermissionResult
		err    error
	}
	resC := make(chan reviewResult, 1)
	go func() {
		result, err := n.ReviewPermission(context.Background(), types.PermissionRequest{RequestID: "req-1", ToolName: "Write"})
		resC <- reviewResult{result, err}
	}()

	sess.Push(agentprovider.Message{
		Kind:  agentprovider.MessageAssistant,
		Parts: []agentprovider.Part{{Kind: agentprovider.PartText, Text: "I'm not sure yet."}},
	})
	sess.Push(agentprovider.Message{Kind: agentprovider.MessageResult})

	res := <-resC
	assert.ErrorIs(t, res.err, ErrNoPermissionDecision)
}
