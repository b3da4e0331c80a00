package pairing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/pair-run/pair/internal/agentprovider"
	"github.com/pair-run/pair/internal/broker"
	"github.com/pair-run/pair/pkg/types"
)

const navigatorSystemPrompt = "You are the Navigator in a pair-programming session. " +
	"You never edit files yourself; you review what the Driver proposes and " +
	"decide through your four tools: navigatorApprove or navigatorDeny for a " +
	"single pending file edit, navigatorCodeReview when the Driver asks for a " +
	"broader look, and navigatorComplete once the implementation genuinely " +
	"satisfies the plan. Always give a concrete comment when you deny."

// ErrNoPermissionDecision is returned when a review turn ends without the
// Navigator calling navigatorApprove or navigatorDeny.
var ErrNoPermissionDecision = errors.New("pairing: navigator gave no approve/deny decision")

// NavigatorController drives one Navigator-role agentprovider.Session,
// translating its tool calls into batches of NavigatorCommands. The same
// session is shared between the loop's main state machine and its
// permission-review path, so every public exchange (Initialize,
// ProcessDriverMessage, ReviewPermission) takes callMu for its full
// send/await round trip: a backend session is meant to have one prompt
// in flight at a time, and interleaving two would race on its history.
type NavigatorController struct {
	sess agentprovider.Session
	log  zerolog.Logger

	callMu sync.Mutex

	turnSignal chan struct{}

	mu       sync.Mutex
	commands []types.NavigatorCommand
}

// NewNavigatorController opens a new Navigator session on providerID.
// The session is hardened to disallow the four reviewable tools directly:
// the Navigator decides through its own tools, never by editing files.
func NewNavigatorController(ctx context.Context, registry *agentprovider.Registry, providerID string, cfg agentprovider.Config, log zerolog.Logger) (*NavigatorController, error) {
	n := &NavigatorController{log: log, turnSignal: make(chan struct{}, 1)}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = navigatorSystemPrompt
	}
	cfg.DisallowedTools = disallowReviewableTools(cfg.DisallowedTools)

	sess, err := registry.Create(ctx, providerID, cfg)
	if err != nil {
		return nil, fmt.Errorf("pairing: open navigator session: %w", err)
	}
	n.sess = sess
	go n.consume()
	return n, nil
}

func (n *NavigatorController) consume() {
	for msg := range n.sess.Messages() {
		switch msg.Kind {
		case agentprovider.MessageAssistant:
			n.handleAssistant(msg)
		case agentprovider.MessageSystem:
			if msg.Subtype == agentprovider.SubtypeTurnLimitReached {
				n.signalTurnDone()
			}
		case agentprovider.MessageResult:
			n.signalTurnDone()
		}
	}
}

func (n *NavigatorController) handleAssistant(msg agentprovider.Message) {
	for _, part := range msg.Parts {
		if part.Kind != agentprovider.PartToolUse || part.ToolUse == nil {
			continue
		}
		if cmd, ok := NavigatorCommandFromToolUse(*part.ToolUse); ok {
			n.mu.Lock()
			n.commands = append(n.commands, cmd)
			n.mu.Unlock()
		}
	}
}

func (n *NavigatorController) signalTurnDone() {
	select {
	case n.turnSignal <- struct{}{}:
	default:
	}
}

// Initialize primes the session with the task and the Architect's plan.
// No commands are expected from this turn.
func (n *NavigatorController) Initialize(ctx context.Context, task, plan string) error {
	n.callMu.Lock()
	defer n.callMu.Unlock()
	n.resetTurn()
	prompt := fmt.Sprintf(
		"You are reviewing a Driver who will implement the following plan.\n\nTask:\n%s\n\nPlan:\n%s",
		strings.TrimSpace(task), strings.TrimSpace(plan),
	)
	if err := n.sess.SendPrompt(ctx, prompt); err != nil {
		return fmt.Errorf("pairing: initialize navigator: %w", err)
	}
	return n.awaitTurn(ctx)
}

// ProcessDriverMessage forwards the Driver's buffered output (or its
// request_review transcript, when isReview is set) to the Navigator and
// returns the batch of NavigatorCommands it emits in response.
func (n *NavigatorController) ProcessDriverMessage(ctx context.Context, driverText string, isReview bool) ([]types.NavigatorCommand, error) {
	n.callMu.Lock()
	defer n.callMu.Unlock()
	n.resetTurn()
	prompt := driverText
	if isReview {
		prompt = fmt.Sprintf(
			"The Driver believes the implementation is complete and has requested "+
				"a full review:\n\n%s\n\nCall navigatorComplete if the plan is "+
				"genuinely satisfied, or navigatorCodeReview with specific feedback if not.",
			driverText,
		)
	}
	if err := n.sess.SendPrompt(ctx, prompt); err != nil {
		return nil, fmt.Errorf("pairing: process driver message: %w", err)
	}
	if err := n.awaitTurn(ctx); err != nil {
		return nil, err
	}
	return n.getAndClearCommands(), nil
}

// ReviewPermission asks the Navigator to decide a single pending tool
// call, ignoring any code-review command emitted in that context, and
// returns ErrNoPermissionDecision if the turn ends without an approve or
// deny.
func (n *NavigatorController) ReviewPermission(ctx context.Context, request types.PermissionRequest) (types.PermissionResult, error) {
	n.callMu.Lock()
	defer n.callMu.Unlock()
	n.resetTurn()
	prompt := formatPermissionPrompt(request)
	if err := n.sess.SendPrompt(ctx, prompt); err != nil {
		return types.PermissionResult{}, fmt.Errorf("pairing: review permission: %w", err)
	}
	if err := n.awaitTurn(ctx); err != nil {
		return types.PermissionResult{}, err
	}
	for _, cmd := range n.getAndClearCommands() {
		switch cmd.Kind {
		case types.NavigatorApprove:
			return types.PermissionResult{Allowed: true, Comment: cmd.Comment}, nil
		case types.NavigatorDeny:
			return types.PermissionResult{Allowed: false, Comment: cmd.Comment, Reason: cmd.Comment}, nil
		}
	}
	return types.PermissionResult{}, ErrNoPermissionDecision
}

func formatPermissionPrompt(request types.PermissionRequest) string {
	return fmt.Sprintf(
		"The Driver wants to run %s.\n\nRecent Driver transcript:\n%s\n\n"+
			"Call navigatorApprove or navigatorDeny (with a comment explaining why) to decide.",
		request.ToolName, request.DriverTranscript,
	)
}

func (n *NavigatorController) resetTurn() {
	select {
	case <-n.turnSignal:
	default:
	}
}

func (n *NavigatorController) awaitTurn(ctx context.Context) error {
	select {
	case <-n.turnSignal:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (n *NavigatorController) getAndClearCommands() []types.NavigatorCommand {
	n.mu.Lock()
	defer n.mu.Unlock()
	cmds := n.commands
	n.commands = nil
	return cmds
}

// Stop interrupts and ends the underlying session.
func (n *NavigatorController) Stop() error {
	n.sess.Interrupt()
	return n.sess.End()
}

func disallowReviewableTools(existing []string) []string {
	out := make([]string, 0, len(existing)+len(broker.ReviewableTools))
	out = append(out, existing...)
	for name := range broker.ReviewableTools {
		out = append(out, name)
	}
	return out
}
