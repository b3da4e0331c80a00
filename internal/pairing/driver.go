package pairing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pair-run/pair/internal/agentprovider"
	"github.com/pair-run/pair/internal/broker"
	"github.com/pair-run/pair/internal/tracker"
	"github.com/pair-run/pair/pkg/types"
)

const driverSystemPrompt = "You are the Driver in a pair-programming session. " +
	"Implement the given plan by editing files directly; a Navigator reviews " +
	"every write before it lands, so expect some edits to come back denied " +
	"with a comment explaining why. When you believe the implementation " +
	"satisfies the plan, call mcp__driver__driverRequestReview. If you are " +
	"stuck or the plan itself is wrong, call mcp__driver__driverRequestGuidance " +
	"instead of guessing."

// DriverController drives one Driver-role agentprovider.Session: it
// accumulates the Driver's output into a DriverBuffer for the permission
// broker to attach to review requests, gates every reviewable tool call
// the session attempts behind the broker, and surfaces the DriverCommands
// the Driver emits through its two well-known MCP tools.
type DriverController struct {
	sess      agentprovider.Session
	buffer    *DriverBuffer
	tracker   *tracker.Tracker
	broker    *broker.Broker
	log       zerolog.Logger
	sessionID string

	turnSignal chan struct{}

	mu          sync.Mutex
	turnTexts   []string
	commands    []types.DriverCommand
	discardRest bool
}

// NewDriverController opens a new Driver session on providerID, wiring
// its permission Guard to tr and br before the session is created so no
// tool call can race ahead of the broker being reachable.
func NewDriverController(ctx context.Context, registry *agentprovider.Registry, providerID string, cfg agentprovider.Config, tr *tracker.Tracker, br *broker.Broker, log zerolog.Logger) (*DriverController, error) {
	d := &DriverController{
		buffer:     NewDriverBuffer(),
		tracker:    tr,
		broker:     br,
		log:        log,
		sessionID:  uuid.NewString(),
		turnSignal: make(chan struct{}, 1),
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = driverSystemPrompt
	}
	cfg.Guard = d.guard

	sess, err := registry.Create(ctx, providerID, cfg)
	if err != nil {
		return nil, fmt.Errorf("pairing: open driver session: %w", err)
	}
	d.sess = sess
	go d.consume()
	return d, nil
}

// guard is installed as the session's PermissionGuard. It registers the
// attempt with the tracker, checks for a doom loop before bothering the
// Navigator with a call that is only going to repeat, flushes the
// buffered transcript for the Navigator's review, and blocks on the
// broker until a verdict, timeout, or cancellation arrives.
func (d *DriverController) guard(ctx context.Context, toolName string, input map[string]any, providerCallID string) (agentprovider.PermissionDecision, error) {
	toolID := d.tracker.Register(toolName, input, types.RoleDriver)
	d.tracker.AssociateCallID(toolID, providerCallID)

	if d.broker.CheckDoomLoop(d.sessionID, toolName, input) {
		msg := fmt.Sprintf("this %s call repeats the previous %d attempts with identical input; "+
			"call mcp__driver__driverRequestGuidance instead of retrying it again", toolName, broker.DoomLoopThreshold-1)
		d.tracker.RecordReview(toolID, types.ToolCallDenied, msg)
		return agentprovider.PermissionDecision{Message: msg}, nil
	}

	transcript := d.buffer.Flush()
	result, err := d.broker.Request(ctx, toolID, toolName, input, transcript)
	if err != nil {
		msg := err.Error()
		if errors.Is(err, broker.ErrPermissionTimeout) {
			msg = fmt.Sprintf("Navigator did not respond within %d ms", d.broker.Timeout().Milliseconds())
		}
		d.tracker.RecordReview(toolID, types.ToolCallDenied, msg)
		return agentprovider.PermissionDecision{Message: msg}, err
	}

	status := types.ToolCallDenied
	if result.Allowed {
		status = types.ToolCallApproved
		d.broker.ResetDoomLoop(d.sessionID)
	}
	d.tracker.RecordReview(toolID, status, result.Comment)

	return agentprovider.PermissionDecision{
		Allow:        result.Allowed,
		UpdatedInput: result.UpdatedInput,
		Message:      result.Reason,
	}, nil
}

// consume drains the session's message stream for its entire lifetime,
// feeding the DriverBuffer and the DriverCommand queue, and signals
// turn completion on every MessageResult or turn-limit system message.
func (d *DriverController) consume() {
	for msg := range d.sess.Messages() {
		switch msg.Kind {
		case agentprovider.MessageAssistant:
			d.handleAssistant(msg)
		case agentprovider.MessageSystem:
			if msg.Subtype == agentprovider.SubtypeTurnLimitReached {
				d.signalTurnDone()
			}
		case agentprovider.MessageResult:
			d.signalTurnDone()
		}
	}
}

func (d *DriverController) handleAssistant(msg agentprovider.Message) {
	for _, part := range msg.Parts {
		switch part.Kind {
		case agentprovider.PartText:
			if part.Text == "" {
				continue
			}
			d.buffer.AppendText(part.Text)
			d.mu.Lock()
			if !d.discardRest {
				d.turnTexts = append(d.turnTexts, part.Text)
			}
			d.mu.Unlock()
		case agentprovider.PartToolUse:
			if part.ToolUse == nil {
				continue
			}
			d.buffer.AppendToolSummary(part.ToolUse.Name, toolSubject(part.ToolUse.Input))
			if cmd, ok := DriverCommandFromToolUse(*part.ToolUse); ok {
				d.mu.Lock()
				d.commands = append(d.commands, cmd)
				// A request_review declares the turn's remaining output
				// moot: the loop stops the Driver as soon as it observes
				// this command, so there is no point accumulating more
				// assistant text for a turn that's already over.
				if cmd.Kind == types.DriverRequestReview {
					d.discardRest = true
				}
				d.mu.Unlock()
			}
		}
	}
}

func (d *DriverController) signalTurnDone() {
	select {
	case d.turnSignal <- struct{}{}:
	default:
	}
}

// StartImplementation sends the Architect's plan to the Driver and
// returns the assistant text emitted before the turn quiesces.
func (d *DriverController) StartImplementation(ctx context.Context, task, plan string) ([]string, error) {
	d.resetTurn()
	prompt := fmt.Sprintf("Task:\n%s\n\nPlan:\n%s\n\nImplement this plan now.",
		strings.TrimSpace(task), strings.TrimSpace(plan))
	if err := d.sess.SendPrompt(ctx, prompt); err != nil {
		return nil, fmt.Errorf("pairing: start implementation: %w", err)
	}
	return d.awaitTurn(ctx)
}

// ContinueWithFeedback sends Navigator or review feedback to the Driver
// and returns the assistant text emitted before the next quiesce point.
func (d *DriverController) ContinueWithFeedback(ctx context.Context, text string) ([]string, error) {
	d.resetTurn()
	if err := d.sess.SendPrompt(ctx, text); err != nil {
		return nil, fmt.Errorf("pairing: continue with feedback: %w", err)
	}
	return d.awaitTurn(ctx)
}

func (d *DriverController) resetTurn() {
	d.mu.Lock()
	d.turnTexts = nil
	d.discardRest = false
	d.mu.Unlock()
	select {
	case <-d.turnSignal:
	default:
	}
}

func (d *DriverController) awaitTurn(ctx context.Context) ([]string, error) {
	select {
	case <-d.turnSignal:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	texts := d.turnTexts
	d.turnTexts = nil
	return texts, nil
}

// GetAndClearDriverCommands returns the DriverCommands observed since the
// last call and clears the queue.
func (d *DriverController) GetAndClearDriverCommands() []types.DriverCommand {
	d.mu.Lock()
	defer d.mu.Unlock()
	cmds := d.commands
	d.commands = nil
	return cmds
}

// Stop interrupts and ends the underlying session.
func (d *DriverController) Stop() error {
	d.sess.Interrupt()
	return d.sess.End()
}

// FlushTranscript atomically empties the DriverBuffer and returns its
// contents, for the loop to forward alongside a request_review or
// request_guidance command. A reviewable tool call already flushes the
// buffer through guard; this covers the remainder accumulated since.
func (d *DriverController) FlushTranscript() string {
	return d.buffer.Flush()
}

func toolSubject(input map[string]any) string {
	for _, key := range []string{"file_path", "command", "pattern"} {
		if v, ok := input[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
