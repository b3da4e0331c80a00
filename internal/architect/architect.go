package architect

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pair-run/pair/internal/agentprovider"
	"github.com/pair-run/pair/internal/broker"
)

// PlanCompleteSentinel is the free-text line a planning session may emit
// instead of calling ExitPlanModeTool to signal it is done.
const PlanCompleteSentinel = "PLAN COMPLETE"

// ExitPlanModeTool is the distinguished tool name a planning session may
// call with a "plan" argument to signal it is done.
const ExitPlanModeTool = "exit_plan_mode"

// ErrNoPlan is returned when the planning session's stream ends without
// ever producing a plan.
var ErrNoPlan = errors.New("architect: no plan created")

// ErrTurnLimit is returned when the planning session hits its turn cap
// before producing a plan.
var ErrTurnLimit = errors.New("architect: turn limit reached before a plan was produced")

// Architect runs the single-shot planning session that seeds an
// implementation loop.
type Architect struct {
	registry *agentprovider.Registry
	log      zerolog.Logger
}

// New creates an Architect backed by registry.
func New(registry *agentprovider.Registry, log zerolog.Logger) *Architect {
	return &Architect{registry: registry, log: log}
}

// CreatePlan opens a planning session for providerID with cfg (the
// reviewable tools are added to its DisallowedTools so the session cannot
// mutate files; its Guard and AllowedTools are left as given), sends a
// fixed prompt derived from task, and returns the plan once the session
// signals it is done. Once a plan is found, the rest of the stream is
// drained on a background goroutine and the session is ended as
// CreatePlan returns.
func (a *Architect) CreatePlan(ctx context.Context, providerID string, cfg agentprovider.Config, task string) (string, error) {
	cfg.DisallowedTools = withReviewableToolsDisallowed(cfg.DisallowedTools)

	sess, err := a.registry.Create(ctx, providerID, cfg)
	if err != nil {
		return "", fmt.Errorf("architect: open session: %w", err)
	}
	defer sess.End()

	if err := sess.SendPrompt(ctx, planningPrompt(task)); err != nil {
		return "", fmt.Errorf("architect: send prompt: %w", err)
	}

	var text strings.Builder
	turnLimited := false

	for msg := range sess.Messages() {
		switch msg.Kind {
		case agentprovider.MessageAssistant:
			for _, part := range msg.Parts {
				switch part.Kind {
				case agentprovider.PartToolUse:
					if part.ToolUse == nil || part.ToolUse.Name != ExitPlanModeTool {
						continue
					}
					if plan, ok := part.ToolUse.Input["plan"].(string); ok && strings.TrimSpace(plan) != "" {
						go drain(sess)
						return plan, nil
					}
				case agentprovider.PartText:
					text.WriteString(part.Text)
					if plan, ok := extractSentinelPlan(text.String()); ok {
						go drain(sess)
						return plan, nil
					}
				}
			}
		case agentprovider.MessageSystem:
			if msg.Subtype == agentprovider.SubtypeTurnLimitReached {
				turnLimited = true
			}
		}
	}

	if turnLimited {
		return "", ErrTurnLimit
	}
	return "", ErrNoPlan
}

// drain discards every remaining message on sess so its provider
// goroutine never blocks on a send after the caller has stopped
// reading.
func drain(sess agentprovider.Session) {
	for range sess.Messages() {
	}
}

func extractSentinelPlan(text string) (string, bool) {
	idx := strings.Index(text, PlanCompleteSentinel)
	if idx < 0 {
		return "", false
	}
	plan := strings.TrimSpace(text[:idx])
	if plan == "" {
		return "", false
	}
	return plan, true
}

func planningPrompt(task string) string {
	return fmt.Sprintf(
		"You are planning an implementation; you may read and search the project but must not modify any files.\n\n"+
			"Task:\n%s\n\n"+
			"When you are done planning, either call the %s tool with your plan as the \"plan\" argument, "+
			"or end your final message with a line that says exactly:\n%s",
		strings.TrimSpace(task), ExitPlanModeTool, PlanCompleteSentinel,
	)
}

func withReviewableToolsDisallowed(existing []string) []string {
	out := make([]string, 0, len(existing)+len(broker.ReviewableTools))
	out = append(out, existing...)
	for name := range broker.ReviewableTools {
		out = append(out, name)
	}
	return out
}
