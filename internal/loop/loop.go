package loop

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/pair-run/pair/internal/agentprovider"
	"github.com/pair-run/pair/internal/architect"
	"github.com/pair-run/pair/internal/broker"
	"github.com/pair-run/pair/internal/config"
	"github.com/pair-run/pair/internal/event"
	"github.com/pair-run/pair/internal/pairing"
	"github.com/pair-run/pair/internal/tracker"
	"github.com/pair-run/pair/pkg/types"
)

// completionPhrases is the case-insensitive completion-intent heuristic
// of spec.md §4.6: Driver text matching one of these without an explicit
// request_review earns a single nudge to call the review tool.
var completionPhrases = []string{
	"implementation is complete",
	"i have completed",
	"finished implementation",
	"ready for review",
	"request a review",
	"should now request a review",
	"please review my work",
}

const (
	pollInterval   = 200 * time.Millisecond
	guidancePrompt = "Continue with your implementation based on the guidance provided."
	continuePrompt = "Please continue."
	nudgePrompt    = "It sounds like the implementation may be done. If so, call mcp__driver__driverRequestReview now to request a review."
	reviewFallback = "Please address the review comments and continue."
)

// Outcome is the terminal result of a run.
type Outcome string

const (
	OutcomeComplete Outcome = "complete"
	OutcomeFailed   Outcome = "failed"
)

// Result is what Run returns once a run terminates. The loop registers
// and calls no exit hook; the caller of Run reports the Result.
type Result struct {
	Outcome Outcome
	Summary string
	Reason  string
	Err     error
}

// RunOptions are the per-run inputs to ImplementationLoop.Run.
type RunOptions struct {
	Task        string
	ProjectPath string

	// DriverMCPEndpoint and NavigatorMCPEndpoint are forwarded into each
	// role's agentprovider.Config.MCPEndpoint. Neither built-in backend
	// reads that field: claude-code hosts the six tools itself (see
	// internal/agentprovider/claudecode.go's tool catalog), and opencode
	// does not pass it on to its server.
	DriverMCPEndpoint    string
	NavigatorMCPEndpoint string
}

// ImplementationLoop is the top-level state machine coordinating the
// Architect, Driver, and Navigator per spec.md §4.6.
type ImplementationLoop struct {
	cfg      *config.Config
	registry *agentprovider.Registry
	tracker  *tracker.Tracker
	broker   *broker.Broker
	log      zerolog.Logger

	state *types.SessionState
	opts  RunOptions
}

// New creates an ImplementationLoop. tr and br are shared with the Driver
// controller the loop constructs once planning completes.
func New(cfg *config.Config, registry *agentprovider.Registry, tr *tracker.Tracker, br *broker.Broker, log zerolog.Logger) *ImplementationLoop {
	return &ImplementationLoop{cfg: cfg, registry: registry, tracker: tr, broker: br, log: log}
}

// State returns the loop's SessionState, valid once Run has started.
func (l *ImplementationLoop) State() *types.SessionState {
	return l.state
}

// Run executes one end-to-end pairing session, blocking until the loop
// reaches COMPLETE or FAILED.
func (l *ImplementationLoop) Run(ctx context.Context, opts RunOptions) Result {
	if err := validate(opts.Task, l.cfg.MaxPromptLength); err != nil {
		return Result{Outcome: OutcomeFailed, Reason: "validation", Err: err}
	}
	if info, err := os.Stat(opts.ProjectPath); err != nil || !info.IsDir() {
		return Result{Outcome: OutcomeFailed, Reason: "validation", Err: &ValidationError{
			Reason: fmt.Sprintf("project path %q is not an accessible directory", opts.ProjectPath),
		}}
	}

	l.opts = opts
	deadline := time.Now().Add(time.Duration(l.cfg.SessionHardLimitMin * float64(time.Minute)))
	l.state = types.NewSessionState(deadline.UnixMilli())

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	a := architect.New(l.registry, l.log)
	plan, err := a.CreatePlan(runCtx, l.cfg.Architect.Provider, l.sessionConfig(l.cfg.Architect, opts.ProjectPath, "", l.cfg.DriverMaxTurns), opts.Task)
	if err != nil {
		return l.failed(fmt.Errorf("%w: %v", ErrArchitectFailure, err))
	}
	l.state.SetPlan(plan)
	event.PublishSync(event.Event{Type: event.PlanReady, Data: event.PlanReadyData{Plan: plan}})

	navigator, err := pairing.NewNavigatorController(
		runCtx, l.registry, l.cfg.Navigator.Provider,
		l.sessionConfig(l.cfg.Navigator, opts.ProjectPath, opts.NavigatorMCPEndpoint, l.cfg.NavigatorMaxTurns),
		l.log,
	)
	if err != nil {
		return l.failed(fmt.Errorf("%w: %v", ErrProviderTransport, err))
	}
	defer navigator.Stop()

	if err := navigator.Initialize(runCtx, opts.Task, plan); err != nil {
		return l.failed(fmt.Errorf("%w: %v", ErrProviderTransport, err))
	}

	driver, err := pairing.NewDriverController(
		runCtx, l.registry, l.cfg.Driver.Provider,
		l.sessionConfig(l.cfg.Driver, opts.ProjectPath, opts.DriverMCPEndpoint, l.cfg.DriverMaxTurns),
		l.tracker, l.broker, l.log,
	)
	if err != nil {
		return l.failed(fmt.Errorf("%w: %v", ErrProviderTransport, err))
	}
	defer driver.Stop()

	// handlePermissionRequests runs for runCtx's lifetime; cancel (deferred
	// above) tears it down once Run returns, there is nothing further to
	// wait on here.
	go l.handlePermissionRequests(runCtx, navigator)

	l.state.SetPhase(types.PhaseExecution)
	driverTexts, err := driver.StartImplementation(runCtx, opts.Task, plan)
	if err != nil {
		return l.failed(fmt.Errorf("%w: %v", ErrProviderTransport, err))
	}

	return l.execute(runCtx, driver, navigator, driverTexts, deadline)
}

// handlePermissionRequests serializes every PermissionRequested event
// through the Navigator's ReviewPermission and resolves it on the broker,
// for the lifetime of runCtx. This is the third concurrent task of
// spec.md §5: the loop's main state machine and the Driver/Navigator
// session consumers are the other two.
func (l *ImplementationLoop) handlePermissionRequests(ctx context.Context, navigator *pairing.NavigatorController) {
	inflight := make(chan struct{}, 1)
	unsubscribe := event.Subscribe(event.PermissionRequested, func(e event.Event) {
		data, ok := e.Data.(event.PermissionRequestedData)
		if !ok {
			return
		}
		select {
		case inflight <- struct{}{}:
		case <-ctx.Done():
			return
		}
		go func() {
			defer func() { <-inflight }()
			l.resolvePermission(ctx, navigator, data.Request)
		}()
	})
	defer unsubscribe()

	<-ctx.Done()
}

func (l *ImplementationLoop) resolvePermission(ctx context.Context, navigator *pairing.NavigatorController, request types.PermissionRequest) {
	l.tracker.AssociatePermissionRequest(request.ToolID, request.RequestID)

	result, err := navigator.ReviewPermission(ctx, request)
	if err != nil {
		var typed error = &PermissionMalformedError{ToolID: request.ToolID}
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			typed = &PermissionTimeoutError{ToolID: request.ToolID, ToolName: request.ToolName}
		}
		l.log.Warn().Err(typed).Str("requestId", request.RequestID).Msg("navigator gave no decision, denying")
		result = types.PermissionResult{Allowed: false, Reason: typed.Error()}
	}
	if err := l.broker.Resolve(request.RequestID, result); err != nil {
		l.log.Warn().Err(err).Str("requestId", request.RequestID).Msg("resolving permission request")
	}
}

// execute runs the EXECUTING/REVIEWING cycle described in spec.md §4.6.
func (l *ImplementationLoop) execute(ctx context.Context, driver *pairing.DriverController, navigator *pairing.NavigatorController, driverTexts []string, deadline time.Time) Result {
	nudgedThisStall := false

	for {
		if time.Now().After(deadline) {
			return l.complete("", "time_limit")
		}

		commands := driver.GetAndClearDriverCommands()
		reviewRequested := false
		guidanceRequested := false
		for _, cmd := range commands {
			switch cmd.Kind {
			case types.DriverRequestReview:
				reviewRequested = true
			case types.DriverRequestGuidance:
				guidanceRequested = true
			}
		}

		switch {
		case reviewRequested:
			if err := driver.Stop(); err != nil {
				l.log.Warn().Err(err).Msg("stopping driver for review")
			}
			l.state.SetPhase(types.PhaseReview)
			transcript := driver.FlushTranscript()

			result, err := l.review(ctx, navigator, transcript)
			if err != nil {
				return l.failed(fmt.Errorf("%w: %v", ErrProviderTransport, err))
			}
			return result

		case guidanceRequested:
			transcript := driver.FlushTranscript()
			if _, err := navigator.ProcessDriverMessage(ctx, transcript, false); err != nil {
				return l.failed(fmt.Errorf("%w: %v", ErrProviderTransport, err))
			}
			nudgedThisStall = false
			var err error
			driverTexts, err = driver.ContinueWithFeedback(ctx, guidancePrompt)
			if err != nil {
				return l.failed(fmt.Errorf("%w: %v", ErrProviderTransport, err))
			}

		case allEmpty(driverTexts):
			nudgedThisStall = false
			var err error
			driverTexts, err = driver.ContinueWithFeedback(ctx, continuePrompt)
			if err != nil {
				return l.failed(fmt.Errorf("%w: %v", ErrProviderTransport, err))
			}

		case !nudgedThisStall && matchesCompletionIntent(driverTexts):
			nudgedThisStall = true
			var err error
			driverTexts, err = driver.ContinueWithFeedback(ctx, nudgePrompt)
			if err != nil {
				return l.failed(fmt.Errorf("%w: %v", ErrProviderTransport, err))
			}

		default:
			select {
			case <-ctx.Done():
				return l.failed(fmt.Errorf("%w: %v", ErrCancelled, ctx.Err()))
			case <-time.After(pollInterval):
			}
		}
	}
}

// review runs the REVIEWING phase to a conclusion: either COMPLETE, or a
// fresh pass through EXECUTING carrying the Navigator's feedback as the
// Driver's next prompt.
func (l *ImplementationLoop) review(ctx context.Context, navigator *pairing.NavigatorController, driverTranscript string) (Result, error) {
	commands, err := retryNavigatorReview(ctx, func() ([]types.NavigatorCommand, error) {
		return navigator.ProcessDriverMessage(ctx, driverTranscript, true)
	})
	if err != nil {
		if err == ErrNavigatorEmptyBatch {
			// Exhausted retries: treat as a transient failure and fall back
			// to EXECUTING with a neutral prompt, per spec.md §4.6.
			return l.resumeExecutionAfterReview(ctx, navigator, continuePrompt)
		}
		return Result{}, err
	}

	pass, comment, hasVerdict := reviewVerdict(commands)
	if !hasVerdict {
		return l.resumeExecutionAfterReview(ctx, navigator, continuePrompt)
	}
	if pass {
		return l.complete(comment, ""), nil
	}

	if comment == "" {
		comment = reviewFallback
	}
	return l.resumeExecutionAfterReview(ctx, navigator, comment)
}

// resumeExecutionAfterReview re-opens the Driver session with prompt as
// its next turn and re-enters the EXECUTING loop.
func (l *ImplementationLoop) resumeExecutionAfterReview(ctx context.Context, navigator *pairing.NavigatorController, prompt string) (Result, error) {
	l.state.SetPhase(types.PhaseExecution)

	driver, err := pairing.NewDriverController(
		ctx, l.registry, l.cfg.Driver.Provider,
		l.sessionConfig(l.cfg.Driver, l.opts.ProjectPath, l.opts.DriverMCPEndpoint, l.cfg.DriverMaxTurns),
		l.tracker, l.broker, l.log,
	)
	if err != nil {
		return Result{}, err
	}
	defer driver.Stop()

	driverTexts, err := driver.ContinueWithFeedback(ctx, prompt)
	if err != nil {
		return Result{}, err
	}
	return l.execute(ctx, driver, navigator, driverTexts, time.UnixMilli(l.state.Deadline)), nil
}

// reviewVerdict resolves the "both navigatorComplete and a passing
// code_review appear in the same batch" ambiguity the spec leaves open
// (§9): the later command in stream order wins.
func reviewVerdict(commands []types.NavigatorCommand) (pass bool, comment string, ok bool) {
	for _, cmd := range commands {
		switch cmd.Kind {
		case types.NavigatorComplete:
			pass, comment, ok = true, cmd.Summary, true
		case types.NavigatorCodeReview:
			pass, comment, ok = cmd.Pass, cmd.Comment, true
		}
	}
	return pass, comment, ok
}

func matchesCompletionIntent(texts []string) bool {
	joined := strings.ToLower(strings.Join(texts, "\n"))
	for _, phrase := range completionPhrases {
		if strings.Contains(joined, phrase) {
			return true
		}
	}
	return false
}

func allEmpty(texts []string) bool {
	for _, t := range texts {
		if strings.TrimSpace(t) != "" {
			return false
		}
	}
	return true
}

func (l *ImplementationLoop) complete(summary, reason string) Result {
	l.state.SetPhase(types.PhaseComplete)
	return Result{Outcome: OutcomeComplete, Summary: summary, Reason: reason}
}

func (l *ImplementationLoop) failed(err error) Result {
	reason := "error"
	if errors.Is(err, ErrCancelled) {
		reason = "cancelled"
	}
	return Result{Outcome: OutcomeFailed, Reason: reason, Err: err}
}

func (l *ImplementationLoop) sessionConfig(binding config.ProviderBinding, projectDir, mcpEndpoint string, maxTurns int) agentprovider.Config {
	return agentprovider.Config{
		Model:       binding.Model,
		BaseURL:     binding.BaseURL,
		APIKey:      binding.Options["apiKey"],
		ProjectDir:  projectDir,
		MCPEndpoint: mcpEndpoint,
		MaxTurns:    maxTurns,
		Log:         l.log,
	}
}

func validate(task string, maxLength int) error {
	if strings.TrimSpace(task) == "" {
		return &ValidationError{Reason: "task must not be empty"}
	}
	if maxLength > 0 && len(task) > maxLength {
		return &ValidationError{Reason: fmt.Sprintf("task exceeds %d bytes", maxLength)}
	}
	return nil
}
