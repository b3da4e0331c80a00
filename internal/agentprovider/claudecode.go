package agentprovider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"
)

// claudeSession drives a coding-agent conversation directly against the
// Anthropic Messages API, executing its own fixed tool catalog (the same
// tools a local claude-code CLI would expose) against the project
// directory. Reviewable tool calls are routed through cfg.Guard before
// they touch the filesystem.
//
// The message channel spans the session's whole lifetime, not one
// SendPrompt call: a natural turn completion or a turn-limit just ends
// that batch's goroutine, leaving the channel open for the next
// SendPrompt. Only a fatal stream error or End() closes it.
type claudeSession struct {
	mu        sync.Mutex
	client    anthropic.Client
	cfg       Config
	history   []anthropic.MessageParam
	msgs      chan Message
	cancel    context.CancelFunc
	ended     bool
	closeOnce sync.Once
}

// NewClaudeCodeSession constructs a Session backed by the Anthropic
// Messages API.
func NewClaudeCodeSession(ctx context.Context, cfg Config) (Session, error) {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	s := &claudeSession{
		client: anthropic.NewClient(opts...),
		cfg:    cfg,
		msgs:   make(chan Message, 16),
	}
	return s, nil
}

const defaultClaudeModel = "claude-sonnet-4-20250514"

func (s *claudeSession) model() anthropic.Model {
	if s.cfg.Model != "" {
		return anthropic.Model(s.cfg.Model)
	}
	return anthropic.Model(defaultClaudeModel)
}

func (s *claudeSession) SendPrompt(ctx context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return ErrSessionEnded
	}
	s.history = append(s.history, anthropic.NewUserMessage(anthropic.NewTextBlock(text)))

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	go s.runTurns(runCtx)
	return nil
}

func (s *claudeSession) Messages() <-chan Message {
	return s.msgs
}

func (s *claudeSession) Interrupt() {
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *claudeSession) End() error {
	s.mu.Lock()
	s.ended = true
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()
	s.closeOnce.Do(func() { close(s.msgs) })
	return nil
}

// runTurns drains turns until the model stops requesting tools, the turn
// cap is hit, or the context is cancelled.
func (s *claudeSession) runTurns(ctx context.Context) {
	maxTurns := s.cfg.MaxTurns
	if maxTurns <= 0 {
		maxTurns = 1
	}

	for turn := 0; turn < maxTurns; turn++ {
		select {
		case <-ctx.Done():
			return
		default:
		}

		s.mu.Lock()
		params := anthropic.MessageNewParams{
			Model:     s.model(),
			MaxTokens: 8192,
			Messages:  s.history,
			Tools:     s.toolCatalog(),
		}
		s.mu.Unlock()
		if s.cfg.SystemPrompt != "" {
			params.System = []anthropic.TextBlockParam{{Text: s.cfg.SystemPrompt}}
		}

		stream := s.client.Messages.NewStreaming(ctx, params)
		assistantParts, toolUses, err := s.drainStream(ctx, stream)
		if err != nil {
			s.emitSystem(SubtypeConversationEnded)
			s.closeOnce.Do(func() { close(s.msgs) })
			return
		}

		s.emit(Message{Kind: MessageAssistant, Parts: assistantParts})
		if len(toolUses) == 0 {
			s.emit(Message{Kind: MessageResult})
			return
		}

		content := make([]anthropic.ContentBlockParamUnion, 0, len(assistantParts))
		for _, p := range assistantParts {
			if p.Kind == PartText {
				content = append(content, anthropic.NewTextBlock(p.Text))
			}
			if p.Kind == PartToolUse {
				content = append(content, anthropic.NewToolUseBlock(p.ToolUse.ID, p.ToolUse.Input, p.ToolUse.Name))
			}
		}
		s.mu.Lock()
		s.history = append(s.history, anthropic.NewAssistantMessage(content...))
		s.mu.Unlock()

		results := s.executeToolUses(ctx, toolUses)
		resultBlocks := make([]anthropic.ContentBlockParamUnion, 0, len(results))
		for _, r := range results {
			resultBlocks = append(resultBlocks, anthropic.NewToolResultBlock(r.ToolUseID, r.Content, r.IsError))
			s.emit(Message{Kind: MessageUser, Parts: []Part{{Kind: PartToolResult, ToolResult: &r}}})
		}
		s.mu.Lock()
		s.history = append(s.history, anthropic.NewUserMessage(resultBlocks...))
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return
		default:
		}
	}

	s.emitSystem(SubtypeTurnLimitReached)
}

func (s *claudeSession) emit(m Message) {
	s.msgs <- m
}

func (s *claudeSession) emitSystem(subtype SystemSubtype) {
	s.emit(Message{Kind: MessageSystem, Subtype: subtype})
}

// drainStream consumes one streamed response, returning its ordered
// content parts and the tool_use blocks it requested.
func (s *claudeSession) drainStream(ctx context.Context, stream *ssestream.Stream[anthropic.MessageStreamEventUnion]) ([]Part, []ToolUse, error) {
	var parts []Part
	var toolUses []ToolUse

	var curToolID, curToolName string
	var curInput strings.Builder
	inTool := false

	for stream.Next() {
		event := stream.Current()
		switch event.Type {
		case "content_block_start":
			block := event.AsContentBlockStart().ContentBlock
			if block.Type == "tool_use" {
				tu := block.AsToolUse()
				curToolID, curToolName = tu.ID, tu.Name
				curInput.Reset()
				inTool = true
			}
		case "content_block_delta":
			delta := event.AsContentBlockDelta().Delta
			switch delta.Type {
			case "text_delta":
				if delta.Text != "" {
					parts = append(parts, Part{Kind: PartText, Text: delta.Text})
				}
			case "input_json_delta":
				curInput.WriteString(delta.PartialJSON)
			}
		case "content_block_stop":
			if inTool {
				var input map[string]any
				_ = json.Unmarshal([]byte(curInput.String()), &input)
				tu := ToolUse{ID: curToolID, Name: curToolName, Input: input}
				toolUses = append(toolUses, tu)
				parts = append(parts, Part{Kind: PartToolUse, ToolUse: &tu})
				inTool = false
			}
		}
	}
	if err := stream.Err(); err != nil {
		return nil, nil, err
	}
	return parts, toolUses, nil
}

func (s *claudeSession) executeToolUses(ctx context.Context, uses []ToolUse) []ToolResult {
	results := make([]ToolResult, 0, len(uses))
	for _, u := range uses {
		if reviewable(u.Name) && s.cfg.Guard != nil {
			decision, err := s.cfg.Guard(ctx, u.Name, u.Input, u.ID)
			if err != nil || !decision.Allow {
				msg := "denied"
				if decision.Message != "" {
					msg = decision.Message
				}
				results = append(results, ToolResult{ToolUseID: u.ID, Content: msg, IsError: true})
				continue
			}
			if decision.UpdatedInput != nil {
				u.Input = decision.UpdatedInput
			}
		}
		output, isErr := executeBuiltinTool(ctx, s.cfg.ProjectDir, u.Name, u.Input)
		results = append(results, ToolResult{ToolUseID: u.ID, Content: output, IsError: isErr})
	}
	return results
}

func reviewable(toolName string) bool {
	switch toolName {
	case "Write", "Edit", "MultiEdit", "NotebookEdit":
		return true
	default:
		return false
	}
}

// toolCatalog is the fixed set of tools this backend exposes, filtered by
// the session's allow/disallow configuration.
func (s *claudeSession) toolCatalog() []anthropic.ToolUnionParam {
	all := []struct {
		name, desc, schema string
	}{
		{"Write", "Writes content to a file, creating parent directories as needed.",
			`{"type":"object","properties":{"file_path":{"type":"string"},"content":{"type":"string"}},"required":["file_path","content"]}`},
		{"Edit", "Replaces one exact occurrence of old_string with new_string in a file.",
			`{"type":"object","properties":{"file_path":{"type":"string"},"old_string":{"type":"string"},"new_string":{"type":"string"}},"required":["file_path","old_string","new_string"]}`},
		{"MultiEdit", "Applies a sequence of Edit-style replacements to one file.",
			`{"type":"object","properties":{"file_path":{"type":"string"},"edits":{"type":"array","items":{"type":"object"}}},"required":["file_path","edits"]}`},
		{"NotebookEdit", "Replaces the source of one cell in a Jupyter notebook. Not executed by this backend: every call returns an error.",
			`{"type":"object","properties":{"file_path":{"type":"string"},"cell_id":{"type":"string"},"new_source":{"type":"string"}},"required":["file_path","new_source"]}`},
		{"Read", "Reads a file's contents.",
			`{"type":"object","properties":{"file_path":{"type":"string"}},"required":["file_path"]}`},
		{"Glob", "Finds files matching a glob pattern.",
			`{"type":"object","properties":{"pattern":{"type":"string"}},"required":["pattern"]}`},
		{"Grep", "Searches file contents with a regular expression.",
			`{"type":"object","properties":{"pattern":{"type":"string"},"glob":{"type":"string"}},"required":["pattern"]}`},
		{"Bash", "Runs a shell command in the project directory.",
			`{"type":"object","properties":{"command":{"type":"string"}},"required":["command"]}`},

		// The six well-known Driver/Navigator coordination tools. This
		// backend hosts both sides of the conversation in one process, so
		// it serves these from its own fixed catalog rather than dialing
		// cfg.MCPEndpoint as a real MCP client would; internal/pairing
		// reads the resulting tool_use parts straight off this session's
		// Messages stream. The opencode backend does not read
		// cfg.MCPEndpoint either.
		{"mcp__driver__driverRequestReview", "Declares the current implementation ready for the Navigator's full review.",
			`{"type":"object","properties":{"context":{"type":"string"}}}`},
		{"mcp__driver__driverRequestGuidance", "Asks the Navigator for guidance when stuck or when the plan itself looks wrong.",
			`{"type":"object","properties":{"context":{"type":"string"}},"required":["context"]}`},
		{"mcp__navigator__navigatorApprove", "Approves the Driver's pending tool call.",
			`{"type":"object","properties":{"requestId":{"type":"string"},"comment":{"type":"string"}},"required":["requestId"]}`},
		{"mcp__navigator__navigatorDeny", "Denies the Driver's pending tool call with an explanation.",
			`{"type":"object","properties":{"requestId":{"type":"string"},"comment":{"type":"string"}},"required":["requestId","comment"]}`},
		{"mcp__navigator__navigatorCodeReview", "Delivers a broader pass/fail code review outside a single pending tool call.",
			`{"type":"object","properties":{"comment":{"type":"string"},"pass":{"type":"boolean"}},"required":["comment","pass"]}`},
		{"mcp__navigator__navigatorComplete", "Signals the implementation satisfies the plan and the session is done.",
			`{"type":"object","properties":{"summary":{"type":"string"}},"required":["summary"]}`},
	}

	var catalog []anthropic.ToolUnionParam
	for _, t := range all {
		if s.disallows(t.name) {
			continue
		}
		var schema anthropic.ToolInputSchemaParam
		_ = json.Unmarshal([]byte(t.schema), &schema)
		tp := anthropic.ToolUnionParamOfTool(schema, t.name)
		tp.OfTool.Description = anthropic.String(t.desc)
		catalog = append(catalog, tp)
	}
	return catalog
}

func (s *claudeSession) disallows(name string) bool {
	if !s.cfg.AllowsAll() {
		allowed := false
		for _, t := range s.cfg.AllowedTools {
			if t == name {
				allowed = true
				break
			}
		}
		if !allowed {
			return true
		}
	}
	for _, t := range s.cfg.DisallowedTools {
		if t == name {
			return true
		}
	}
	return false
}

// executeBuiltinTool runs one of the fixed tool set's implementations
// against the local filesystem, grounded on the behavior of the teacher's
// internal/tool package (write.go/edit.go/read.go/glob.go/grep.go/bash.go).
func executeBuiltinTool(ctx context.Context, workDir, name string, input map[string]any) (output string, isError bool) {
	path, _ := input["file_path"].(string)
	if path != "" && !filepath.IsAbs(path) && workDir != "" {
		path = filepath.Join(workDir, path)
	}

	switch name {
	case "Write":
		content, _ := input["content"].(string)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err.Error(), true
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return err.Error(), true
		}
		return fmt.Sprintf("wrote %d bytes to %s", len(content), path), false

	case "Edit":
		return applyEdit(path, input)

	case "MultiEdit":
		edits, _ := input["edits"].([]any)
		var last string
		for i, e := range edits {
			em, ok := e.(map[string]any)
			if !ok {
				continue
			}
			em["file_path"] = path
			out, isErr := applyEdit(path, em)
			if isErr {
				return fmt.Sprintf("edit %d failed: %s", i+1, out), true
			}
			last = out
		}
		return last, false

	case "NotebookEdit":
		return "NotebookEdit is not implemented by this backend", true

	case "Read":
		data, err := os.ReadFile(path)
		if err != nil {
			return err.Error(), true
		}
		return string(data), false

	case "Glob":
		pattern, _ := input["pattern"].(string)
		matches, err := filepath.Glob(filepath.Join(workDir, pattern))
		if err != nil {
			return err.Error(), true
		}
		return strings.Join(matches, "\n"), false

	case "Grep":
		return runRipgrep(ctx, workDir, input)

	case "Bash":
		command, _ := input["command"].(string)
		cmd := exec.CommandContext(ctx, "bash", "-c", command)
		cmd.Dir = workDir
		var buf bytes.Buffer
		cmd.Stdout = &buf
		cmd.Stderr = &buf
		err := cmd.Run()
		return buf.String(), err != nil

	case "mcp__driver__driverRequestReview", "mcp__driver__driverRequestGuidance",
		"mcp__navigator__navigatorApprove", "mcp__navigator__navigatorDeny",
		"mcp__navigator__navigatorCodeReview", "mcp__navigator__navigatorComplete":
		// Recognized only so the model gets a tool_result to continue
		// from; internal/pairing interprets the call itself from the
		// tool_use part, not from this return value.
		return "acknowledged", false

	default:
		return fmt.Sprintf("unknown tool %q", name), true
	}
}

func applyEdit(path string, input map[string]any) (string, bool) {
	oldStr, _ := input["old_string"].(string)
	newStr, _ := input["new_string"].(string)

	data, err := os.ReadFile(path)
	if err != nil {
		return err.Error(), true
	}
	content := string(data)
	if !strings.Contains(content, oldStr) {
		return "old_string not found", true
	}
	updated := strings.Replace(content, oldStr, newStr, 1)
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		return err.Error(), true
	}
	return fmt.Sprintf("edited %s", path), false
}

func runRipgrep(ctx context.Context, workDir string, input map[string]any) (string, bool) {
	pattern, _ := input["pattern"].(string)
	glob, _ := input["glob"].(string)

	args := []string{"-n", pattern}
	if glob != "" {
		args = append(args, "-g", glob)
	}
	cmd := exec.CommandContext(ctx, "rg", args...)
	cmd.Dir = workDir
	out, err := cmd.Output()
	if err != nil && len(out) == 0 {
		return "no matches", false
	}
	return string(out), false
}
