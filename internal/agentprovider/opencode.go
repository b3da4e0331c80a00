package agentprovider

import (
	"context"
	"sync"

	opencode "github.com/sst/opencode-sdk-go"
	"github.com/sst/opencode-sdk-go/option"
	"github.com/sst/opencode-sdk-go/packages/param"
)

// opencodeSession drives a coding-agent conversation against a running
// `opencode serve` instance over its REST/SSE session API. It does not
// execute tools itself; the opencode server does, emitting message.part
// events for each tool_use/tool_result exactly as a claude-code backend
// would yield them in-process.
type opencodeSession struct {
	sessions opencode.SessionService
	events   opencode.EventService
	cfg      Config
	sessionID string
	msgs     chan Message
	cancel   context.CancelFunc

	mu      sync.Mutex
	sentIDs map[string]bool // part IDs already forwarded, for dedup across SSE retries
}

// NewOpencodeSession constructs a Session backed by a running opencode
// server at cfg.BaseURL.
func NewOpencodeSession(ctx context.Context, cfg Config) (Session, error) {
	opts := []option.RequestOption{option.WithBaseURL(cfg.BaseURL)}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithHeader("Authorization", "Bearer "+cfg.APIKey))
	}

	s := &opencodeSession{
		sessions: opencode.NewSessionService(opts...),
		events:   opencode.NewEventService(opts...),
		cfg:      cfg,
		msgs:     make(chan Message, 16),
		sentIDs:  make(map[string]bool),
	}

	sess, err := s.sessions.New(ctx, opencode.SessionNewParams{
		Directory: param.NewOpt(cfg.ProjectDir),
		Title:     param.NewOpt("pair orchestrator session"),
	})
	if err != nil {
		return nil, err
	}
	s.sessionID = sess.ID

	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go s.consumeEvents(runCtx)

	return s, nil
}

func (s *opencodeSession) SendPrompt(ctx context.Context, text string) error {
	if s.sessionID == "" {
		return ErrSessionEnded
	}
	params := opencode.SessionMessageNewParams{
		Parts: []opencode.SessionMessageNewParamsPartUnion{
			{OfSessionMessageNewsPartTextPartInput: &opencode.SessionMessageNewParamsPartTextPartInput{
				Text: text,
			}},
		},
	}
	_, err := s.sessions.Message.New(ctx, s.sessionID, params)
	return err
}

func (s *opencodeSession) Messages() <-chan Message {
	return s.msgs
}

func (s *opencodeSession) Interrupt() {
	if s.sessionID == "" {
		return
	}
	_, _ = s.sessions.Abort(context.Background(), s.sessionID, opencode.SessionAbortParams{})
}

func (s *opencodeSession) End() error {
	if s.cancel != nil {
		s.cancel()
	}
	s.sessionID = ""
	return nil
}

// consumeEvents subscribes to the server's SSE event stream and converts
// the subset relevant to this session into Messages, closing msgs once
// the stream ends or the session is cancelled.
func (s *opencodeSession) consumeEvents(ctx context.Context) {
	defer close(s.msgs)

	stream := s.events.ListStreaming(ctx, opencode.EventListParams{
		Directory: param.NewOpt(s.cfg.ProjectDir),
	})
	defer stream.Close()

	for stream.Next() {
		ev := stream.Current()
		if msg, ok := s.convertEvent(ev); ok {
			select {
			case s.msgs <- msg:
			case <-ctx.Done():
				return
			}
		}
	}
}

// convertEvent maps one opencode SSE event belonging to this session into
// a Message, skipping events for other sessions and already-forwarded
// parts (the server may redeliver on reconnect).
func (s *opencodeSession) convertEvent(ev opencode.EventUnion) (Message, bool) {
	props := ev.Properties
	if props.SessionID != "" && props.SessionID != s.sessionID {
		return Message{}, false
	}

	switch ev.Type {
	case "message.part.updated":
		part := props.Part
		if part.ID != "" {
			s.mu.Lock()
			dup := s.sentIDs[part.ID]
			s.sentIDs[part.ID] = true
			s.mu.Unlock()
			if dup {
				return Message{}, false
			}
		}
		return s.convertPart(part)

	case "session.idle":
		return Message{Kind: MessageResult, SessionID: s.sessionID}, true

	case "session.error":
		return Message{Kind: MessageSystem, SessionID: s.sessionID, Subtype: SubtypeConversationEnded}, true
	}
	return Message{}, false
}

func (s *opencodeSession) convertPart(part opencode.PartUnion) (Message, bool) {
	switch part.Type {
	case "text":
		return Message{
			Kind:      MessageAssistant,
			SessionID: s.sessionID,
			Parts:     []Part{{Kind: PartText, Text: part.Text}},
		}, true

	case "tool":
		input, _ := part.State.Input.(map[string]any)
		tu := &ToolUse{ID: part.CallID, Name: part.Tool, Input: input}
		msg := Message{Kind: MessageAssistant, SessionID: s.sessionID, Parts: []Part{{Kind: PartToolUse, ToolUse: tu}}}
		if part.State.Status == "completed" || part.State.Status == "error" {
			tr := &ToolResult{
				ToolUseID: part.CallID,
				Content:   part.State.Output,
				IsError:   part.State.Status == "error",
			}
			msg.Parts = append(msg.Parts, Part{Kind: PartToolResult, ToolResult: tr})
		}
		return msg, true
	}
	return Message{}, false
}
