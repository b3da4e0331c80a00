package agentprovider

import "context"

// MockSession is an in-memory Session used by orchestrator-level tests
// that need a controllable agent backend without a real SDK transport.
// Tests drive it by pushing Messages directly and reading Sent for the
// prompts the orchestrator sent.
type MockSession struct {
	Sent         []string
	msgs         chan Message
	interrupted  bool
	ended        bool
}

// NewMockSession creates a MockSession with the given buffered channel
// capacity for queued Messages.
func NewMockSession(bufSize int) *MockSession {
	return &MockSession{msgs: make(chan Message, bufSize)}
}

// Push enqueues a Message for a subsequent Messages() read, as if the
// backend had produced it.
func (m *MockSession) Push(msg Message) {
	m.msgs <- msg
}

// Close closes the Messages channel, simulating stream termination.
func (m *MockSession) Close() {
	close(m.msgs)
}

func (m *MockSession) SendPrompt(ctx context.Context, text string) error {
	if m.ended {
		return ErrSessionEnded
	}
	m.Sent = append(m.Sent, text)
	return nil
}

func (m *MockSession) Messages() <-chan Message {
	return m.msgs
}

func (m *MockSession) Interrupt() {
	m.interrupted = true
}

func (m *MockSession) Interrupted() bool {
	return m.interrupted
}

func (m *MockSession) End() error {
	m.ended = true
	return nil
}
