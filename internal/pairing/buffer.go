package pairing

import (
	"fmt"
	"strings"
	"sync"
)

// DriverBuffer is the ordered, mutable transcript of Driver output the
// orchestrator accumulates between flush points. It is owned by the
// DriverController, never by the Driver session itself. Every assistant text
// line and every tool-summary line ("Tool: <name> - <file or command>")
// is appended as it is observed; the buffer is only ever emptied by a
// call to Flush.
type DriverBuffer struct {
	mu    sync.Mutex
	lines []string
}

// NewDriverBuffer creates an empty DriverBuffer.
func NewDriverBuffer() *DriverBuffer {
	return &DriverBuffer{}
}

// AppendText appends a line of assistant text, dropping empty lines.
func (b *DriverBuffer) AppendText(text string) {
	text = strings.TrimRight(text, "\n")
	if text == "" {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lines = append(b.lines, text)
}

// AppendToolSummary appends the one-line summary of an attempted tool
// call: "Tool: <name> - <subject>", where subject is typically the
// file path or command the tool acted on.
func (b *DriverBuffer) AppendToolSummary(toolName, subject string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lines = append(b.lines, fmt.Sprintf("Tool: %s - %s", toolName, subject))
}

// Flush atomically empties the buffer and returns its prior contents
// joined with newlines. No new text appended after Flush returns can
// leak into the string it already returned.
func (b *DriverBuffer) Flush() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	joined := strings.Join(b.lines, "\n")
	b.lines = nil
	return joined
}

// Len reports the number of buffered lines.
func (b *DriverBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.lines)
}
