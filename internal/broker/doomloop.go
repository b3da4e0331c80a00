package broker

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
)

// DoomLoopThreshold is the number of identical consecutive tool calls
// that counts as a doom loop. The Driver's guard denies such a call with a
// message directing the Driver to driverRequestGuidance.
const DoomLoopThreshold = 3

// DoomLoopDetector tracks repeated tool calls per session to detect a
// Driver stuck retrying the same failing action.
type DoomLoopDetector struct {
	mu      sync.Mutex
	history map[string][]string
}

// NewDoomLoopDetector creates an empty detector.
func NewDoomLoopDetector() *DoomLoopDetector {
	return &DoomLoopDetector{history: make(map[string][]string)}
}

// Check records a tool call and reports whether the last
// DoomLoopThreshold calls for sessionID (including this one) are
// identical.
func (d *DoomLoopDetector) Check(sessionID, toolName string, input any) bool {
	hash := hashCall(toolName, input)

	d.mu.Lock()
	defer d.mu.Unlock()

	history := append(d.history[sessionID], hash)
	if len(history) > 10 {
		history = history[len(history)-10:]
	}
	d.history[sessionID] = history

	if len(history) < DoomLoopThreshold {
		return false
	}
	tail := history[len(history)-DoomLoopThreshold:]
	for _, h := range tail {
		if h != hash {
			return false
		}
	}
	return true
}

func hashCall(toolName string, input any) string {
	data, _ := json.Marshal(map[string]any{"tool": toolName, "input": input})
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Reset clears the history for a session, e.g. once one of its tool
// calls is approved.
func (d *DoomLoopDetector) Reset(sessionID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.history, sessionID)
}
