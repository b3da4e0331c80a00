package pairing

import (
	"github.com/pair-run/pair/internal/agentprovider"
	"github.com/pair-run/pair/pkg/types"
)

var navigatorVerbs = map[string]types.NavigatorCommandKind{
	"mcp__navigator__navigatorApprove":    types.NavigatorApprove,
	"mcp__navigator__navigatorDeny":       types.NavigatorDeny,
	"mcp__navigator__navigatorCodeReview": types.NavigatorCodeReview,
	"mcp__navigator__navigatorComplete":   types.NavigatorComplete,
}

var driverVerbs = map[string]types.DriverCommandKind{
	"mcp__driver__driverRequestReview":   types.DriverRequestReview,
	"mcp__driver__driverRequestGuidance": types.DriverRequestGuidance,
}

// NavigatorCommandFromToolUse coerces a tool_use part into a
// NavigatorCommand. Reports false if the name doesn't resolve to a
// known Navigator tool.
func NavigatorCommandFromToolUse(u agentprovider.ToolUse) (types.NavigatorCommand, bool) {
	canonical, ok := CanonicalToolName(u.Name)
	if !ok || !isNavigatorTool(canonical) {
		return types.NavigatorCommand{}, false
	}
	kind, ok := navigatorVerbs[canonical]
	if !ok {
		return types.NavigatorCommand{}, false
	}
	return types.NavigatorCommand{
		Kind:      kind,
		RequestID: stringField(u.Input, "requestId"),
		Comment:   stringField(u.Input, "comment"),
		Pass:      boolField(u.Input, "pass"),
		Summary:   stringField(u.Input, "summary"),
	}, true
}

// DriverCommandFromToolUse is the Driver-side counterpart of
// NavigatorCommandFromToolUse.
func DriverCommandFromToolUse(u agentprovider.ToolUse) (types.DriverCommand, bool) {
	canonical, ok := CanonicalToolName(u.Name)
	if !ok || isNavigatorTool(canonical) {
		return types.DriverCommand{}, false
	}
	kind, ok := driverVerbs[canonical]
	if !ok {
		return types.DriverCommand{}, false
	}
	return types.DriverCommand{
		Kind:    kind,
		Context: stringField(u.Input, "context"),
	}, true
}

func stringField(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func boolField(m map[string]any, key string) bool {
	if v, ok := m[key].(bool); ok {
		return v
	}
	return false
}
