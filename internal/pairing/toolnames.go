package pairing

import (
	"strings"

	"github.com/agnivade/levenshtein"
)

// canonicalTools is the closed set of the six well-known MCP tool names,
// keyed by the form a provider actually emits (canonical or legacy) and
// mapped to its canonical mcp__<role>__<verb> form.
var canonicalTools = map[string]string{
	"mcp__navigator__navigatorApprove":     "mcp__navigator__navigatorApprove",
	"mcp__navigator__navigatorDeny":        "mcp__navigator__navigatorDeny",
	"mcp__navigator__navigatorCodeReview":  "mcp__navigator__navigatorCodeReview",
	"mcp__navigator__navigatorComplete":    "mcp__navigator__navigatorComplete",
	"mcp__driver__driverRequestReview":     "mcp__driver__driverRequestReview",
	"mcp__driver__driverRequestGuidance":   "mcp__driver__driverRequestGuidance",
	"pair-navigator_navigatorApprove":      "mcp__navigator__navigatorApprove",
	"pair-navigator_navigatorDeny":         "mcp__navigator__navigatorDeny",
	"pair-navigator_navigatorCodeReview":   "mcp__navigator__navigatorCodeReview",
	"pair-navigator_navigatorComplete":     "mcp__navigator__navigatorComplete",
	"pair-driver_driverRequestReview":      "mcp__driver__driverRequestReview",
	"pair-driver_driverRequestGuidance":    "mcp__driver__driverRequestGuidance",
}

// maxTypoDistance bounds how many character edits a fuzzy match against
// a known tool name may require before it is rejected as unknown rather
// than coerced. A session occasionally emits a slightly misspelled
// legacy tool name (e.g. "pair-navigator_navigatorAprove"); this tolerates that
// without silently accepting an unrelated name.
const maxTypoDistance = 2

// CanonicalToolName maps a tool name observed from a provider — in
// canonical form, legacy pair-<role>_<verb> form, or a near-miss typo of
// either — to its canonical mcp__<role>__<verb> form. Returns ("", false)
// for names that don't resolve to any of the six well-known tools.
func CanonicalToolName(name string) (string, bool) {
	if canonical, ok := canonicalTools[name]; ok {
		return canonical, true
	}

	best := ""
	bestDist := maxTypoDistance + 1
	for known, canonical := range canonicalTools {
		d := levenshtein.ComputeDistance(name, known)
		if d < bestDist {
			bestDist = d
			best = canonical
		}
	}
	if bestDist <= maxTypoDistance {
		return best, true
	}
	return "", false
}

// isNavigatorTool reports whether a canonical tool name belongs to the
// navigator vocabulary (false means the driver vocabulary).
func isNavigatorTool(canonical string) bool {
	return strings.HasPrefix(canonical, "mcp__navigator__")
}
