package broker

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// FormatDiff renders a human-readable diff for a reviewable tool call so
// the Navigator does not have to read raw old_string/new_string JSON.
// Returns "" for tool calls it doesn't know how to render (NotebookEdit
// and Write carry no natural diff against prior content here).
func FormatDiff(toolName string, input map[string]any) string {
	switch toolName {
	case "Edit":
		return formatEditDiff(input)
	case "MultiEdit":
		return formatMultiEditDiff(input)
	default:
		return ""
	}
}

func formatEditDiff(input map[string]any) string {
	oldStr, _ := input["old_string"].(string)
	newStr, _ := input["new_string"].(string)
	if oldStr == "" && newStr == "" {
		return ""
	}
	return unifiedDiff(oldStr, newStr)
}

func formatMultiEditDiff(input map[string]any) string {
	edits, ok := input["edits"].([]any)
	if !ok {
		return ""
	}
	var b strings.Builder
	for i, raw := range edits {
		edit, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		oldStr, _ := edit["old_string"].(string)
		newStr, _ := edit["new_string"].(string)
		fmt.Fprintf(&b, "--- edit %d ---\n", i+1)
		b.WriteString(unifiedDiff(oldStr, newStr))
		b.WriteString("\n")
	}
	return b.String()
}

func unifiedDiff(oldStr, newStr string) string {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(oldStr, newStr, false)
	diffs = dmp.DiffCleanupSemantic(diffs)
	return dmp.DiffPrettyText(diffs)
}
