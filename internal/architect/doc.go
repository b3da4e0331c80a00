// Package architect runs the single-shot planning session that seeds an
// implementation loop. It opens one AgentProvider session in a read-only
// permission mode, drains its message stream until a plan is produced by
// either of the two conventions observed in the wild — an exit_plan_mode
// tool call or a PLAN COMPLETE sentinel line — and returns the plan text.
package architect
