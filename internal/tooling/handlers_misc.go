package tooling

import (
	"fmt"

	"github.com/nexusforge/agentloop/internal/convo"
)

// done and submit_plan are terminal signals: the dispatcher only
// acknowledges the call. Session loops (C7) recognize these tool
// names and end the turn loop themselves, building the Plan or the
// edit-operation list from the tool_use input directly.
func (d *Dispatcher) done(input map[string]any, toolUseID string) convo.Block {
	return okResult(toolUseID, fmt.Sprintf("done: %s", stringInput(input, "summary")))
}

func (d *Dispatcher) submitPlan(input map[string]any, toolUseID string) convo.Block {
	return okResult(toolUseID, fmt.Sprintf("plan submitted: %s", stringInput(input, "title")))
}

func (d *Dispatcher) gitDiff(toolUseID string) convo.Block {
	if d.vcs == nil {
		return errResult(toolUseID, "git_diff: no VCS session attached to this cycle")
	}
	diff, err := d.vcs.Diff()
	if err != nil {
		return errResult(toolUseID, fmt.Sprintf("git_diff: %v", err))
	}
	if diff == "" {
		return okResult(toolUseID, "no changes")
	}
	return okResult(toolUseID, diff)
}
