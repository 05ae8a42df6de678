package session

import (
	"github.com/nexusforge/agentloop/internal/convo"
	"github.com/nexusforge/agentloop/internal/domain"
)

// extractEdits walks conv pairing each assistant edit_file/create_file/
// delete_file tool_use with its result in the very next user message —
// the Runner always pushes one user message whose result blocks are in
// the same order as the assistant's tool_use blocks, so positional
// pairing within a turn is exact. Errored calls are not edits.
func extractEdits(conv convo.Conversation) []domain.EditOperation {
	var ops []domain.EditOperation
	for i, m := range conv.Messages {
		if m.Role != convo.RoleAssistant {
			continue
		}
		toolUses := m.ToolUses()
		if len(toolUses) == 0 || i+1 >= len(conv.Messages) {
			continue
		}
		results := conv.Messages[i+1].ToolResults()
		for j, tu := range toolUses {
			if j >= len(results) || results[j].IsError {
				continue
			}
			switch tu.Name {
			case "edit_file":
				ops = append(ops, domain.Replace(stringField(tu.Input, "path"), stringField(tu.Input, "oldString"), stringField(tu.Input, "newString")))
			case "create_file":
				ops = append(ops, domain.Create(stringField(tu.Input, "path"), stringField(tu.Input, "content")))
			case "delete_file":
				ops = append(ops, domain.Delete(stringField(tu.Input, "path")))
			}
		}
	}
	return ops
}
