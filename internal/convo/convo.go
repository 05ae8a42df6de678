// Package convo defines the conversation data model shared by the
// sessions, compaction, and working-context components: messages with
// tagged-variant content blocks (text, thinking, tool_use, tool_result).
package convo

// Role identifies the author of a Message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// BlockKind tags the variant carried by a Block.
type BlockKind string

const (
	KindText       BlockKind = "text"
	KindThinking   BlockKind = "thinking"
	KindToolUse    BlockKind = "tool_use"
	KindToolResult BlockKind = "tool_result"
)

// ToolUse is an assistant-issued tool call.
type ToolUse struct {
	ID    string
	Name  string
	Input map[string]any
}

// ToolResult pairs a tool_use_id with its outcome, carried in a
// user-role message that follows the assistant's tool_use.
type ToolResult struct {
	ToolUseID string
	Content   string
	IsError   bool
}

// Block is a tagged-variant content block. Exactly one of Text,
// ToolUse, or ToolResult is populated, matching Kind.
type Block struct {
	Kind       BlockKind
	Text       string
	ToolUse    *ToolUse
	ToolResult *ToolResult
}

// TextBlock constructs a text content block.
func TextBlock(text string) Block { return Block{Kind: KindText, Text: text} }

// ThinkingBlock constructs a thinking content block.
func ThinkingBlock(text string) Block { return Block{Kind: KindThinking, Text: text} }

// ToolUseBlock constructs a tool_use content block.
func ToolUseBlock(id, name string, input map[string]any) Block {
	return Block{Kind: KindToolUse, ToolUse: &ToolUse{ID: id, Name: name, Input: input}}
}

// ToolResultBlock constructs a tool_result content block.
func ToolResultBlock(toolUseID, content string, isError bool) Block {
	return Block{Kind: KindToolResult, ToolResult: &ToolResult{ToolUseID: toolUseID, Content: content, IsError: isError}}
}

// Message is one turn in a Conversation. Content is always represented
// as a block list; a plain-string message is a single text block, which
// keeps downstream code (compaction, working context) from needing to
// special-case the two representations described in spec.md's data model.
type Message struct {
	Role    Role
	Content []Block
}

// PlainText constructs a single-text-block message.
func PlainText(role Role, text string) Message {
	return Message{Role: role, Content: []Block{TextBlock(text)}}
}

// Text concatenates all text blocks in the message (thinking blocks excluded).
func (m Message) Text() string {
	out := ""
	for _, b := range m.Content {
		if b.Kind == KindText {
			out += b.Text
		}
	}
	return out
}

// ToolUses returns the tool_use blocks in emission order.
func (m Message) ToolUses() []ToolUse {
	var out []ToolUse
	for _, b := range m.Content {
		if b.Kind == KindToolUse && b.ToolUse != nil {
			out = append(out, *b.ToolUse)
		}
	}
	return out
}

// ToolResults returns the tool_result blocks in emission order.
func (m Message) ToolResults() []ToolResult {
	var out []ToolResult
	for _, b := range m.Content {
		if b.Kind == KindToolResult && b.ToolResult != nil {
			out = append(out, *b.ToolResult)
		}
	}
	return out
}

// Conversation is an ordered sequence of Messages.
type Conversation struct {
	Messages []Message
}

// Append adds a message to the end of the conversation.
func (c *Conversation) Append(m Message) {
	c.Messages = append(c.Messages, m)
}

// AssistantTurnIndex returns the 1-based ordinal of the assistant
// message at position idx, counting only assistant messages from the
// start of the conversation. Returns 0 if the message at idx is not an
// assistant message.
func (c *Conversation) AssistantTurnIndex(idx int) int {
	if idx < 0 || idx >= len(c.Messages) || c.Messages[idx].Role != RoleAssistant {
		return 0
	}
	turn := 0
	for i := 0; i <= idx; i++ {
		if c.Messages[i].Role == RoleAssistant {
			turn++
		}
	}
	return turn
}

// TotalAssistantTurns returns the number of assistant messages.
func (c *Conversation) TotalAssistantTurns() int {
	n := 0
	for _, m := range c.Messages {
		if m.Role == RoleAssistant {
			n++
		}
	}
	return n
}

// CharLen estimates the character footprint of the whole conversation,
// used by the compression engine's charThreshold trigger.
func (c *Conversation) CharLen() int {
	total := 0
	for _, m := range c.Messages {
		for _, b := range m.Content {
			switch b.Kind {
			case KindText, KindThinking:
				total += len(b.Text)
			case KindToolUse:
				if b.ToolUse != nil {
					total += len(b.ToolUse.Name)
					for k, v := range b.ToolUse.Input {
						total += len(k)
						if s, ok := v.(string); ok {
							total += len(s)
						}
					}
				}
			case KindToolResult:
				if b.ToolResult != nil {
					total += len(b.ToolResult.Content)
				}
			}
		}
	}
	return total
}

// FindToolResultIndex locates the (messageIdx, blockIdx) of the
// first tool_result block carrying toolUseID, searching user messages
// from the start of the conversation. Returns ok=false if not found.
func (c *Conversation) FindToolResultIndex(toolUseID string) (msgIdx, blockIdx int, ok bool) {
	for mi, m := range c.Messages {
		if m.Role != RoleUser {
			continue
		}
		for bi, b := range m.Content {
			if b.Kind == KindToolResult && b.ToolResult != nil && b.ToolResult.ToolUseID == toolUseID {
				return mi, bi, true
			}
		}
	}
	return 0, 0, false
}
