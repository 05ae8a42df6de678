package llm

import (
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/nexusforge/agentloop/internal/convo"
	"github.com/nexusforge/agentloop/internal/usage"
)

// maxTokensFor returns the configured MaxTokens or a phase-appropriate
// default.
func maxTokensFor(req Request) int64 {
	if req.MaxTokens > 0 {
		return int64(req.MaxTokens)
	}
	switch req.Phase {
	case PhaseBuilder, PhaseFixer:
		return 8192
	case PhasePlanner:
		return 4096
	default:
		return 2048
	}
}

// buildParams converts a provider-neutral Request into the Anthropic
// SDK's MessageNewParams, attaching a cache-control marker to the last
// block of the system prompt so provider-side caching is engaged
// (spec.md §4.3).
func buildParams(req Request) (anthropic.MessageNewParams, error) {
	messages, err := convertMessages(req.Messages)
	if err != nil {
		return anthropic.MessageNewParams{}, err
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(modelFor(req)),
		Messages:  messages,
		MaxTokens: maxTokensFor(req),
	}

	if req.System != "" {
		block := anthropic.TextBlockParam{Type: "text", Text: req.System}
		block.CacheControl = anthropic.NewCacheControlEphemeralParam()
		params.System = []anthropic.TextBlockParam{block}
	}

	if len(req.Tools) > 0 {
		tools, err := convertTools(req.Tools)
		if err != nil {
			return anthropic.MessageNewParams{}, err
		}
		params.Tools = tools
	}

	return params, nil
}

func modelFor(req Request) string {
	if req.Model != "" {
		return req.Model
	}
	switch req.Phase {
	case PhasePlanner, PhaseReflector:
		return "claude-opus-4-6"
	default:
		return "claude-sonnet-4-5"
	}
}

// convertMessages maps internal/convo's tagged-variant blocks onto the
// Anthropic SDK's message param union.
func convertMessages(msgs []convo.Message) ([]anthropic.MessageParam, error) {
	out := make([]anthropic.MessageParam, 0, len(msgs))
	for _, m := range msgs {
		blocks := make([]anthropic.ContentBlockParamUnion, 0, len(m.Content))
		for _, b := range m.Content {
			switch b.Kind {
			case convo.KindText:
				blocks = append(blocks, anthropic.NewTextBlock(b.Text))
			case convo.KindThinking:
				blocks = append(blocks, anthropic.NewTextBlock(b.Text))
			case convo.KindToolUse:
				if b.ToolUse == nil {
					continue
				}
				blocks = append(blocks, anthropic.NewToolUseBlock(b.ToolUse.ID, b.ToolUse.Input, b.ToolUse.Name))
			case convo.KindToolResult:
				if b.ToolResult == nil {
					continue
				}
				blocks = append(blocks, anthropic.NewToolResultBlock(b.ToolResult.ToolUseID, b.ToolResult.Content, b.ToolResult.IsError))
			default:
				return nil, fmt.Errorf("llm: unknown block kind %q", b.Kind)
			}
		}
		switch m.Role {
		case convo.RoleUser:
			out = append(out, anthropic.NewUserMessage(blocks...))
		case convo.RoleAssistant:
			out = append(out, anthropic.NewAssistantMessage(blocks...))
		default:
			return nil, fmt.Errorf("llm: unknown role %q", m.Role)
		}
	}
	return out, nil
}

// convertTools builds the Anthropic SDK's tool-union slice from the
// provider-neutral ToolSpec list.
func convertTools(specs []ToolSpec) ([]anthropic.ToolUnionParam, error) {
	out := make([]anthropic.ToolUnionParam, 0, len(specs))
	for _, s := range specs {
		schema, err := toInputSchema(s.Schema)
		if err != nil {
			return nil, fmt.Errorf("llm: tool %s: %w", s.Name, err)
		}
		out = append(out, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        s.Name,
				Description: anthropic.String(s.Description),
				InputSchema: schema,
			},
		})
	}
	return out, nil
}

func toInputSchema(schema map[string]any) (anthropic.ToolInputSchemaParam, error) {
	props, _ := schema["properties"].(map[string]any)
	var required []string
	if r, ok := schema["required"].([]string); ok {
		required = r
	} else if r, ok := schema["required"].([]any); ok {
		for _, v := range r {
			if s, ok := v.(string); ok {
				required = append(required, s)
			}
		}
	}
	return anthropic.ToolInputSchemaParam{
		Properties: props,
		Required:   required,
	}, nil
}

// toResponse converts an Anthropic SDK Message back into the
// provider-neutral Response shape.
func toResponse(msg *anthropic.Message) Response {
	var blocks []convo.Block
	for _, c := range msg.Content {
		switch variant := c.AsAny().(type) {
		case anthropic.TextBlock:
			blocks = append(blocks, convo.TextBlock(variant.Text))
		case anthropic.ThinkingBlock:
			blocks = append(blocks, convo.ThinkingBlock(variant.Thinking))
		case anthropic.ToolUseBlock:
			input, _ := variant.Input.(map[string]any)
			blocks = append(blocks, convo.ToolUseBlock(variant.ID, variant.Name, input))
		}
	}

	return Response{
		Content: blocks,
		Model:   string(msg.Model),
		Usage: usage.Usage{
			InputTokens:        msg.Usage.InputTokens,
			OutputTokens:       msg.Usage.OutputTokens,
			CacheWrite5mTokens: msg.Usage.CacheCreationInputTokens,
			CacheReadTokens:    msg.Usage.CacheReadInputTokens,
		},
		StopReason: string(msg.StopReason),
	}
}
