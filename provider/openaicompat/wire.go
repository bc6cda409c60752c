// Package openaicompat implements the compass.LlmClient contract for any
// OpenAI-compatible chat completions API (OpenAI, OpenRouter, Groq,
// Together, DeepSeek, Mistral, Ollama, vLLM, LM Studio, Azure OpenAI).
package openaicompat

import (
	"encoding/json"

	compass "github.com/nevindra/compass"
)

// --- Request wire types ---

// chatRequest is the chat completions request body.
type chatRequest struct {
	Model       string         `json:"model"`
	Messages    []wireMessage  `json:"messages"`
	Tools       []wireTool     `json:"tools,omitempty"`
	Temperature *float64       `json:"temperature,omitempty"`
	TopP        *float64       `json:"top_p,omitempty"`
	MaxTokens   int            `json:"max_tokens,omitempty"`
	Stop        []string       `json:"stop,omitempty"`
	Seed        *int           `json:"seed,omitempty"`
	ToolChoice  any            `json:"tool_choice,omitempty"`
}

// wireMessage is a single message in the OpenAI chat format.
type wireMessage struct {
	Role       string         `json:"role"`
	Content    string         `json:"content"`
	ToolCalls  []wireToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}

// wireTool wraps a function definition in the OpenAI tool format.
type wireTool struct {
	Type     string       `json:"type"` // always "function"
	Function wireFunction `json:"function"`
}

type wireFunction struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// wireToolCall represents a tool call in a request or response.
type wireToolCall struct {
	ID       string           `json:"id,omitempty"`
	Type     string           `json:"type,omitempty"` // "function"
	Function wireFunctionCall `json:"function"`
}

// wireFunctionCall holds the function name and arguments (a JSON string).
type wireFunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// --- Response wire types ---

type chatResponse struct {
	ID      string       `json:"id"`
	Choices []wireChoice `json:"choices"`
	Usage   *wireUsage   `json:"usage,omitempty"`
}

type wireChoice struct {
	Index        int             `json:"index"`
	Message      *choiceMessage  `json:"message,omitempty"`
	FinishReason string          `json:"finish_reason,omitempty"`
}

type choiceMessage struct {
	Role      string         `json:"role,omitempty"`
	Content   string         `json:"content,omitempty"`
	ToolCalls []wireToolCall `json:"tool_calls,omitempty"`
}

type wireUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// buildBody converts a compass CompletionRequest into the wire format.
// The system prompt becomes a leading role:"system" message.
func buildBody(req compass.CompletionRequest, model string, opts ...Option) chatRequest {
	var msgs []wireMessage
	if req.System != "" {
		msgs = append(msgs, wireMessage{Role: "system", Content: req.System})
	}
	for _, m := range req.Messages {
		wm := wireMessage{Role: m.Role, Content: m.Content, ToolCallID: m.ToolCallID}
		for _, tc := range m.ToolCalls {
			wm.ToolCalls = append(wm.ToolCalls, wireToolCall{
				ID:   tc.ID,
				Type: "function",
				Function: wireFunctionCall{
					Name:      tc.Name,
					Arguments: string(tc.Args),
				},
			})
		}
		msgs = append(msgs, wm)
	}

	body := chatRequest{Model: model, Messages: msgs}
	for _, t := range req.Tools {
		params := t.Parameters
		if len(params) == 0 {
			params = json.RawMessage(`{}`)
		}
		body.Tools = append(body.Tools, wireTool{
			Type: "function",
			Function: wireFunction{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  params,
			},
		})
	}
	for _, opt := range opts {
		opt(&body)
	}
	return body
}

// parseResponse converts the wire response into a compass Completion,
// reading content, tool calls, and usage from choices[0].
func parseResponse(resp chatResponse) compass.Completion {
	var out compass.Completion
	if len(resp.Choices) > 0 && resp.Choices[0].Message != nil {
		msg := resp.Choices[0].Message
		out.Content = msg.Content
		for _, tc := range msg.ToolCalls {
			args := json.RawMessage(tc.Function.Arguments)
			if !json.Valid(args) {
				args = json.RawMessage(`{}`)
			}
			out.ToolCalls = append(out.ToolCalls, compass.ToolCall{
				ID:   tc.ID,
				Name: tc.Function.Name,
				Args: args,
			})
		}
	}
	if resp.Usage != nil {
		out.Usage = compass.Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		}
	}
	return out
}
