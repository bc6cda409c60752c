package compass

import (
	"context"
	"encoding/json"
	"fmt"
)

// ResourceSearchTool is the well-known name of the resource lookup tool.
// Its results feed resource_recommendations.
const ResourceSearchTool = "resource_search"

// Command forces a graph transition from inside a tool. A tool returning
// a Command makes the calling node issue Goto(Target, Patch) after the
// tool messages are appended.
type Command struct {
	Target string
	Patch  StatePatch
}

// ToolResult is what a tool invocation produces: textual content for the
// tool message, or a Command, or both.
type ToolResult struct {
	Content string
	Command *Command
}

// Tool is a pluggable capability exposed to the LLM.
type Tool interface {
	Definition() ToolDefinition
	Invoke(ctx context.Context, args json.RawMessage, s State) (ToolResult, error)
}

// ToolRegistry holds the tools available to a node, keyed by name.
// Registration order is preserved for the definitions handed to the LLM.
type ToolRegistry struct {
	order []string
	tools map[string]Tool
}

func NewToolRegistry(tools ...Tool) *ToolRegistry {
	r := &ToolRegistry{tools: make(map[string]Tool)}
	for _, t := range tools {
		r.Register(t)
	}
	return r
}

// Register adds a tool, replacing any previous tool with the same name.
func (r *ToolRegistry) Register(t Tool) {
	name := t.Definition().Name
	if _, exists := r.tools[name]; !exists {
		r.order = append(r.order, name)
	}
	r.tools[name] = t
}

// Definitions lists tool definitions in registration order.
func (r *ToolRegistry) Definitions() []ToolDefinition {
	out := make([]ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name].Definition())
	}
	return out
}

// Invoke runs the named tool. Unknown tools are an error the caller
// records as a tool failure, keeping the message-pairing invariant.
func (r *ToolRegistry) Invoke(ctx context.Context, name string, args json.RawMessage, s State) (ToolResult, error) {
	t, ok := r.tools[name]
	if !ok {
		return ToolResult{}, fmt.Errorf("unknown tool %q", name)
	}
	return t.Invoke(ctx, args, s)
}

// Has reports whether a tool is registered under name.
func (r *ToolRegistry) Has(name string) bool {
	_, ok := r.tools[name]
	return ok
}

// FuncTool wraps a function as a Tool.
type FuncTool struct {
	Def ToolDefinition
	Fn  func(ctx context.Context, args json.RawMessage, s State) (ToolResult, error)
}

func (t FuncTool) Definition() ToolDefinition { return t.Def }

func (t FuncTool) Invoke(ctx context.Context, args json.RawMessage, s State) (ToolResult, error) {
	return t.Fn(ctx, args, s)
}

// DelegationTool builds the delegate_to_<specialist> tool the supervisor
// exposes to its LLM. Invoking it returns a Command into the specialist;
// the supervisor translates that into a counted handoff.
func DelegationTool(specialist string) Tool {
	params, _ := json.Marshal(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"task_description": map[string]any{
				"type":        "string",
				"description": "what the specialist should accomplish for the user",
			},
		},
		"required": []string{"task_description"},
	})
	return FuncTool{
		Def: ToolDefinition{
			Name:        DelegationToolName(specialist),
			Description: "Hand the conversation to " + specialist + " for a domain-specific answer.",
			Parameters:  params,
		},
		Fn: func(_ context.Context, args json.RawMessage, _ State) (ToolResult, error) {
			var in struct {
				TaskDescription string `json:"task_description"`
			}
			_ = json.Unmarshal(args, &in)
			return ToolResult{
				Content: "delegating to " + specialist,
				Command: &Command{
					Target: specialist,
					Patch: StatePatch{
						CoordinationMetadata: map[string]string{
							"delegation_task": in.TaskDescription,
						},
					},
				},
			}, nil
		},
	}
}
