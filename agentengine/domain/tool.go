package domain

import "context"

// Tool describes a callable function to the model. InputSchema is a JSON schema object.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

// ToolHandler runs a tool. The result is any JSON-encodable value.
type ToolHandler func(ctx context.Context, args map[string]any) (any, error)

// NativeTool is a Tool with an in-process handler.
type NativeTool struct {
	Tool
	Handler ToolHandler
}

// Toolset resolves the tools available for one turn.
type Toolset interface {
	Tools() []Tool
	Lookup(name string) (*NativeTool, bool)
}
