package domain

// ToolSpec describes a tool offered to a model.
// Parameters holds the JSON Schema "properties" object of the tool input.
type ToolSpec struct {
	Name        string         `json:"name" yaml:"name" mapstructure:"name"`
	Description string         `json:"description" yaml:"description" mapstructure:"description"`
	Parameters  map[string]any `json:"parameters,omitempty" yaml:"parameters,omitempty" mapstructure:"parameters"`
	Required    []string       `json:"required,omitempty" yaml:"required,omitempty" mapstructure:"required"`
}

// ToolResult is what a tool hands back to the model.
// Tools never fail the stage: faults are reported as data with IsError set.
type ToolResult struct {
	Result  any    `json:"result,omitempty"`
	IsError bool   `json:"is_error,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ToolFailure builds an error result.
func ToolFailure(msg string) ToolResult {
	return ToolResult{IsError: true, Error: msg, Result: map[string]string{"error": msg}}
}
