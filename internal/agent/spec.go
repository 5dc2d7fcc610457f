// ABOUTME: Immutable agent specification built once at startup from configuration.
// ABOUTME: Holds name, model, description, instruction and the resolved tool list.

package agent

import (
	"slices"

	"github.com/2389/agent-server/internal/config"
)

// Spec describes the agent served by this process. It is immutable: fields
// are unexported and accessors return copies.
type Spec struct {
	name        string
	model       string
	description string
	instruction string
	tools       []Tool
}

// NewSpec creates a Spec.
func NewSpec(name, model, description, instruction string, tools ...Tool) Spec {
	return Spec{
		name:        name,
		model:       model,
		description: description,
		instruction: instruction,
		tools:       slices.Clone(tools),
	}
}

// FromConfig builds a Spec from the agent section of the configuration.
// Enabled tools that are not known builtins are returned so the caller can warn.
func FromConfig(cfg config.AgentConfig) (Spec, []string) {
	tools, unknown := BuildTools(cfg.Tools)
	return NewSpec(cfg.Name, cfg.Model, cfg.Description, cfg.Instruction, tools...), unknown
}

func (s Spec) Name() string        { return s.name }
func (s Spec) Model() string       { return s.model }
func (s Spec) Description() string { return s.description }
func (s Spec) Instruction() string { return s.instruction }

// Tools returns the resolved tools in configuration order.
func (s Spec) Tools() []Tool {
	return slices.Clone(s.tools)
}

// ToolNames returns the names of the resolved tools.
func (s Spec) ToolNames() []string {
	names := make([]string, len(s.tools))
	for i, t := range s.tools {
		names[i] = t.Name
	}
	return names
}
