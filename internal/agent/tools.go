// ABOUTME: Builtin tool descriptors that can be enabled from configuration.
// ABOUTME: Unknown tool names are reported, never fatal.

package agent

import (
	"context"
	"time"

	"github.com/2389/agent-server/internal/config"
)

// ToolFunc executes a tool and returns a JSON-serialisable result.
type ToolFunc func(ctx context.Context) (map[string]any, error)

// Tool is a descriptor for a function the agent may call.
type Tool struct {
	Name        string
	Description string
	Call        ToolFunc
}

// ToolCurrentTime is the name of the builtin clock tool.
const ToolCurrentTime = "get_current_time"

// builtinTools maps tool names to their constructors.
var builtinTools = map[string]func() Tool{
	ToolCurrentTime: currentTimeTool,
}

// BuildTools resolves the enabled entries of cfgs into tools, preserving order.
// Disabled entries are skipped silently; enabled entries with no builtin
// implementation are returned in unknown.
func BuildTools(cfgs []config.ToolConfig) (tools []Tool, unknown []string) {
	for _, tc := range cfgs {
		if !tc.Enabled {
			continue
		}
		newTool, ok := builtinTools[tc.Name]
		if !ok {
			unknown = append(unknown, tc.Name)
			continue
		}
		tools = append(tools, newTool())
	}
	return tools, unknown
}

func currentTimeTool() Tool {
	return Tool{
		Name:        ToolCurrentTime,
		Description: "Get the current time in ISO format.",
		Call: func(ctx context.Context) (map[string]any, error) {
			return map[string]any{
				"current_time": time.Now().UTC().Format(time.RFC3339),
				"timezone":     "UTC",
			}, nil
		},
	}
}
