// ABOUTME: Tests for agent spec construction, builtin tools and event helpers.

package agent

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/agent-server/internal/config"
)

func TestFromConfig(t *testing.T) {
	spec, unknown := FromConfig(config.AgentConfig{
		Name:        "my_yaml_agent",
		Model:       "gemini-2.0-flash",
		Description: "desc",
		Instruction: "Be helpful",
		Tools: []config.ToolConfig{
			{Name: "get_current_time", Enabled: true},
			{Name: "web_search", Enabled: true},
			{Name: "calculator", Enabled: false},
		},
	})

	assert.Equal(t, "my_yaml_agent", spec.Name())
	assert.Equal(t, "gemini-2.0-flash", spec.Model())
	assert.Equal(t, "desc", spec.Description())
	assert.Equal(t, "Be helpful", spec.Instruction())
	assert.Equal(t, []string{ToolCurrentTime}, spec.ToolNames())
	assert.Equal(t, []string{"web_search"}, unknown)
}

func TestSpec_ToolsIsACopy(t *testing.T) {
	spec := NewSpec("a", "m", "", "", Tool{Name: "one"})

	tools := spec.Tools()
	tools[0].Name = "mutated"

	assert.Equal(t, []string{"one"}, spec.ToolNames())
}

func TestCurrentTimeTool(t *testing.T) {
	tools, unknown := BuildTools([]config.ToolConfig{{Name: ToolCurrentTime, Enabled: true}})
	require.Len(t, tools, 1)
	assert.Empty(t, unknown)

	result, err := tools[0].Call(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "UTC", result["timezone"])

	ts, ok := result["current_time"].(string)
	require.True(t, ok)
	_, err = time.Parse(time.RFC3339, ts)
	assert.NoError(t, err)
}

func TestMessage(t *testing.T) {
	msg := NewUserMessage("hello")
	assert.Equal(t, RoleUser, msg.Role)
	assert.Equal(t, "hello", msg.Text())

	clone := msg.Clone()
	clone.Parts[0].Text = "changed"
	assert.Equal(t, "hello", msg.Text())

	multi := Message{Role: RoleAgent, Parts: []Part{{Text: "a"}, {Text: "b"}}}
	assert.Equal(t, "ab", multi.Text())
}

func TestEventHelpers(t *testing.T) {
	var nilEvent *Event
	assert.False(t, nilEvent.IsFinal())
	assert.False(t, nilEvent.HasParts())
	assert.Equal(t, "", nilEvent.FirstText())

	empty := &Event{Final: true, Content: &Message{Role: RoleAgent}}
	assert.True(t, empty.IsFinal())
	assert.False(t, empty.HasParts())

	reply := NewAgentMessage("T")
	done := &Event{Kind: EventDone, Final: true, Content: &reply}
	assert.True(t, done.HasParts())
	assert.Equal(t, "T", done.FirstText())
	assert.Equal(t, "done", done.Kind.String())
}
