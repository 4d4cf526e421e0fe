package agent

import (
	"context"
	"fmt"

	"github.com/loopwork/agentry/pkg/auth/handler"
	"github.com/loopwork/agentry/pkg/logger"
)

// Event types emitted while an agent runs.
const (
	// EventToolResult carries a completed tool's output.
	EventToolResult = "tool_result"
	// EventAuthRequired carries consent requests; the run is suspended
	// until they are resolved.
	EventAuthRequired = "auth_required"
	// EventRunComplete marks the end of a run.
	EventRunComplete = "run_complete"
)

// Event is one item in an agent run's output stream.
type Event struct {
	Type string `json:"type"`
	Tool string `json:"tool,omitempty"`
	Data any    `json:"data,omitempty"`
}

// ToolCall names a tool and its arguments.
type ToolCall struct {
	Tool string         `json:"tool"`
	Args map[string]any `json:"args,omitempty"`
}

// Agent is a named collection of tools executed sequentially.
type Agent struct {
	name  string
	tools map[string]Tool
	order []string
}

// New returns an empty agent.
func New(name string) *Agent {
	return &Agent{name: name, tools: map[string]Tool{}}
}

// Name returns the agent's name.
func (a *Agent) Name() string { return a.name }

// AddTool registers a tool. Tool names must be unique within the agent.
func (a *Agent) AddTool(t Tool) error {
	if _, exists := a.tools[t.Name()]; exists {
		return fmt.Errorf("agent %q already has a tool named %q", a.name, t.Name())
	}
	a.tools[t.Name()] = t
	a.order = append(a.order, t.Name())
	return nil
}

// Tool returns the named tool, or nil.
func (a *Agent) Tool(name string) Tool { return a.tools[name] }

// ToolNames returns the registered tool names in registration order.
func (a *Agent) ToolNames() []string {
	return append([]string(nil), a.order...)
}

// Run executes the calls in order, emitting an event per outcome. A
// pending tool suspends the run: an auth_required event is emitted and
// Run returns without executing the remaining calls. The host resolves
// the consent requests on the invocation and runs the calls again;
// completed tools find their credentials cached and re-run cheaply.
func (a *Agent) Run(ctx context.Context, inv *Invocation, calls []ToolCall, emit func(Event)) error {
	for _, call := range calls {
		if err := ctx.Err(); err != nil {
			return err
		}

		tool := a.Tool(call.Tool)
		if tool == nil {
			return fmt.Errorf("agent %q has no tool named %q", a.name, call.Tool)
		}

		outcome, err := tool.Call(ctx, inv, call.Args)
		if err != nil {
			return fmt.Errorf("tool %q: %w", call.Tool, err)
		}

		if outcome.Status == handler.StatusPending {
			logger.Infow("run suspended for user authorization",
				"agent", a.name, "tool", call.Tool, "invocation", inv.ID())
			emit(Event{Type: EventAuthRequired, Tool: call.Tool, Data: outcome.Requests})
			return nil
		}

		emit(Event{Type: EventToolResult, Tool: call.Tool, Data: outcome.Output})
	}

	emit(Event{Type: EventRunComplete})
	return nil
}
