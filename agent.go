package swarm

import (
	"context"
	"fmt"
)

// Response is the immutable value an agent returns for one invocation.
type Response struct {
	AgentName  string  `json:"agent_name"`
	Content    string  `json:"content"`
	Success    bool    `json:"success"`
	Confidence float64 `json:"confidence"`
	TokensIn   int     `json:"tokens_in,omitempty"`
	TokensOut  int     `json:"tokens_out,omitempty"`
}

// Agent is the unit of work dispatched by the Coordinator and the workflow
// runners. Implementations may call a model backend, a search index, or
// anything else; the orchestrator only sees this contract.
//
// Process reports domain-level failure through Response.Success. A non-nil
// error means the agent itself broke (transport, panic-equivalent); callers
// above a single agent invocation convert it into a failed result rather
// than propagating it.
type Agent interface {
	Name() string
	Capabilities() []Capability
	Process(ctx context.Context, message string, vars map[string]any) (*Response, error)
}

// ProcessFunc is the signature for function-backed agents.
type ProcessFunc func(ctx context.Context, message string, vars map[string]any) (*Response, error)

type agentFunction struct {
	name         string
	capabilities []Capability
	fn           ProcessFunc
}

// NewAgentFunction wraps a plain function as an Agent. Handy for tests and
// for gluing existing code into a registry without a dedicated type.
func NewAgentFunction(name string, capabilities []Capability, fn ProcessFunc) Agent {
	return &agentFunction{name: name, capabilities: capabilities, fn: fn}
}

func (a *agentFunction) Name() string { return a.name }

func (a *agentFunction) Capabilities() []Capability { return a.capabilities }

func (a *agentFunction) Process(ctx context.Context, message string, vars map[string]any) (*Response, error) {
	if a.fn == nil {
		return nil, fmt.Errorf("agent %q has no process function", a.name)
	}
	return a.fn(ctx, message, vars)
}
