// Package anthropic implements an agent backed by the Anthropic Messages
// API using the official client.
package anthropic

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/cowork-ai/swarm"
)

// Options configures the agent. Extend via functional options to preserve
// stability.
type Options struct {
	Name         string
	Capabilities []swarm.Capability
	Model        anthropic.Model
	Temperature  float64
	MaxTokens    int64
	SystemPrompt string
	APIKey       string
}

// Agent wraps the Anthropic Messages API behind the swarm.Agent interface.
type Agent struct {
	client anthropic.Client
	opts   Options
}

var _ swarm.Agent = (*Agent)(nil)

// NewAgent creates an Anthropic-backed agent using the official client.
func NewAgent(optFns ...func(o *Options)) *Agent {
	opts := Options{
		Name:         "claude",
		Capabilities: []swarm.Capability{swarm.CapabilityConversation},
		Model:        anthropic.ModelClaudeSonnet4_20250514,
		Temperature:  0.7,
		MaxTokens:    4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	return &Agent{
		client: anthropic.NewClient(clientOpts...),
		opts:   opts,
	}
}

// WithName sets the registered agent name.
func WithName(name string) func(o *Options) {
	return func(o *Options) { o.Name = name }
}

// WithCapabilities sets the capabilities the agent advertises.
func WithCapabilities(caps ...swarm.Capability) func(o *Options) {
	return func(o *Options) { o.Capabilities = caps }
}

// WithModel selects the model id.
func WithModel(model anthropic.Model) func(o *Options) {
	return func(o *Options) { o.Model = model }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) func(o *Options) {
	return func(o *Options) { o.Temperature = t }
}

// WithMaxTokens bounds the completion length.
func WithMaxTokens(n int64) func(o *Options) {
	return func(o *Options) { o.MaxTokens = n }
}

// WithSystemPrompt sets a system prompt sent with every request.
func WithSystemPrompt(prompt string) func(o *Options) {
	return func(o *Options) { o.SystemPrompt = prompt }
}

// WithAPIKey overrides the ambient ANTHROPIC_API_KEY.
func WithAPIKey(key string) func(o *Options) {
	return func(o *Options) { o.APIKey = key }
}

func (a *Agent) Name() string { return a.opts.Name }

func (a *Agent) Capabilities() []swarm.Capability { return a.opts.Capabilities }

// Process sends a single-turn message. Upstream output, when present in
// vars under "previous_response", is folded into the prompt as context.
func (a *Agent) Process(ctx context.Context, message string, vars map[string]any) (*swarm.Response, error) {
	params := anthropic.MessageNewParams{
		Model:       a.opts.Model,
		MaxTokens:   a.opts.MaxTokens,
		Temperature: anthropic.Float(a.opts.Temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(buildPrompt(message, vars))),
		},
	}
	if a.opts.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: a.opts.SystemPrompt}}
	}

	resp, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic api error: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.AsText().Text)
		}
	}
	return &swarm.Response{
		AgentName:  a.opts.Name,
		Content:    text.String(),
		Success:    true,
		Confidence: 1.0,
		TokensIn:   int(resp.Usage.InputTokens),
		TokensOut:  int(resp.Usage.OutputTokens),
	}, nil
}

func buildPrompt(message string, vars map[string]any) string {
	prev, _ := vars["previous_response"].(string)
	if prev == "" {
		return message
	}
	return fmt.Sprintf("Context from the previous step:\n%s\n\nTask: %s", prev, message)
}
