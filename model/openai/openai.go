// Package openai implements an agent backed by the OpenAI Chat Completions
// API using the official client.
package openai

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/cowork-ai/swarm"
)

// Options configure the agent. Fields mirror a minimal subset of Chat
// Completion parameters; extend via functional options without breaking
// callers.
type Options struct {
	Name                string
	Capabilities        []swarm.Capability
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
	SystemPrompt        string
	APIKey              string
}

// Agent wraps the OpenAI Chat Completions API behind the swarm.Agent
// interface.
type Agent struct {
	client openai.Client
	opts   Options
}

var _ swarm.Agent = (*Agent)(nil)

// NewAgent creates an OpenAI-backed agent using the official client.
func NewAgent(optFns ...func(o *Options)) *Agent {
	opts := Options{
		Name:                "gpt",
		Capabilities:        []swarm.Capability{swarm.CapabilityConversation},
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.7,
		MaxCompletionTokens: 4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	return &Agent{
		client: openai.NewClient(clientOpts...),
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
func WithModel(model string) func(o *Options) {
	return func(o *Options) { o.Model = model }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) func(o *Options) {
	return func(o *Options) { o.Temperature = t }
}

// WithMaxCompletionTokens bounds the completion length.
func WithMaxCompletionTokens(n int64) func(o *Options) {
	return func(o *Options) { o.MaxCompletionTokens = n }
}

// WithSystemPrompt sets a system prompt sent with every request.
func WithSystemPrompt(prompt string) func(o *Options) {
	return func(o *Options) { o.SystemPrompt = prompt }
}

// WithAPIKey overrides the ambient OPENAI_API_KEY.
func WithAPIKey(key string) func(o *Options) {
	return func(o *Options) { o.APIKey = key }
}

func (a *Agent) Name() string { return a.opts.Name }

func (a *Agent) Capabilities() []swarm.Capability { return a.opts.Capabilities }

// Process sends a single-turn chat completion. Upstream output, when
// present in vars under "previous_response", is folded into the prompt.
func (a *Agent) Process(ctx context.Context, message string, vars map[string]any) (*swarm.Response, error) {
	var messages []openai.ChatCompletionMessageParamUnion
	if a.opts.SystemPrompt != "" {
		messages = append(messages, openai.SystemMessage(a.opts.SystemPrompt))
	}
	messages = append(messages, openai.UserMessage(buildPrompt(message, vars)))

	resp, err := a.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:               a.opts.Model,
		Messages:            messages,
		Temperature:         openai.Float(a.opts.Temperature),
		MaxCompletionTokens: openai.Int(a.opts.MaxCompletionTokens),
	})
	if err != nil {
		return nil, fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai api returned no choices")
	}

	return &swarm.Response{
		AgentName:  a.opts.Name,
		Content:    resp.Choices[0].Message.Content,
		Success:    true,
		Confidence: 1.0,
		TokensIn:   int(resp.Usage.PromptTokens),
		TokensOut:  int(resp.Usage.CompletionTokens),
	}, nil
}

func buildPrompt(message string, vars map[string]any) string {
	prev, _ := vars["previous_response"].(string)
	if prev == "" {
		return message
	}
	return fmt.Sprintf("Context from the previous step:\n%s\n\nTask: %s", prev, message)
}
