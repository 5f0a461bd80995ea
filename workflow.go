package swarm

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/cowork-ai/swarm/retry"
	"github.com/cowork-ai/swarm/script"
	"github.com/cowork-ai/swarm/telemetry"
)

// StepCondition gates a step on the current workflow variables. A false
// result skips the step entirely: no hooks fire and it does not count
// toward StepsCompleted.
type StepCondition func(vars map[string]any) bool

// NewScriptCondition compiles an expression into a StepCondition. The
// workflow variables are exposed to the expression as the "vars" map;
// evaluation errors are treated as false.
func NewScriptCondition(ctx context.Context, compiler script.Compiler, code string) (StepCondition, error) {
	compiled, err := compiler.Compile(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to compile condition %q: %w", code, err)
	}
	return func(vars map[string]any) bool {
		value, err := compiled.Evaluate(context.Background(), map[string]any{"vars": vars})
		if err != nil {
			return false
		}
		return value.IsTruthy()
	}, nil
}

// WorkflowStep binds an agent into a workflow. Steps are declared at build
// time and immutable thereafter; declaration order is execution and
// aggregation order.
type WorkflowStep struct {
	ID        string
	Agent     Agent
	Condition StepCondition
	OutputKey string

	// MaxRetries is how many extra attempts the runner makes when the
	// agent returns a recoverable error. Zero means a single attempt.
	MaxRetries int
}

// WorkflowContext is the mutable state shared across the steps of one
// execution. It is created fresh per Execute call and embedded into the
// result for inspection.
type WorkflowContext struct {
	Input     string
	Variables map[string]any
	Responses []*Response
}

func newWorkflowContext(input string, vars map[string]any) *WorkflowContext {
	wc := &WorkflowContext{Input: input, Variables: map[string]any{}}
	for k, v := range vars {
		wc.Variables[k] = v
	}
	return wc
}

// WorkflowResult is the outcome of one workflow execution. Partial
// progress is a first-class outcome: Output holds whatever text was
// produced even when Success is false.
type WorkflowResult struct {
	Success        bool
	Output         string
	StepsCompleted int
	Context        *WorkflowContext
	Duration       time.Duration
}

// BeforeStepHook runs before a qualifying step executes.
type BeforeStepHook func(step *WorkflowStep, wc *WorkflowContext)

// AfterStepHook runs after a step's agent has produced its response.
type AfterStepHook func(step *WorkflowStep, wc *WorkflowContext, resp *Response)

// Aggregator combines parallel step responses, received in declaration
// order, into the workflow output.
type Aggregator func(responses []*Response) string

// Workflow is the common surface of the sequential and parallel runners.
type Workflow interface {
	Name() string
	Steps() []*WorkflowStep
	BeforeStep(hooks ...BeforeStepHook)
	AfterStep(hooks ...AfterStepHook)
	Execute(ctx context.Context, input string, vars map[string]any) (*WorkflowResult, error)
}

// WorkflowOptions configures a workflow runner.
type WorkflowOptions struct {
	Name  string
	Steps []*WorkflowStep

	Logger      *slog.Logger
	Metrics     *telemetry.Collector
	Checkpoints *CheckpointManager

	// RetryBaseWait overrides the wait after a step's first failed
	// attempt. Zero selects retry.DefaultBaseWait.
	RetryBaseWait time.Duration

	// Aggregator applies to parallel workflows only. Nil selects the
	// default whitespace join in declaration order.
	Aggregator Aggregator
}

// workflowBase carries what both runners share: the step list, hook
// registration, and the observability plumbing.
type workflowBase struct {
	name        string
	steps       []*WorkflowStep
	beforeHooks []BeforeStepHook
	afterHooks  []AfterStepHook
	logger      *slog.Logger
	events      *telemetry.EventLogger
	metrics     *telemetry.Collector
	checkpoints *CheckpointManager
	retryWait   time.Duration
}

func newWorkflowBase(opts WorkflowOptions) (workflowBase, error) {
	if opts.Name == "" {
		return workflowBase{}, fmt.Errorf("workflow name required")
	}
	if len(opts.Steps) == 0 {
		return workflowBase{}, fmt.Errorf("steps required")
	}
	seen := map[string]struct{}{}
	for _, step := range opts.Steps {
		if step.ID == "" {
			return workflowBase{}, fmt.Errorf("step id required")
		}
		if step.Agent == nil {
			return workflowBase{}, fmt.Errorf("step %q requires an agent", step.ID)
		}
		if _, dup := seen[step.ID]; dup {
			return workflowBase{}, fmt.Errorf("duplicate step id: %q", step.ID)
		}
		seen[step.ID] = struct{}{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.RetryBaseWait <= 0 {
		opts.RetryBaseWait = retry.DefaultBaseWait
	}
	return workflowBase{
		name:        opts.Name,
		steps:       opts.Steps,
		logger:      opts.Logger,
		events:      telemetry.NewEventLogger(opts.Logger),
		metrics:     opts.Metrics,
		checkpoints: opts.Checkpoints,
		retryWait:   opts.RetryBaseWait,
	}, nil
}

// Name returns the workflow name.
func (w *workflowBase) Name() string { return w.name }

// Steps returns the declared steps in execution order.
func (w *workflowBase) Steps() []*WorkflowStep { return w.steps }

// BeforeStep registers hooks that fire before every qualifying step, in
// registration order.
func (w *workflowBase) BeforeStep(hooks ...BeforeStepHook) {
	w.beforeHooks = append(w.beforeHooks, hooks...)
}

// AfterStep registers hooks that fire after every executed step, in
// registration order.
func (w *workflowBase) AfterStep(hooks ...AfterStepHook) {
	w.afterHooks = append(w.afterHooks, hooks...)
}

func (w *workflowBase) fireBefore(step *WorkflowStep, wc *WorkflowContext) {
	for _, hook := range w.beforeHooks {
		hook(step, wc)
	}
}

func (w *workflowBase) fireAfter(step *WorkflowStep, wc *WorkflowContext, resp *Response) {
	for _, hook := range w.afterHooks {
		hook(step, wc, resp)
	}
}

// runStep executes one step's agent inside a span, converting an agent
// error into a failed response, and records metrics when a collector is
// configured. Recoverable agent errors are retried with linear backoff up
// to the step's MaxRetries before the step is considered failed.
func (w *workflowBase) runStep(ctx context.Context, step *WorkflowStep, input string, vars map[string]any) *Response {
	var resp *Response
	_ = telemetry.WithSpan(ctx, "workflow.step", func(ctx context.Context) error {
		start := time.Now()
		err := retry.Do(ctx, func() error {
			var perr error
			resp, perr = step.Agent.Process(ctx, input, vars)
			return perr
		},
			retry.WithMaxRetries(step.MaxRetries),
			retry.WithBaseWait(w.retryWait),
			retry.WithOnRetry(func(attempt int, rerr error) {
				w.events.Warn(ctx, "step.retried",
					slog.String("workflow", w.name),
					slog.String("step", step.ID),
					slog.Int("attempt", attempt),
					slog.String("error", rerr.Error()),
				)
			}),
		)
		latency := time.Since(start)
		if err != nil {
			resp = &Response{
				AgentName: step.Agent.Name(),
				Content:   fmt.Sprintf("Error: %s", err),
				Success:   false,
			}
		}
		if w.metrics != nil {
			w.metrics.Record(step.Agent.Name(), resp.Success, latency, resp.TokensIn, resp.TokensOut)
		}
		w.events.Info(ctx, "step.executed",
			slog.String("workflow", w.name),
			slog.String("step", step.ID),
			slog.String("agent", step.Agent.Name()),
			slog.Bool("success", resp.Success),
			slog.Duration("latency", latency),
		)
		return err
	})
	return resp
}
