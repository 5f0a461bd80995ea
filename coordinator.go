package swarm

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/cowork-ai/swarm/telemetry"
)

// WorkflowMode selects how a plan's tasks are dispatched.
type WorkflowMode string

const (
	// ModeSequential runs tasks one after another, feeding each task's
	// output into the next task's context.
	ModeSequential WorkflowMode = "sequential"

	// ModeParallel dispatches all tasks concurrently with the original
	// input and joins the results in task-declaration order.
	ModeParallel WorkflowMode = "parallel"

	// ModeAdaptive lets the classifier resolve the mode from the message.
	ModeAdaptive WorkflowMode = "adaptive"
)

// Task is one unit of a plan: a required capability and the input text the
// selected agent will process.
type Task struct {
	Capability Capability
	Input      string
}

// ExecutionPlan is built once per request and consumed once. Progress is
// persisted via checkpoints, never via the plan itself.
type ExecutionPlan struct {
	Tasks []Task
	Mode  WorkflowMode
}

// TaskResult records the outcome of dispatching one task.
type TaskResult struct {
	Task      Task
	AgentName string
	Response  *Response
	Err       string
}

// Succeeded reports whether the task produced a successful response.
func (r *TaskResult) Succeeded() bool {
	return r.Response != nil && r.Response.Success
}

// Result aggregates a coordinated execution.
type Result struct {
	RunID          string
	Content        string
	Success        bool
	TasksCompleted int
	TasksFailed    int
	AgentsUsed     []string
	TaskResults    []TaskResult
	Duration       time.Duration
}

// CoordinatorOptions configures a Coordinator.
type CoordinatorOptions struct {
	Registry   *Registry
	Classifier Classifier
	Metrics    *telemetry.Collector
	Logger     *slog.Logger

	// Checkpoints, when set, persists sequential plan progress after each
	// task so a killed process can be diagnosed and resumed.
	Checkpoints *CheckpointManager
}

// Coordinator turns a free-form request into an execution plan, routes each
// task to the best registered agent, and aggregates the results. Failures
// are data: the returned Result describes what succeeded and what did not,
// and Execute only returns an error for caller mistakes or a canceled
// context.
type Coordinator struct {
	registry    *Registry
	classifier  Classifier
	metrics     *telemetry.Collector
	logger      *slog.Logger
	events      *telemetry.EventLogger
	checkpoints *CheckpointManager
}

// NewCoordinator creates a coordinator. The registry is required.
func NewCoordinator(opts CoordinatorOptions) (*Coordinator, error) {
	if opts.Registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if opts.Classifier == nil {
		opts.Classifier = NewRuleClassifier()
	}
	if opts.Metrics == nil {
		opts.Metrics = telemetry.NewCollector()
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Coordinator{
		registry:    opts.Registry,
		classifier:  opts.Classifier,
		metrics:     opts.Metrics,
		logger:      opts.Logger,
		events:      telemetry.NewEventLogger(opts.Logger),
		checkpoints: opts.Checkpoints,
	}, nil
}

// Metrics exposes the collector feeding this coordinator.
func (c *Coordinator) Metrics() *telemetry.Collector { return c.metrics }

// BuildPlan constructs the execution plan for a message. Every request
// yields at least one task: when no intent rule matches, a single
// conversation task carries the whole message.
func (c *Coordinator) BuildPlan(message string, mode WorkflowMode) *ExecutionPlan {
	caps := c.classifier.Classify(message)
	if len(caps) == 0 {
		caps = []Capability{CapabilityConversation}
	}
	tasks := make([]Task, 0, len(caps))
	for _, cap := range caps {
		tasks = append(tasks, Task{Capability: cap, Input: message})
	}
	if mode == ModeAdaptive || mode == "" {
		mode = c.classifier.Mode(message, len(tasks))
	}
	return &ExecutionPlan{Tasks: tasks, Mode: mode}
}

// Execute runs a request end to end. The ctx deadline, if any, propagates
// into every dispatched task; on cancellation mid-plan the results
// collected so far are returned with Success=false.
func (c *Coordinator) Execute(ctx context.Context, message string, mode WorkflowMode) (*Result, error) {
	start := time.Now()
	runID := uuid.NewString()

	plan := c.BuildPlan(message, mode)

	ctx, span := telemetry.StartSpan(ctx, "coordinator.execute",
		attribute.String("run_id", runID),
		attribute.String("mode", string(plan.Mode)),
		attribute.Int("tasks", len(plan.Tasks)),
	)
	defer span.End()

	c.events.Info(ctx, "plan.built",
		slog.String("run_id", runID),
		slog.String("mode", string(plan.Mode)),
		slog.Int("tasks", len(plan.Tasks)),
	)

	var results []TaskResult
	var runErr error
	if plan.Mode == ModeParallel {
		results, runErr = c.executeParallel(ctx, plan)
	} else {
		results, runErr = c.executeSequential(ctx, runID, plan)
	}

	result := c.aggregate(runID, results, time.Since(start))
	if runErr != nil {
		result.Success = false
	}
	c.events.Info(ctx, "plan.finished",
		slog.String("run_id", runID),
		slog.Bool("success", result.Success),
		slog.Int("tasks_completed", result.TasksCompleted),
		slog.Int("tasks_failed", result.TasksFailed),
	)
	return result, runErr
}

// Chat runs Execute with adaptive mode and returns only the aggregated
// text.
func (c *Coordinator) Chat(ctx context.Context, message string) (string, error) {
	result, err := c.Execute(ctx, message, ModeAdaptive)
	if err != nil {
		return "", err
	}
	return result.Content, nil
}

func (c *Coordinator) executeSequential(ctx context.Context, runID string, plan *ExecutionPlan) ([]TaskResult, error) {
	var cp *Checkpoint
	if c.checkpoints != nil {
		cp = c.checkpoints.Create("coordinator:"+runID, len(plan.Tasks), nil, map[string]any{"mode": string(plan.Mode)})
	}

	results := make([]TaskResult, 0, len(plan.Tasks))
	vars := map[string]any{}
	for i, task := range plan.Tasks {
		if err := ctx.Err(); err != nil {
			if cp != nil {
				_ = c.checkpoints.Fail(context.WithoutCancel(ctx), cp, err.Error())
			}
			return results, err
		}

		res := c.dispatch(ctx, task, vars)
		results = append(results, res)
		if res.Succeeded() {
			// Forward the output so the next task sees it in context.
			vars["previous_response"] = res.Response.Content
			vars[fmt.Sprintf("response_%d", i)] = res.Response.Content
		}
		if cp != nil {
			var content any
			if res.Response != nil {
				content = res.Response.Content
			}
			if err := c.checkpoints.Checkpoint(ctx, cp, i+1, content, vars); err != nil {
				c.logger.Warn("checkpoint write failed", "run_id", runID, "error", err)
			}
		}
	}
	if cp != nil {
		if err := c.checkpoints.Complete(ctx, cp); err != nil {
			c.logger.Warn("checkpoint complete failed", "run_id", runID, "error", err)
		}
	}
	return results, nil
}

func (c *Coordinator) executeParallel(ctx context.Context, plan *ExecutionPlan) ([]TaskResult, error) {
	results := make([]TaskResult, len(plan.Tasks))
	g, gctx := errgroup.WithContext(ctx)
	for i, task := range plan.Tasks {
		g.Go(func() error {
			// Each branch gets its own vars; parallel tasks never see
			// each other's output.
			results[i] = c.dispatch(gctx, task, map[string]any{})
			return nil
		})
	}
	// Join barrier: wait for every dispatched task, no early return.
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, ctx.Err()
}

// dispatch routes one task to the best capable agent and executes it inside
// a span. Routing misses and agent errors become failed task results, never
// aborts.
func (c *Coordinator) dispatch(ctx context.Context, task Task, vars map[string]any) TaskResult {
	entry := c.registry.GetBestForCapability(task.Capability)
	if entry == nil {
		c.events.Warn(ctx, "task.unroutable", slog.String("capability", string(task.Capability)))
		return TaskResult{Task: task, Err: fmt.Sprintf("No capable agent found for %s", task.Capability)}
	}

	agentName := entry.Name()
	result := TaskResult{Task: task, AgentName: agentName}

	_ = telemetry.WithSpan(ctx, "agent.process", func(ctx context.Context) error {
		start := time.Now()
		resp, err := entry.Agent.Process(ctx, task.Input, vars)
		latency := time.Since(start)

		if err != nil {
			resp = &Response{
				AgentName: agentName,
				Content:   fmt.Sprintf("Error: %s", err),
				Success:   false,
			}
			result.Err = err.Error()
		}
		result.Response = resp
		c.metrics.Record(agentName, resp.Success, latency, resp.TokensIn, resp.TokensOut)
		c.events.Info(ctx, "task.dispatched",
			slog.String("agent", agentName),
			slog.String("capability", string(task.Capability)),
			slog.Bool("success", resp.Success),
			slog.Duration("latency", latency),
		)
		return err
	},
		attribute.String("capability", string(task.Capability)),
		attribute.String("agent", agentName),
	)
	return result
}

// aggregate joins successful responses in task-declaration order, never
// completion order, so output is deterministic.
func (c *Coordinator) aggregate(runID string, results []TaskResult, elapsed time.Duration) *Result {
	var parts []string
	var agents []string
	seen := map[string]struct{}{}
	completed, failed := 0, 0

	for _, res := range results {
		if res.Succeeded() {
			completed++
			parts = append(parts, res.Response.Content)
		} else {
			failed++
		}
		if res.AgentName != "" && res.Response != nil {
			if _, dup := seen[res.AgentName]; !dup {
				seen[res.AgentName] = struct{}{}
				agents = append(agents, res.AgentName)
			}
		}
	}

	return &Result{
		RunID:          runID,
		Content:        strings.Join(parts, "\n\n"),
		Success:        completed > 0,
		TasksCompleted: completed,
		TasksFailed:    failed,
		AgentsUsed:     agents,
		TaskResults:    results,
		Duration:       elapsed,
	}
}
