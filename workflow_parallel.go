package swarm

import (
	"context"
	"strings"
	"sync"
	"time"
)

// ParallelWorkflow dispatches all qualifying steps concurrently against
// the same original input and joins the results in declaration order.
type ParallelWorkflow struct {
	workflowBase
	aggregator Aggregator
}

// NewParallelWorkflow builds a parallel runner from options.
func NewParallelWorkflow(opts WorkflowOptions) (*ParallelWorkflow, error) {
	base, err := newWorkflowBase(opts)
	if err != nil {
		return nil, err
	}
	aggregator := opts.Aggregator
	if aggregator == nil {
		aggregator = DefaultAggregator
	}
	return &ParallelWorkflow{workflowBase: base, aggregator: aggregator}, nil
}

// DefaultAggregator joins all responses' content with whitespace, in
// declaration order.
func DefaultAggregator(responses []*Response) string {
	parts := make([]string, 0, len(responses))
	for _, resp := range responses {
		if resp != nil && resp.Content != "" {
			parts = append(parts, resp.Content)
		}
	}
	return strings.Join(parts, "\n\n")
}

// Execute fans out every step whose condition passes, waits for all of
// them (there is no early return on first failure), and aggregates the
// responses. Success requires every dispatched step to have reported
// success. Hooks fire around each step's own execution; firing order
// across steps is concurrent and unspecified.
func (w *ParallelWorkflow) Execute(ctx context.Context, input string, vars map[string]any) (*WorkflowResult, error) {
	start := time.Now()
	wc := newWorkflowContext(input, vars)

	// Conditions are evaluated once, against the initial variables.
	var dispatched []*WorkflowStep
	for _, step := range w.steps {
		if step.Condition != nil && !step.Condition(wc.Variables) {
			continue
		}
		dispatched = append(dispatched, step)
	}

	var cp *Checkpoint
	if w.checkpoints != nil {
		cp = w.checkpoints.Create(w.name, len(dispatched), wc.Variables, nil)
	}

	responses := make([]*Response, len(dispatched))
	var wg sync.WaitGroup
	for i, step := range dispatched {
		wg.Add(1)
		go func(i int, step *WorkflowStep) {
			defer wg.Done()
			// Each branch sees its own copy of the variables; outputs are
			// merged after the join, in declaration order.
			branchVars := copyMap(wc.Variables)
			w.fireBefore(step, wc)
			resp := w.runStep(ctx, step, input, branchVars)
			w.fireAfter(step, wc, resp)
			responses[i] = resp
		}(i, step)
	}
	wg.Wait()

	completed := 0
	success := len(dispatched) > 0
	for i, resp := range responses {
		if resp.Success {
			completed++
			wc.Responses = append(wc.Responses, resp)
			if dispatched[i].OutputKey != "" {
				wc.Variables[dispatched[i].OutputKey] = resp.Content
			}
		} else {
			success = false
		}
	}

	output := w.aggregator(responses)

	if cp != nil {
		if err := w.checkpoints.Checkpoint(ctx, cp, len(dispatched), output, wc.Variables); err != nil {
			w.logger.Warn("checkpoint write failed", "workflow", w.name, "error", err)
		}
		if success {
			if err := w.checkpoints.Complete(ctx, cp); err != nil {
				w.logger.Warn("checkpoint complete failed", "workflow", w.name, "error", err)
			}
		} else {
			if err := w.checkpoints.Fail(ctx, cp, "one or more parallel steps failed"); err != nil {
				w.logger.Warn("checkpoint fail-write failed", "workflow", w.name, "error", err)
			}
		}
	}

	return &WorkflowResult{
		Success:        success,
		Output:         output,
		StepsCompleted: completed,
		Context:        wc,
		Duration:       time.Since(start),
	}, nil
}
