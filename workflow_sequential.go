package swarm

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// SequentialWorkflow executes its steps strictly in declaration order on
// one logical flow, feeding each executed step's output into the next.
type SequentialWorkflow struct {
	workflowBase
}

// NewSequentialWorkflow builds a sequential runner from options.
func NewSequentialWorkflow(opts WorkflowOptions) (*SequentialWorkflow, error) {
	base, err := newWorkflowBase(opts)
	if err != nil {
		return nil, err
	}
	return &SequentialWorkflow{workflowBase: base}, nil
}

// Execute runs the chain from the first step. A failing step stops the
// chain: StepsCompleted reflects only the steps that executed
// successfully, and the text produced so far is still returned.
func (w *SequentialWorkflow) Execute(ctx context.Context, input string, vars map[string]any) (*WorkflowResult, error) {
	return w.run(ctx, input, vars, 0, nil)
}

// Resume continues a crashed run from its checkpoint: execution restarts
// at the persisted CurrentStep with the persisted context variables, and
// the last recorded step output replaces the original input as the
// running text.
func (w *SequentialWorkflow) Resume(ctx context.Context, cp *Checkpoint, input string) (*WorkflowResult, error) {
	if cp == nil {
		return nil, fmt.Errorf("checkpoint is required")
	}
	if cp.Status != CheckpointRunning {
		return nil, fmt.Errorf("checkpoint %s is not resumable: status %s", cp.ID, cp.Status)
	}
	if cp.CurrentStep >= len(w.steps) {
		return nil, fmt.Errorf("checkpoint %s is past the last step", cp.ID)
	}
	current := input
	if len(cp.TaskResults) > 0 {
		if text, ok := cp.TaskResults[len(cp.TaskResults)-1].Result.(string); ok {
			current = text
		}
	}
	w.events.Info(ctx, "workflow.resumed",
		slog.String("workflow", w.name),
		slog.String("checkpoint", cp.ID),
		slog.Int("from_step", cp.CurrentStep),
	)
	return w.runWithText(ctx, input, current, cp.Context, cp.CurrentStep, cp)
}

func (w *SequentialWorkflow) run(ctx context.Context, input string, vars map[string]any, startStep int, cp *Checkpoint) (*WorkflowResult, error) {
	return w.runWithText(ctx, input, input, vars, startStep, cp)
}

func (w *SequentialWorkflow) runWithText(ctx context.Context, input, current string, vars map[string]any, startStep int, cp *Checkpoint) (*WorkflowResult, error) {
	start := time.Now()
	wc := newWorkflowContext(input, vars)

	// A checkpoint handed to Resume is only persisted when this runner has
	// a manager to write through. Without one the run proceeds unpersisted.
	if w.checkpoints == nil {
		cp = nil
	} else if cp == nil {
		cp = w.checkpoints.Create(w.name, len(w.steps), wc.Variables, nil)
	}

	completed := 0
	output := ""
	success := true

	for i := startStep; i < len(w.steps); i++ {
		step := w.steps[i]
		if step.Condition != nil && !step.Condition(wc.Variables) {
			continue
		}

		w.fireBefore(step, wc)
		resp := w.runStep(ctx, step, current, wc.Variables)
		w.fireAfter(step, wc, resp)

		if !resp.Success {
			success = false
			if cp != nil {
				msg := fmt.Sprintf("step %s failed: %s", step.ID, resp.Content)
				if err := w.checkpoints.Fail(ctx, cp, msg); err != nil {
					w.logger.Warn("checkpoint fail-write failed", "workflow", w.name, "error", err)
				}
			}
			break
		}

		completed++
		wc.Responses = append(wc.Responses, resp)
		current = resp.Content
		output = resp.Content
		if step.OutputKey != "" {
			wc.Variables[step.OutputKey] = resp.Content
		}
		if cp != nil {
			if err := w.checkpoints.Checkpoint(ctx, cp, i+1, resp.Content, wc.Variables); err != nil {
				w.logger.Warn("checkpoint write failed", "workflow", w.name, "error", err)
			}
		}
	}

	if success && cp != nil {
		if err := w.checkpoints.Complete(ctx, cp); err != nil {
			w.logger.Warn("checkpoint complete failed", "workflow", w.name, "error", err)
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
