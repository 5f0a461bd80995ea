package swarm

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cowork-ai/swarm/script"
)

func tagAgent(name, tag string) Agent {
	return NewAgentFunction(name, []Capability{CapabilityConversation},
		func(ctx context.Context, message string, vars map[string]any) (*Response, error) {
			return &Response{
				AgentName: name,
				Content:   fmt.Sprintf("[%s] %s", tag, message),
				Success:   true,
			}, nil
		})
}

func failingAgent(name string) Agent {
	return NewAgentFunction(name, []Capability{CapabilityConversation},
		func(ctx context.Context, message string, vars map[string]any) (*Response, error) {
			return nil, fmt.Errorf("boom")
		})
}

func TestWorkflowValidation(t *testing.T) {
	t.Run("name required", func(t *testing.T) {
		_, err := NewSequentialWorkflow(WorkflowOptions{
			Steps: []*WorkflowStep{{ID: "a", Agent: tagAgent("a", "A")}},
		})
		require.Error(t, err)
		require.Contains(t, err.Error(), "workflow name required")
	})

	t.Run("steps required", func(t *testing.T) {
		_, err := NewSequentialWorkflow(WorkflowOptions{Name: "empty"})
		require.Error(t, err)
		require.Contains(t, err.Error(), "steps required")
	})

	t.Run("step id required", func(t *testing.T) {
		_, err := NewSequentialWorkflow(WorkflowOptions{
			Name:  "w",
			Steps: []*WorkflowStep{{Agent: tagAgent("a", "A")}},
		})
		require.Error(t, err)
	})

	t.Run("duplicate step ids rejected", func(t *testing.T) {
		_, err := NewSequentialWorkflow(WorkflowOptions{
			Name: "w",
			Steps: []*WorkflowStep{
				{ID: "a", Agent: tagAgent("a", "A")},
				{ID: "a", Agent: tagAgent("b", "B")},
			},
		})
		require.Error(t, err)
	})

	t.Run("agent required", func(t *testing.T) {
		_, err := NewSequentialWorkflow(WorkflowOptions{
			Name:  "w",
			Steps: []*WorkflowStep{{ID: "a"}},
		})
		require.Error(t, err)
	})
}

func TestSequentialWorkflowChaining(t *testing.T) {
	wf, err := NewSequentialWorkflow(WorkflowOptions{
		Name: "chain",
		Steps: []*WorkflowStep{
			{ID: "one", Agent: tagAgent("a", "A")},
			{ID: "two", Agent: tagAgent("b", "B")},
		},
	})
	require.NoError(t, err)

	result, err := wf.Execute(context.Background(), "start", nil)
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Equal(t, 2, result.StepsCompleted)
	// Step two receives step one's output as its input.
	require.Equal(t, "[B] [A] start", result.Output)
	require.Len(t, result.Context.Responses, 2)
}

func TestSequentialWorkflowConditionSkip(t *testing.T) {
	wf, err := NewSequentialWorkflow(WorkflowOptions{
		Name: "conditional",
		Steps: []*WorkflowStep{
			{ID: "one", Agent: tagAgent("a", "A"), OutputKey: "first"},
			{
				ID:    "skipped",
				Agent: tagAgent("b", "B"),
				Condition: func(vars map[string]any) bool {
					return false
				},
			},
			{ID: "three", Agent: tagAgent("c", "C")},
		},
	})
	require.NoError(t, err)

	var fired []string
	wf.BeforeStep(func(step *WorkflowStep, wc *WorkflowContext) {
		fired = append(fired, step.ID)
	})

	result, err := wf.Execute(context.Background(), "start", nil)
	require.NoError(t, err)
	require.True(t, result.Success)
	// Skipped steps do not count and do not fire hooks.
	require.Equal(t, 2, result.StepsCompleted)
	require.Equal(t, []string{"one", "three"}, fired)
	require.Equal(t, "[C] [A] start", result.Output)
}

func TestSequentialWorkflowFailureHaltsChain(t *testing.T) {
	wf, err := NewSequentialWorkflow(WorkflowOptions{
		Name: "halting",
		Steps: []*WorkflowStep{
			{ID: "one", Agent: tagAgent("a", "A")},
			{ID: "two", Agent: failingAgent("b")},
			{ID: "three", Agent: tagAgent("c", "C")},
		},
	})
	require.NoError(t, err)

	result, err := wf.Execute(context.Background(), "start", nil)
	require.NoError(t, err)
	require.False(t, result.Success)
	require.Equal(t, 1, result.StepsCompleted)
	// Output keeps the text produced before the failure.
	require.Equal(t, "[A] start", result.Output)
}

func TestSequentialWorkflowOutputKey(t *testing.T) {
	wf, err := NewSequentialWorkflow(WorkflowOptions{
		Name: "keyed",
		Steps: []*WorkflowStep{
			{ID: "one", Agent: tagAgent("a", "A"), OutputKey: "findings"},
		},
	})
	require.NoError(t, err)

	result, err := wf.Execute(context.Background(), "start", nil)
	require.NoError(t, err)
	require.Equal(t, "[A] start", result.Context.Variables["findings"])
}

func TestSequentialWorkflowScriptCondition(t *testing.T) {
	ctx := context.Background()
	compiler := script.NewRisorCompiler(nil)

	cond, err := NewScriptCondition(ctx, compiler, `vars["findings"] != ""`)
	require.NoError(t, err)

	wf, err := NewSequentialWorkflow(WorkflowOptions{
		Name: "scripted",
		Steps: []*WorkflowStep{
			{ID: "search", Agent: tagAgent("a", "A"), OutputKey: "findings"},
			{ID: "report", Agent: tagAgent("b", "B"), Condition: cond},
		},
	})
	require.NoError(t, err)

	t.Run("condition true after upstream output", func(t *testing.T) {
		result, err := wf.Execute(ctx, "start", nil)
		require.NoError(t, err)
		require.Equal(t, 2, result.StepsCompleted)
	})

	t.Run("condition false skips step", func(t *testing.T) {
		only, err := NewSequentialWorkflow(WorkflowOptions{
			Name: "scripted-skip",
			Steps: []*WorkflowStep{
				{ID: "report", Agent: tagAgent("b", "B"), Condition: cond},
			},
		})
		require.NoError(t, err)

		result, err := only.Execute(ctx, "start", map[string]any{"findings": ""})
		require.NoError(t, err)
		require.Zero(t, result.StepsCompleted)
	})

	t.Run("compile error surfaces at build time", func(t *testing.T) {
		_, err := NewScriptCondition(ctx, compiler, `vars[`)
		require.Error(t, err)
	})
}

func TestSequentialWorkflowHookOrder(t *testing.T) {
	wf, err := NewSequentialWorkflow(WorkflowOptions{
		Name: "hooked",
		Steps: []*WorkflowStep{
			{ID: "one", Agent: tagAgent("a", "A")},
		},
	})
	require.NoError(t, err)

	var events []string
	wf.BeforeStep(func(step *WorkflowStep, wc *WorkflowContext) {
		events = append(events, "before:"+step.ID)
	})
	wf.AfterStep(func(step *WorkflowStep, wc *WorkflowContext, resp *Response) {
		events = append(events, "after:"+step.ID+":"+resp.Content)
	})

	_, err = wf.Execute(context.Background(), "x", nil)
	require.NoError(t, err)
	require.Equal(t, []string{"before:one", "after:one:[A] x"}, events)
}

func TestParallelWorkflowExecute(t *testing.T) {
	t.Run("default aggregator joins declaration order", func(t *testing.T) {
		var started sync.WaitGroup
		started.Add(3)
		barrier := func(name, tag string) Agent {
			return NewAgentFunction(name, []Capability{CapabilityConversation},
				func(ctx context.Context, message string, vars map[string]any) (*Response, error) {
					// Hold until all branches are in flight to prove fan-out.
					started.Done()
					started.Wait()
					return &Response{AgentName: name, Content: "[" + tag + "] " + message, Success: true}, nil
				})
		}
		wf, err := NewParallelWorkflow(WorkflowOptions{
			Name: "fanout",
			Steps: []*WorkflowStep{
				{ID: "one", Agent: barrier("a", "A")},
				{ID: "two", Agent: barrier("b", "B")},
				{ID: "three", Agent: barrier("c", "C")},
			},
		})
		require.NoError(t, err)

		result, err := wf.Execute(context.Background(), "go", nil)
		require.NoError(t, err)
		require.True(t, result.Success)
		require.Equal(t, 3, result.StepsCompleted)
		require.Equal(t, "[A] go\n\n[B] go\n\n[C] go", result.Output)
	})

	t.Run("all steps receive original input", func(t *testing.T) {
		var mu sync.Mutex
		inputs := map[string]string{}
		rec := func(name string) Agent {
			return NewAgentFunction(name, []Capability{CapabilityConversation},
				func(ctx context.Context, message string, vars map[string]any) (*Response, error) {
					mu.Lock()
					inputs[name] = message
					mu.Unlock()
					return &Response{AgentName: name, Content: name, Success: true}, nil
				})
		}
		wf, err := NewParallelWorkflow(WorkflowOptions{
			Name: "same-input",
			Steps: []*WorkflowStep{
				{ID: "one", Agent: rec("a")},
				{ID: "two", Agent: rec("b")},
			},
		})
		require.NoError(t, err)

		_, err = wf.Execute(context.Background(), "original", nil)
		require.NoError(t, err)
		require.Equal(t, map[string]string{"a": "original", "b": "original"}, inputs)
	})

	t.Run("one failure fails the workflow but all branches run", func(t *testing.T) {
		wf, err := NewParallelWorkflow(WorkflowOptions{
			Name: "partial",
			Steps: []*WorkflowStep{
				{ID: "one", Agent: tagAgent("a", "A")},
				{ID: "two", Agent: failingAgent("b")},
				{ID: "three", Agent: tagAgent("c", "C")},
			},
		})
		require.NoError(t, err)

		result, err := wf.Execute(context.Background(), "go", nil)
		require.NoError(t, err)
		require.False(t, result.Success)
		require.Equal(t, 2, result.StepsCompleted)
		require.Contains(t, result.Output, "[A] go")
		require.Contains(t, result.Output, "[C] go")
	})

	t.Run("custom aggregator", func(t *testing.T) {
		wf, err := NewParallelWorkflow(WorkflowOptions{
			Name: "custom",
			Steps: []*WorkflowStep{
				{ID: "one", Agent: tagAgent("a", "A")},
				{ID: "two", Agent: tagAgent("b", "B")},
			},
			Aggregator: func(responses []*Response) string {
				parts := make([]string, 0, len(responses))
				for _, r := range responses {
					parts = append(parts, r.AgentName)
				}
				return strings.Join(parts, ",")
			},
		})
		require.NoError(t, err)

		result, err := wf.Execute(context.Background(), "go", nil)
		require.NoError(t, err)
		require.Equal(t, "a,b", result.Output)
	})

	t.Run("output keys merge in declaration order", func(t *testing.T) {
		wf, err := NewParallelWorkflow(WorkflowOptions{
			Name: "keys",
			Steps: []*WorkflowStep{
				{ID: "one", Agent: tagAgent("a", "A"), OutputKey: "left"},
				{ID: "two", Agent: tagAgent("b", "B"), OutputKey: "right"},
			},
		})
		require.NoError(t, err)

		result, err := wf.Execute(context.Background(), "go", nil)
		require.NoError(t, err)
		require.Equal(t, "[A] go", result.Context.Variables["left"])
		require.Equal(t, "[B] go", result.Context.Variables["right"])
	})
}

func TestSequentialWorkflowCheckpointing(t *testing.T) {
	store := NewMemoryStateStore()
	manager, err := NewCheckpointManager(CheckpointManagerOptions{Store: store})
	require.NoError(t, err)

	t.Run("completed run leaves a completed checkpoint", func(t *testing.T) {
		wf, err := NewSequentialWorkflow(WorkflowOptions{
			Name:        "durable",
			Checkpoints: manager,
			Steps: []*WorkflowStep{
				{ID: "one", Agent: tagAgent("a", "A")},
				{ID: "two", Agent: tagAgent("b", "B")},
			},
		})
		require.NoError(t, err)

		_, err = wf.Execute(context.Background(), "go", nil)
		require.NoError(t, err)

		cp, err := store.GetLatest(context.Background(), "durable")
		require.NoError(t, err)
		require.NotNil(t, cp)
		require.Equal(t, CheckpointCompleted, cp.Status)
		require.Equal(t, 2, cp.CurrentStep)
		require.Len(t, cp.TaskResults, 2)
	})

	t.Run("failed run records the failing step", func(t *testing.T) {
		wf, err := NewSequentialWorkflow(WorkflowOptions{
			Name:        "fragile",
			Checkpoints: manager,
			Steps: []*WorkflowStep{
				{ID: "one", Agent: tagAgent("a", "A")},
				{ID: "two", Agent: failingAgent("b")},
			},
		})
		require.NoError(t, err)

		_, err = wf.Execute(context.Background(), "go", nil)
		require.NoError(t, err)

		cp, err := store.GetLatest(context.Background(), "fragile")
		require.NoError(t, err)
		require.NotNil(t, cp)
		require.Equal(t, CheckpointFailed, cp.Status)
		require.Contains(t, cp.Metadata["error"], "step two failed")
	})
}

func TestSequentialWorkflowResume(t *testing.T) {
	store := NewMemoryStateStore()
	manager, err := NewCheckpointManager(CheckpointManagerOptions{Store: store})
	require.NoError(t, err)

	var mu sync.Mutex
	var calls []string
	counting := func(name, tag string) Agent {
		return NewAgentFunction(name, []Capability{CapabilityConversation},
			func(ctx context.Context, message string, vars map[string]any) (*Response, error) {
				mu.Lock()
				calls = append(calls, name)
				mu.Unlock()
				return &Response{AgentName: name, Content: "[" + tag + "] " + message, Success: true}, nil
			})
	}

	wf, err := NewSequentialWorkflow(WorkflowOptions{
		Name:        "resumable",
		Checkpoints: manager,
		Steps: []*WorkflowStep{
			{ID: "one", Agent: counting("a", "A")},
			{ID: "two", Agent: counting("b", "B")},
		},
	})
	require.NoError(t, err)

	// Simulate a crash after step one.
	cp := manager.Create("resumable", 2, nil, nil)
	require.NoError(t, manager.Checkpoint(context.Background(), cp, 1, "[A] go", map[string]any{}))

	resumable, err := manager.GetResumable(context.Background(), "resumable")
	require.NoError(t, err)
	require.NotNil(t, resumable)

	result, err := wf.Resume(context.Background(), resumable, "go")
	require.NoError(t, err)
	require.True(t, result.Success)
	// Only the unfinished step runs, against the persisted step output.
	require.Equal(t, []string{"b"}, calls)
	require.Equal(t, 1, result.StepsCompleted)
	require.Equal(t, "[B] [A] go", result.Output)

	t.Run("completed checkpoint is not resumable", func(t *testing.T) {
		done, err := store.Load(context.Background(), resumable.ID)
		require.NoError(t, err)
		require.Equal(t, CheckpointCompleted, done.Status)

		_, err = wf.Resume(context.Background(), done, "go")
		require.Error(t, err)
	})
}

func TestSequentialWorkflowResumeWithoutManager(t *testing.T) {
	// A runner built without a checkpoint manager can still resume from a
	// checkpoint loaded elsewhere; progress is simply not re-persisted.
	wf, err := NewSequentialWorkflow(WorkflowOptions{
		Name: "detached",
		Steps: []*WorkflowStep{
			{ID: "one", Agent: tagAgent("a", "A")},
			{ID: "two", Agent: tagAgent("b", "B")},
		},
	})
	require.NoError(t, err)

	cp := &Checkpoint{
		SchemaVersion: CheckpointSchemaVersion,
		ID:            NewCheckpointID(),
		WorkflowName:  "detached",
		CurrentStep:   1,
		TotalSteps:    2,
		Status:        CheckpointRunning,
		Context:       map[string]any{},
		TaskResults:   []StepResult{{Step: 1, Result: "[A] go"}},
	}

	result, err := wf.Resume(context.Background(), cp, "go")
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Equal(t, "[B] [A] go", result.Output)
	require.Equal(t, 1, result.StepsCompleted)
}

func TestSequentialWorkflowStepRetry(t *testing.T) {
	flaky := func(name string, failures int) Agent {
		attempts := 0
		return NewAgentFunction(name, []Capability{CapabilityConversation},
			func(ctx context.Context, message string, vars map[string]any) (*Response, error) {
				attempts++
				if attempts <= failures {
					return nil, fmt.Errorf("connection refused")
				}
				return &Response{AgentName: name, Content: "[OK] " + message, Success: true}, nil
			})
	}

	t.Run("recoverable error succeeds within budget", func(t *testing.T) {
		wf, err := NewSequentialWorkflow(WorkflowOptions{
			Name:          "retrying",
			RetryBaseWait: time.Millisecond,
			Steps: []*WorkflowStep{
				{ID: "one", Agent: flaky("a", 2), MaxRetries: 2},
			},
		})
		require.NoError(t, err)

		result, err := wf.Execute(context.Background(), "go", nil)
		require.NoError(t, err)
		require.True(t, result.Success)
		require.Equal(t, "[OK] go", result.Output)
	})

	t.Run("budget exhausted fails the step", func(t *testing.T) {
		wf, err := NewSequentialWorkflow(WorkflowOptions{
			Name:          "retrying",
			RetryBaseWait: time.Millisecond,
			Steps: []*WorkflowStep{
				{ID: "one", Agent: flaky("a", 3), MaxRetries: 2},
			},
		})
		require.NoError(t, err)

		result, err := wf.Execute(context.Background(), "go", nil)
		require.NoError(t, err)
		require.False(t, result.Success)
		require.Contains(t, result.Output, "connection refused")
	})

	t.Run("non-recoverable error is not retried", func(t *testing.T) {
		attempts := 0
		stubborn := NewAgentFunction("a", []Capability{CapabilityConversation},
			func(ctx context.Context, message string, vars map[string]any) (*Response, error) {
				attempts++
				return nil, fmt.Errorf("invalid request")
			})
		wf, err := NewSequentialWorkflow(WorkflowOptions{
			Name:          "retrying",
			RetryBaseWait: time.Millisecond,
			Steps: []*WorkflowStep{
				{ID: "one", Agent: stubborn, MaxRetries: 3},
			},
		})
		require.NoError(t, err)

		result, err := wf.Execute(context.Background(), "go", nil)
		require.NoError(t, err)
		require.False(t, result.Success)
		require.Equal(t, 1, attempts)
	})

	t.Run("zero max retries attempts once", func(t *testing.T) {
		wf, err := NewSequentialWorkflow(WorkflowOptions{
			Name:          "retrying",
			RetryBaseWait: time.Millisecond,
			Steps: []*WorkflowStep{
				{ID: "one", Agent: flaky("a", 1)},
			},
		})
		require.NoError(t, err)

		result, err := wf.Execute(context.Background(), "go", nil)
		require.NoError(t, err)
		require.False(t, result.Success)
	})
}
