package swarm

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// DefaultCheckpointRetention is how long terminal checkpoints are kept
// before CleanupOld removes them.
const DefaultCheckpointRetention = 24 * time.Hour

// CheckpointManagerOptions configures a CheckpointManager.
type CheckpointManagerOptions struct {
	Store     StateStore
	Retention time.Duration
	Logger    *slog.Logger
}

// CheckpointManager is the high-level durability API for workflow callers:
// create a checkpoint at start, write progress after each step, mark it
// terminal at the end, and look up resumable work after a crash.
type CheckpointManager struct {
	store     StateStore
	retention time.Duration
	logger    *slog.Logger
}

// NewCheckpointManager creates a manager. The store is required.
func NewCheckpointManager(opts CheckpointManagerOptions) (*CheckpointManager, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("state store is required")
	}
	if opts.Retention <= 0 {
		opts.Retention = DefaultCheckpointRetention
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &CheckpointManager{
		store:     opts.Store,
		retention: opts.Retention,
		logger:    opts.Logger,
	}, nil
}

// Store exposes the underlying state store for direct lookups.
func (m *CheckpointManager) Store() StateStore {
	return m.store
}

// Create builds a new running checkpoint. Nothing is persisted until the
// first Checkpoint call.
func (m *CheckpointManager) Create(workflowName string, totalSteps int, contextVars, metadata map[string]any) *Checkpoint {
	now := time.Now()
	if contextVars == nil {
		contextVars = map[string]any{}
	}
	if metadata == nil {
		metadata = map[string]any{}
	}
	return &Checkpoint{
		SchemaVersion: CheckpointSchemaVersion,
		ID:            NewCheckpointID(),
		WorkflowName:  workflowName,
		TotalSteps:    totalSteps,
		Status:        CheckpointRunning,
		Context:       copyMap(contextVars),
		Metadata:      copyMap(metadata),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Checkpoint records progress at a step and persists synchronously: the
// caller does not proceed until the write is acknowledged or has failed.
// Steps must be non-decreasing within a run.
func (m *CheckpointManager) Checkpoint(ctx context.Context, cp *Checkpoint, step int, result any, contextUpdate map[string]any) error {
	if step < cp.CurrentStep {
		return fmt.Errorf("checkpoint step went backwards: %d < %d", step, cp.CurrentStep)
	}
	cp.CurrentStep = step
	if result != nil {
		cp.TaskResults = append(cp.TaskResults, StepResult{
			Step:      step,
			Result:    result,
			Timestamp: time.Now(),
		})
	}
	for k, v := range contextUpdate {
		cp.Context[k] = v
	}
	cp.UpdatedAt = time.Now()
	return m.store.Save(ctx, cp)
}

// Complete marks the checkpoint terminal-successful and persists it.
func (m *CheckpointManager) Complete(ctx context.Context, cp *Checkpoint) error {
	cp.Status = CheckpointCompleted
	cp.UpdatedAt = time.Now()
	return m.store.Save(ctx, cp)
}

// Fail marks the checkpoint terminal-failed, records the error in its
// metadata, and persists it.
func (m *CheckpointManager) Fail(ctx context.Context, cp *Checkpoint, errMsg string) error {
	cp.Status = CheckpointFailed
	cp.Metadata["error"] = errMsg
	cp.UpdatedAt = time.Now()
	return m.store.Save(ctx, cp)
}

// GetResumable returns the most recently updated running checkpoint for a
// workflow, or nil when there is nothing to resume. This is the
// crash-recovery entry point: restart from CurrentStep with the persisted
// context.
func (m *CheckpointManager) GetResumable(ctx context.Context, workflowName string) (*Checkpoint, error) {
	checkpoints, err := m.store.List(ctx, CheckpointFilter{
		WorkflowName: workflowName,
		Status:       CheckpointRunning,
	})
	if err != nil {
		return nil, err
	}
	if len(checkpoints) == 0 {
		return nil, nil
	}
	return checkpoints[0], nil
}

// CleanupOld deletes terminal checkpoints older than the retention window
// and returns how many were removed. Individual delete failures are
// logged and skipped.
func (m *CheckpointManager) CleanupOld(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-m.retention)
	deleted := 0
	for _, status := range []CheckpointStatus{CheckpointCompleted, CheckpointFailed} {
		checkpoints, err := m.store.List(ctx, CheckpointFilter{Status: status})
		if err != nil {
			return deleted, err
		}
		for _, cp := range checkpoints {
			if cp.UpdatedAt.After(cutoff) {
				continue
			}
			if err := m.store.Delete(ctx, cp.ID); err != nil {
				m.logger.Warn("checkpoint cleanup skipped entry", "id", cp.ID, "error", err)
				continue
			}
			deleted++
		}
	}
	return deleted, nil
}
