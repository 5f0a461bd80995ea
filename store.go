package swarm

import (
	"context"
	"errors"
)

// ErrCheckpointNotFound is returned by Delete for ids that are not in the
// store. Load reports absence with a nil checkpoint instead, since absence
// is a normal outcome when checking for resumable work.
var ErrCheckpointNotFound = errors.New("checkpoint not found")

// CheckpointFilter narrows a List call. Zero values match everything.
type CheckpointFilter struct {
	WorkflowName string
	Status       CheckpointStatus
}

// StateStore persists checkpoints. Implementations must make Save atomic:
// a crash mid-write may lose the write but must never leave a torn
// checkpoint visible under its id.
type StateStore interface {
	// Save writes the checkpoint, replacing any prior version.
	Save(ctx context.Context, cp *Checkpoint) error

	// Load returns the checkpoint for id, or (nil, nil) when absent.
	Load(ctx context.Context, id string) (*Checkpoint, error)

	// List returns checkpoints matching the filter, most recently updated
	// first. Unreadable entries are skipped, not fatal.
	List(ctx context.Context, filter CheckpointFilter) ([]*Checkpoint, error)

	// Delete removes a checkpoint. Unknown ids return
	// ErrCheckpointNotFound.
	Delete(ctx context.Context, id string) error

	// GetLatest returns the most recently updated checkpoint for a
	// workflow, or (nil, nil) when the workflow has none.
	GetLatest(ctx context.Context, workflowName string) (*Checkpoint, error)
}

func (f CheckpointFilter) matches(cp *Checkpoint) bool {
	if f.WorkflowName != "" && cp.WorkflowName != f.WorkflowName {
		return false
	}
	if f.Status != "" && cp.Status != f.Status {
		return false
	}
	return true
}
