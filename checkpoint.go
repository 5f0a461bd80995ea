package swarm

import (
	"time"

	"go.jetify.com/typeid"
)

// CheckpointSchemaVersion is written into every new checkpoint. Loads
// accept version 0 (files written before the field existed) and the
// current version.
const CheckpointSchemaVersion = 1

// CheckpointStatus is the lifecycle state of a checkpoint. Exactly one
// status applies at a time; completed and failed are terminal.
type CheckpointStatus string

const (
	CheckpointRunning   CheckpointStatus = "running"
	CheckpointPaused    CheckpointStatus = "paused"
	CheckpointCompleted CheckpointStatus = "completed"
	CheckpointFailed    CheckpointStatus = "failed"
)

// Terminal reports whether the status allows age-based cleanup.
func (s CheckpointStatus) Terminal() bool {
	return s == CheckpointCompleted || s == CheckpointFailed
}

// StepResult is one persisted step outcome in a checkpoint's history,
// ordered by execution.
type StepResult struct {
	Step      int       `json:"step"`
	Result    any       `json:"result"`
	Timestamp time.Time `json:"timestamp"`
}

// Checkpoint is a durable snapshot of in-flight workflow progress. It is
// mutated in place by the CheckpointManager, which stamps UpdatedAt and
// persists after every mutation. CurrentStep never decreases within a run.
type Checkpoint struct {
	SchemaVersion int              `json:"schema_version"`
	ID            string           `json:"id"`
	WorkflowName  string           `json:"workflow_name"`
	CurrentStep   int              `json:"current_step"`
	TotalSteps    int              `json:"total_steps"`
	Status        CheckpointStatus `json:"status"`
	Context       map[string]any   `json:"context"`
	TaskResults   []StepResult     `json:"task_results"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
	Metadata      map[string]any   `json:"metadata"`
}

// NewCheckpointID returns a fresh checkpoint identifier.
func NewCheckpointID() string {
	id, err := typeid.WithPrefix("chk")
	if err != nil {
		panic(err)
	}
	return id.String()
}

// Copy returns a deep-enough copy for handing across store boundaries:
// maps and the result history are cloned, result values are shared.
func (c *Checkpoint) Copy() *Checkpoint {
	clone := *c
	clone.Context = copyMap(c.Context)
	clone.Metadata = copyMap(c.Metadata)
	clone.TaskResults = make([]StepResult, len(c.TaskResults))
	copy(clone.TaskResults, c.TaskResults)
	return &clone
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
