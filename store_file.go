package swarm

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FileStateStore keeps one JSON file per checkpoint in a single flat
// directory, named by checkpoint id. Writes go through a sibling temp file
// and an atomic rename, so a crash mid-write never leaves a half-written
// checkpoint visible under its real name.
type FileStateStore struct {
	dir string
}

// NewFileStateStore creates the store, creating dir if needed.
func NewFileStateStore(dir string) (*FileStateStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("checkpoint directory is required")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoint directory %s: %w", dir, err)
	}
	return &FileStateStore{dir: dir}, nil
}

func (s *FileStateStore) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// Save serializes the checkpoint and renames it into place.
func (s *FileStateStore) Save(ctx context.Context, cp *Checkpoint) error {
	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	target := s.path(cp.ID)
	tmp := target + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to open temp checkpoint file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to sync checkpoint: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to close checkpoint file: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to commit checkpoint: %w", err)
	}
	return nil
}

// Load reads one checkpoint. A missing file is (nil, nil).
func (s *FileStateStore) Load(ctx context.Context, id string) (*Checkpoint, error) {
	data, err := os.ReadFile(s.path(id))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint file: %w", err)
	}
	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint: %w", err)
	}
	return &cp, nil
}

// List scans the directory, silently skipping anything unreadable or
// corrupt, and returns matches newest-updated first.
func (s *FileStateStore) List(ctx context.Context, filter CheckpointFilter) ([]*Checkpoint, error) {
	entries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint directory: %w", err)
	}

	var checkpoints []*Checkpoint
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, name))
		if err != nil {
			continue
		}
		var cp Checkpoint
		if err := json.Unmarshal(data, &cp); err != nil {
			continue
		}
		if filter.matches(&cp) {
			checkpoints = append(checkpoints, &cp)
		}
	}
	sort.Slice(checkpoints, func(i, j int) bool {
		return checkpoints[i].UpdatedAt.After(checkpoints[j].UpdatedAt)
	})
	return checkpoints, nil
}

// Delete removes one checkpoint file.
func (s *FileStateStore) Delete(ctx context.Context, id string) error {
	err := os.Remove(s.path(id))
	if os.IsNotExist(err) {
		return ErrCheckpointNotFound
	}
	return err
}

// GetLatest returns the newest checkpoint for a workflow.
func (s *FileStateStore) GetLatest(ctx context.Context, workflowName string) (*Checkpoint, error) {
	checkpoints, err := s.List(ctx, CheckpointFilter{WorkflowName: workflowName})
	if err != nil {
		return nil, err
	}
	if len(checkpoints) == 0 {
		return nil, nil
	}
	return checkpoints[0], nil
}
