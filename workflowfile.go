package swarm

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cowork-ai/swarm/script"
)

// WorkflowDef is the YAML shape of a declarative workflow. Agents are
// referenced by registered name and resolved through a Registry at load
// time.
type WorkflowDef struct {
	Name  string       `yaml:"name" json:"name"`
	Mode  WorkflowMode `yaml:"mode,omitempty" json:"mode,omitempty"`
	Steps []*StepDef   `yaml:"steps" json:"steps"`
}

// StepDef is one declarative step.
type StepDef struct {
	ID         string `yaml:"id" json:"id"`
	Agent      string `yaml:"agent" json:"agent"`
	Condition  string `yaml:"condition,omitempty" json:"condition,omitempty"`
	OutputKey  string `yaml:"output_key,omitempty" json:"output_key,omitempty"`
	MaxRetries int    `yaml:"max_retries,omitempty" json:"max_retries,omitempty"`
}

// LoadWorkflowFile reads a YAML workflow definition and builds the runner.
func LoadWorkflowFile(ctx context.Context, path string, registry *Registry, opts WorkflowOptions) (Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read workflow file: %w", err)
	}
	return LoadWorkflowString(ctx, string(data), registry, opts)
}

// LoadWorkflowString builds a workflow runner from YAML source. Fields set
// on opts (logger, metrics, checkpoints, aggregator) carry through; name
// and steps come from the definition.
func LoadWorkflowString(ctx context.Context, source string, registry *Registry, opts WorkflowOptions) (Workflow, error) {
	var def WorkflowDef
	if err := yaml.Unmarshal([]byte(source), &def); err != nil {
		return nil, fmt.Errorf("failed to unmarshal workflow definition: %w", err)
	}
	return BuildWorkflow(ctx, &def, registry, opts)
}

// BuildWorkflow resolves a definition against the registry. Unknown agent
// names are load-time errors, not runtime surprises.
func BuildWorkflow(ctx context.Context, def *WorkflowDef, registry *Registry, opts WorkflowOptions) (Workflow, error) {
	if registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	compiler := script.NewRisorCompiler(nil)

	steps := make([]*WorkflowStep, 0, len(def.Steps))
	for _, sd := range def.Steps {
		entry := registry.Get(sd.Agent)
		if entry == nil {
			return nil, fmt.Errorf("step %q references unknown agent %q", sd.ID, sd.Agent)
		}
		step := &WorkflowStep{
			ID:         sd.ID,
			Agent:      entry.Agent,
			OutputKey:  sd.OutputKey,
			MaxRetries: sd.MaxRetries,
		}
		if sd.Condition != "" {
			cond, err := NewScriptCondition(ctx, compiler, sd.Condition)
			if err != nil {
				return nil, fmt.Errorf("step %q: %w", sd.ID, err)
			}
			step.Condition = cond
		}
		steps = append(steps, step)
	}

	opts.Name = def.Name
	opts.Steps = steps

	switch def.Mode {
	case ModeParallel:
		return NewParallelWorkflow(opts)
	case ModeSequential, "":
		return NewSequentialWorkflow(opts)
	default:
		return nil, fmt.Errorf("unsupported workflow mode: %q", def.Mode)
	}
}
