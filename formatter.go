package swarm

import (
	"fmt"

	"github.com/fatih/color"
)

// StepFormatter renders step progress for interactive use. Attach one to a
// workflow via its hooks.
type StepFormatter interface {
	PrintStepStart(stepID string, agentName string)
	PrintStepOutput(stepID string, content string)
	PrintStepError(stepID string, message string)
}

// ConsoleFormatter writes colored step progress to stdout.
type ConsoleFormatter struct {
	// MaxOutputLen truncates printed step output. Zero means no limit.
	MaxOutputLen int
}

func NewConsoleFormatter() *ConsoleFormatter {
	return &ConsoleFormatter{MaxOutputLen: 500}
}

func (f *ConsoleFormatter) PrintStepStart(stepID string, agentName string) {
	color.Cyan("▶ step %s (agent: %s)", stepID, agentName)
}

func (f *ConsoleFormatter) PrintStepOutput(stepID string, content string) {
	if f.MaxOutputLen > 0 && len(content) > f.MaxOutputLen {
		content = content[:f.MaxOutputLen] + "..."
	}
	color.Green("✓ step %s", stepID)
	if content != "" {
		fmt.Println(content)
	}
}

func (f *ConsoleFormatter) PrintStepError(stepID string, message string) {
	color.Red("✗ step %s: %s", stepID, message)
}

// AttachFormatter registers hooks on a workflow that forward step progress
// to the formatter.
func AttachFormatter(wf Workflow, f StepFormatter) {
	wf.BeforeStep(func(step *WorkflowStep, wc *WorkflowContext) {
		f.PrintStepStart(step.ID, step.Agent.Name())
	})
	wf.AfterStep(func(step *WorkflowStep, wc *WorkflowContext, resp *Response) {
		if resp.Success {
			f.PrintStepOutput(step.ID, resp.Content)
		} else {
			f.PrintStepError(step.ID, resp.Content)
		}
	})
}
