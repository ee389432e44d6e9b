// Package task defines the units of work handed to the crew. Each task is
// bound to one agent and names the checkpoint document it produces.
package task

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/kingrea/agency/internal/agent"
	"github.com/kingrea/agency/internal/workflow"
)

// Stable task identifiers.
const (
	IDDefineApp      = "define-app"
	IDTechStack      = "tech-stack"
	IDSecurityReview = "security-review"
	IDQAPlanning     = "qa-planning"
)

// Task is a unit of work for one agent. Description is mutable: resuming
// mid-pipeline appends checkpoint text to it before execution.
type Task struct {
	ID             string
	Phase          workflow.Phase
	Description    string
	ExpectedOutput string
	Agent          *agent.Agent
	OutputFile     string
}

// Set holds the four built-in tasks of one run.
type Set struct {
	DefineApp      *Task
	TechStack      *Task
	SecurityReview *Task
	QAPlanning     *Task
}

// Builtins creates a fresh task set bound to the roster. Call it once per
// run so context appended during one run never leaks into the next.
func Builtins(r *agent.Roster) *Set {
	return &Set{
		DefineApp: &Task{
			ID:             IDDefineApp,
			Phase:          workflow.PhaseProduct,
			Description:    "Analyze the user idea: {topic}. Create a detailed PRD.",
			ExpectedOutput: "A markdown document containing a feature list and user stories.",
			Agent:          r.ProductManager,
			OutputFile:     workflow.FilePRD,
		},
		TechStack: &Task{
			ID:             IDTechStack,
			Phase:          workflow.PhaseArchitecture,
			Description:    "Based on the PRD provided by the PM, define the technology stack, database schema, and API structure.",
			ExpectedOutput: "A highly technical markdown specification document.",
			Agent:          r.Architect,
			OutputFile:     workflow.FileTechSpec,
		},
		SecurityReview: &Task{
			ID:             IDSecurityReview,
			Phase:          workflow.PhaseSecurity,
			Description:    "Review the PRD and the technical stack provided by the Architect. Identify potential security flaws and suggest encryption standards.",
			ExpectedOutput: "A markdown document containing a Threat Model.",
			Agent:          r.SecurityEngineer,
			OutputFile:     workflow.FileSecurityReview,
		},
		QAPlanning: &Task{
			ID:             IDQAPlanning,
			Phase:          workflow.PhaseQA,
			Description:    "Based on the PRD, Tech Spec, and Security Review, formulate a complete testing strategy.",
			ExpectedOutput: "A markdown document detailing Unit Tests and Integration Tests.",
			Agent:          r.QAEngineer,
			OutputFile:     workflow.FileQAPlan,
		},
	}
}

// All returns the tasks in pipeline order.
func (s *Set) All() []*Task {
	return []*Task{s.DefineApp, s.TechStack, s.SecurityReview, s.QAPlanning}
}

// From returns the tasks starting at phase p, in pipeline order.
func (s *Set) From(p workflow.Phase) []*Task {
	var out []*Task
	for _, t := range s.All() {
		if t.Phase >= p {
			out = append(out, t)
		}
	}
	return out
}

// AppendContext concatenates text onto the description.
func (t *Task) AppendContext(text string) {
	t.Description += text
}

// Validate ensures the task can be executed.
func (t *Task) Validate() error {
	if t == nil {
		return fmt.Errorf("task: nil task")
	}
	if strings.TrimSpace(t.Description) == "" {
		return fmt.Errorf("task: description is required for %s", t.ID)
	}
	if t.Agent == nil {
		return fmt.Errorf("task: agent is required for %s", t.ID)
	}
	if strings.TrimSpace(t.OutputFile) == "" {
		return fmt.Errorf("task: output file is required for %s", t.ID)
	}
	return nil
}

var placeholder = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Interpolate replaces {key} placeholders with run inputs. Unknown keys are
// left untouched so braces inside injected documents survive.
func Interpolate(text string, inputs map[string]string) string {
	if len(inputs) == 0 {
		return text
	}
	return placeholder.ReplaceAllStringFunc(text, func(match string) string {
		key := match[1 : len(match)-1]
		if value, ok := inputs[key]; ok {
			return value
		}
		return match
	})
}

// Prompt renders the user prompt for the task: the interpolated description,
// the expected output, and the outputs of earlier tasks in the same run.
func (t *Task) Prompt(inputs map[string]string, prior []string) string {
	var b strings.Builder
	b.WriteString(Interpolate(t.Description, inputs))
	b.WriteString("\n\nThis is the expected criteria for your final answer: ")
	b.WriteString(Interpolate(t.ExpectedOutput, inputs))
	b.WriteString("\nYou MUST return the actual complete content as the final answer, not a summary.")
	if len(prior) > 0 {
		b.WriteString("\n\nThis is the context you're working with:\n")
		b.WriteString(strings.Join(prior, "\n\n----------\n\n"))
	}
	return b.String()
}
