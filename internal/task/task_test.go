package task

import (
	"strings"
	"testing"

	"github.com/kingrea/agency/internal/agent"
	"github.com/kingrea/agency/internal/llm"
	"github.com/kingrea/agency/internal/workflow"
)

func newSet(t *testing.T) *Set {
	t.Helper()
	model := llm.DefaultConfig("key")
	return Builtins(agent.NewRoster(&model))
}

func TestBuiltinsBindAgentsAndOutputs(t *testing.T) {
	set := newSet(t)
	want := []struct {
		id, agent, file string
	}{
		{IDDefineApp, agent.KeyProductManager, workflow.FilePRD},
		{IDTechStack, agent.KeyArchitect, workflow.FileTechSpec},
		{IDSecurityReview, agent.KeySecurityEngineer, workflow.FileSecurityReview},
		{IDQAPlanning, agent.KeyQAEngineer, workflow.FileQAPlan},
	}
	for i, task := range set.All() {
		if task.ID != want[i].id || task.Agent.Key != want[i].agent || task.OutputFile != want[i].file {
			t.Fatalf("task %d = %s/%s/%s, want %+v", i, task.ID, task.Agent.Key, task.OutputFile, want[i])
		}
		if err := task.Validate(); err != nil {
			t.Fatalf("validate %s: %v", task.ID, err)
		}
	}
}

func TestBuiltinsAreFreshPerRun(t *testing.T) {
	model := llm.DefaultConfig("key")
	roster := agent.NewRoster(&model)
	first := Builtins(roster)
	first.TechStack.AppendContext("\n\nextra")
	second := Builtins(roster)
	if strings.Contains(second.TechStack.Description, "extra") {
		t.Fatalf("context leaked between runs")
	}
}

func TestFrom(t *testing.T) {
	set := newSet(t)
	got := set.From(workflow.PhaseSecurity)
	if len(got) != 2 || got[0] != set.SecurityReview || got[1] != set.QAPlanning {
		t.Fatalf("From(security) = %v", got)
	}
	if len(set.From(workflow.PhaseProduct)) != 4 {
		t.Fatalf("From(product) must return every task")
	}
}

func TestInterpolate(t *testing.T) {
	got := Interpolate("Analyze the user idea: {topic}. Keep {json} braces.", map[string]string{"topic": "a todo app"})
	want := "Analyze the user idea: a todo app. Keep {json} braces."
	if got != want {
		t.Fatalf("Interpolate = %q, want %q", got, want)
	}
	if Interpolate("{topic}", nil) != "{topic}" {
		t.Fatalf("nil inputs must leave text untouched")
	}
}

func TestPromptIncludesExpectedOutputAndPriorContext(t *testing.T) {
	set := newSet(t)
	prompt := set.DefineApp.Prompt(map[string]string{"topic": "pet tracker"}, nil)
	if !strings.HasPrefix(prompt, "Analyze the user idea: pet tracker. Create a detailed PRD.") {
		t.Fatalf("unexpected prompt start: %q", prompt)
	}
	if !strings.Contains(prompt, "A markdown document containing a feature list and user stories.") {
		t.Fatalf("prompt missing expected output")
	}
	if strings.Contains(prompt, "context you're working with") {
		t.Fatalf("first task must not carry prior context")
	}

	prompt = set.TechStack.Prompt(nil, []string{"# PRD body"})
	if !strings.HasSuffix(prompt, "This is the context you're working with:\n# PRD body") {
		t.Fatalf("prior context not appended: %q", prompt)
	}
}
