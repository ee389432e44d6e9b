// Package agent defines the role-scoped agents that make up the crew. Each
// agent couples a persona (role, goal, backstory) with the shared model
// configuration; agents are built once per process and reused by every task.
package agent

import (
	"fmt"
	"strings"

	"github.com/kingrea/agency/internal/llm"
)

// Agent describes one role in the crew.
type Agent struct {
	Key             string
	Role            string
	Goal            string
	Backstory       string
	AllowDelegation bool
	Verbose         bool
	Model           *llm.Config
}

// SystemPrompt renders the persona into the system instruction sent with
// every request made on behalf of this agent.
func (a *Agent) SystemPrompt() string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s. %s\n", a.Role, normalizeSpace(a.Backstory))
	fmt.Fprintf(&b, "Your personal goal is: %s", a.Goal)
	if !a.AllowDelegation {
		b.WriteString("\nYou work alone: do not hand this task to anyone else.")
	}
	return b.String()
}

// Validate ensures the agent carries everything a request needs.
func (a *Agent) Validate() error {
	if a == nil {
		return fmt.Errorf("agent: nil agent")
	}
	if strings.TrimSpace(a.Role) == "" {
		return fmt.Errorf("agent: role is required for %s", a.Key)
	}
	if strings.TrimSpace(a.Goal) == "" {
		return fmt.Errorf("agent: goal is required for %s", a.Key)
	}
	if a.Model == nil {
		return fmt.Errorf("agent: model config is required for %s", a.Key)
	}
	return nil
}

// normalizeSpace collapses the indentation left over from multi-line
// backstory literals.
func normalizeSpace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
