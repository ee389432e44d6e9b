package agent

import (
	"github.com/kingrea/agency/internal/llm"
)

// Stable keys for the built-in agents. Override files are named after them.
const (
	KeyProductManager   = "product-manager"
	KeyArchitect        = "architect"
	KeySecurityEngineer = "security-engineer"
	KeyQAEngineer       = "qa-engineer"
)

// Keys lists the built-in agents in pipeline order.
var Keys = []string{KeyProductManager, KeyArchitect, KeySecurityEngineer, KeyQAEngineer}

// Roster holds one agent per role.
type Roster struct {
	ProductManager   *Agent
	Architect        *Agent
	SecurityEngineer *Agent
	QAEngineer       *Agent
}

// NewRoster builds the four built-in agents sharing one model configuration.
func NewRoster(model *llm.Config) *Roster {
	return &Roster{
		ProductManager: &Agent{
			Key:  KeyProductManager,
			Role: "Senior Product Manager",
			Goal: "Uncover user needs and define clear, actionable product requirements (PRD).",
			Backstory: `You are an expert Product Manager at a top-tier tech company.
			You are famous for asking "Why?" until you understand the root user problem.
			You excel at breaking down vague ideas into comprehensive user stories
			and acceptance criteria.`,
			Verbose: true,
			Model:   model,
		},
		Architect: &Agent{
			Key:  KeyArchitect,
			Role: "Chief Technology Officer",
			Goal: "Design a scalable, secure, and cost-effective technology stack.",
			Backstory: `You are a pragmatic CTO with decades of experience.
			You prefer proven technologies over hype. You always think about
			database schema, API security, and deployment logistics before writing code.`,
			Verbose: true,
			Model:   model,
		},
		SecurityEngineer: &Agent{
			Key:  KeySecurityEngineer,
			Role: "Lead Security Engineer",
			Goal: "Identify vulnerabilities and enforce strict security protocols on the proposed architecture.",
			Backstory: `You are a paranoid cybersecurity expert who assumes every app will be attacked.
			You excel at threat modeling and auditing technical specifications to ensure data encryption,
			secure authentication, and compliance with modern security standards.`,
			Verbose: true,
			Model:   model,
		},
		QAEngineer: &Agent{
			Key:  KeyQAEngineer,
			Role: "Director of Quality Assurance",
			Goal: "Develop a comprehensive testing strategy based on the product requirements and technical specs.",
			Backstory: `You are a meticulous QA leader who hates bugs. You specialize in designing
			unit tests, integration tests, and user acceptance criteria. You always anticipate edge cases
			that developers and architects often miss.`,
			Verbose: true,
			Model:   model,
		},
	}
}

// All returns the agents in pipeline order.
func (r *Roster) All() []*Agent {
	return []*Agent{r.ProductManager, r.Architect, r.SecurityEngineer, r.QAEngineer}
}

// ByKey returns the agent registered under key.
func (r *Roster) ByKey(key string) (*Agent, bool) {
	for _, a := range r.All() {
		if a != nil && a.Key == key {
			return a, true
		}
	}
	return nil, false
}

// SetVerbose switches prompt logging on or off for every agent. Override
// files applied afterwards still win for the agents they name.
func (r *Roster) SetVerbose(v bool) {
	for _, a := range r.All() {
		if a != nil {
			a.Verbose = v
		}
	}
}
