// Package pipeline turns a menu choice into a crew run. It picks the agents
// and tasks from the chosen phase onward, reads the checkpoint documents the
// phase depends on, and splices them into the first task's description
// before anything is executed.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kingrea/agency/internal/agent"
	"github.com/kingrea/agency/internal/artifact"
	"github.com/kingrea/agency/internal/crew"
	"github.com/kingrea/agency/internal/task"
	"github.com/kingrea/agency/internal/workflow"
)

var (
	// ErrInvalidChoice is returned for menu input other than 1-4.
	ErrInvalidChoice = errors.New("invalid choice")
	// ErrEmptyIdea is returned when a fresh run has no app idea.
	ErrEmptyIdea = errors.New("an app idea is required to start fresh")
)

// TopicInput is the run input key the product manager task interpolates.
const TopicInput = "topic"

// Selection is the prepared work for one run: the agents and tasks from the
// chosen phase onward, the run inputs, and the checkpoints that were read.
type Selection struct {
	Phase  workflow.Phase
	Agents []*agent.Agent
	Tasks  []*task.Task
	Inputs map[string]string
	Reads  []string
}

// Executor runs a prepared selection.
type Executor interface {
	Execute(ctx context.Context, sel *Selection) (crew.Output, error)
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, sel *Selection) (crew.Output, error)

// Execute implements Executor.
func (f ExecutorFunc) Execute(ctx context.Context, sel *Selection) (crew.Output, error) {
	return f(ctx, sel)
}

// Pipeline wires the roster, the checkpoint store and an executor.
type Pipeline struct {
	roster   *agent.Roster
	store    *artifact.Store
	executor Executor
	logger   *zap.Logger
	announce func(string)
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the structured logger.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithAnnouncer receives the user-facing "Loading ..." lines.
func WithAnnouncer(fn func(string)) Option {
	return func(p *Pipeline) {
		p.announce = fn
	}
}

// New builds a pipeline.
func New(roster *agent.Roster, store *artifact.Store, executor Executor, opts ...Option) (*Pipeline, error) {
	if roster == nil {
		return nil, fmt.Errorf("pipeline: roster is required")
	}
	if store == nil {
		return nil, fmt.Errorf("pipeline: artifact store is required")
	}
	if executor == nil {
		return nil, fmt.Errorf("pipeline: executor is required")
	}
	p := &Pipeline{
		roster:   roster,
		store:    store,
		executor: executor,
		logger:   zap.NewNop(),
		announce: func(string) {},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Plan resolves a raw menu choice into the agents and tasks that will run.
// Nothing is read from disk.
func (p *Pipeline) Plan(choice string) (*Selection, error) {
	phase, ok := workflow.ParseChoice(choice)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidChoice, strings.TrimSpace(choice))
	}
	tasks := task.Builtins(p.roster).From(phase)
	sel := &Selection{
		Phase:  phase,
		Tasks:  tasks,
		Inputs: map[string]string{},
	}
	for _, t := range tasks {
		sel.Agents = append(sel.Agents, t.Agent)
	}
	return sel, nil
}

// Prepare plans the choice and loads its inputs. A fresh run takes the idea
// as the topic; a resumed run reads the required checkpoints in pipeline
// order and appends them to the first task. The first missing checkpoint
// aborts with an error wrapping artifact.ErrMissingCheckpoint.
func (p *Pipeline) Prepare(ctx context.Context, choice, idea string) (*Selection, error) {
	sel, err := p.Plan(choice)
	if err != nil {
		return nil, err
	}
	if sel.Phase == workflow.PhaseProduct {
		idea = strings.TrimSpace(idea)
		if idea == "" {
			return nil, ErrEmptyIdea
		}
		sel.Inputs[TopicInput] = idea
		return sel, nil
	}

	p.announce(loadingMessage(sel.Phase))
	required := sel.Phase.Requires()
	docs := make([]string, 0, len(required))
	for _, file := range required {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ref, ok := artifact.ForFile(file)
		if !ok {
			return nil, fmt.Errorf("pipeline: unknown checkpoint %s", file)
		}
		text, err := p.store.Read(ref)
		if err != nil {
			p.logger.Warn("checkpoint unavailable", zap.String("file", file), zap.Error(err))
			return nil, err
		}
		docs = append(docs, text)
		sel.Reads = append(sel.Reads, file)
	}
	sel.Tasks[0].AppendContext(injectedContext(sel.Phase, docs))
	return sel, nil
}

// Run prepares the selection and hands it to the executor.
func (p *Pipeline) Run(ctx context.Context, choice, idea string) (*Selection, crew.Output, error) {
	sel, err := p.Prepare(ctx, choice, idea)
	if err != nil {
		return nil, crew.Output{}, err
	}
	p.logger.Info("pipeline starting",
		zap.String("phase", sel.Phase.String()),
		zap.Int("tasks", len(sel.Tasks)),
		zap.Strings("reads", sel.Reads))
	out, err := p.executor.Execute(ctx, sel)
	return sel, out, err
}

var contextLabels = map[string]string{
	workflow.FilePRD:            "PRD",
	workflow.FileTechSpec:       "TECH SPEC",
	workflow.FileSecurityReview: "SECURITY",
}

// injectedContext renders checkpoint text the way each phase expects it:
// the architect gets a single titled PRD block, later phases get one
// labelled section per document.
func injectedContext(phase workflow.Phase, docs []string) string {
	if phase == workflow.PhaseArchitecture {
		return "\n\n--- INJECTED CONTEXT: PRD ---\n" + docs[0]
	}
	var b strings.Builder
	b.WriteString("\n\n--- INJECTED CONTEXT ---")
	for i, file := range phase.Requires() {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "\n%s:\n%s", contextLabels[file], docs[i])
	}
	return b.String()
}

func loadingMessage(phase workflow.Phase) string {
	switch phase {
	case workflow.PhaseArchitecture:
		return "Loading PRD.md checkpoint..."
	case workflow.PhaseSecurity:
		return "Loading PRD.md and TechSpec.md checkpoints..."
	default:
		return "Loading all checkpoints for QA..."
	}
}
