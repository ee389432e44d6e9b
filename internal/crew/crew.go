// Package crew runs tasks one after another, each on behalf of its agent.
// Every task sees the outputs of the tasks that ran before it in the same
// kickoff, and its own output is persisted as a checkpoint document.
package crew

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kingrea/agency/internal/agent"
	"github.com/kingrea/agency/internal/artifact"
	"github.com/kingrea/agency/internal/llm"
	"github.com/kingrea/agency/internal/task"
)

// EventKind enumerates progress notifications.
type EventKind string

const (
	EventTaskStarted  EventKind = "task-started"
	EventTaskFinished EventKind = "task-finished"
	EventTaskFailed   EventKind = "task-failed"
)

// Event reports progress to an Observer.
type Event struct {
	Kind   EventKind
	Task   *task.Task
	Index  int
	Total  int
	Output *TaskOutput
	Err    error
}

// Observer receives progress events synchronously.
type Observer func(Event)

// TaskOutput is the result of one task.
type TaskOutput struct {
	TaskID   string
	Agent    string
	File     string
	Text     string
	Attempts int
	Duration time.Duration
}

// Output aggregates the task outputs of a kickoff in execution order.
type Output struct {
	RunID string
	Tasks []TaskOutput
}

// Final returns the output of the last task that ran.
func (o Output) Final() (TaskOutput, bool) {
	if len(o.Tasks) == 0 {
		return TaskOutput{}, false
	}
	return o.Tasks[len(o.Tasks)-1], true
}

// Config wires a crew.
type Config struct {
	Agents   []*agent.Agent
	Tasks    []*task.Task
	MaxRPM   int
	Client   llm.Client
	Store    *artifact.Store
	RunID    string
	Logger   *zap.Logger
	Observer Observer
}

// Crew is a sequential executor.
type Crew struct {
	tasks    []*task.Task
	client   llm.Client
	store    *artifact.Store
	runID    string
	logger   *zap.Logger
	observer Observer
	limiter  *limiter
	clock    func() time.Time
}

// New validates the configuration and builds a crew.
func New(cfg Config) (*Crew, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("crew: model client is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("crew: artifact store is required")
	}
	if len(cfg.Tasks) == 0 {
		return nil, fmt.Errorf("crew: at least one task is required")
	}
	if cfg.MaxRPM < 0 {
		return nil, fmt.Errorf("crew: max rpm must be >= 0")
	}
	members := make(map[*agent.Agent]struct{}, len(cfg.Agents))
	for _, a := range cfg.Agents {
		if err := a.Validate(); err != nil {
			return nil, fmt.Errorf("crew: %w", err)
		}
		members[a] = struct{}{}
	}
	for _, t := range cfg.Tasks {
		if err := t.Validate(); err != nil {
			return nil, fmt.Errorf("crew: %w", err)
		}
		if _, ok := members[t.Agent]; !ok {
			return nil, fmt.Errorf("crew: task %s is assigned to %s which is not a crew member", t.ID, t.Agent.Key)
		}
		if _, ok := artifact.ForFile(t.OutputFile); !ok {
			return nil, fmt.Errorf("crew: task %s writes unknown checkpoint %s", t.ID, t.OutputFile)
		}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Crew{
		tasks:    cfg.Tasks,
		client:   cfg.Client,
		store:    cfg.Store,
		runID:    cfg.RunID,
		logger:   logger,
		observer: cfg.Observer,
		limiter:  newLimiter(cfg.MaxRPM),
		clock:    time.Now,
	}, nil
}

// Kickoff runs every task in order. The first failure stops the run; outputs
// of the tasks that completed before it are returned alongside the error.
func (c *Crew) Kickoff(ctx context.Context, inputs map[string]string) (Output, error) {
	out := Output{RunID: c.runID}
	var prior []string
	var priorFiles []string
	total := len(c.tasks)
	for i, t := range c.tasks {
		c.emit(Event{Kind: EventTaskStarted, Task: t, Index: i, Total: total})
		c.logger.Info("task started",
			zap.String("run", c.runID),
			zap.String("task", t.ID),
			zap.String("agent", t.Agent.Role))

		result, err := c.execute(ctx, t, inputs, prior, priorFiles)
		if err != nil {
			err = fmt.Errorf("crew: task %s: %w", t.ID, err)
			c.logger.Error("task failed", zap.String("run", c.runID), zap.String("task", t.ID), zap.Error(err))
			c.emit(Event{Kind: EventTaskFailed, Task: t, Index: i, Total: total, Err: err})
			return out, err
		}

		out.Tasks = append(out.Tasks, result)
		prior = append(prior, result.Text)
		priorFiles = append(priorFiles, t.OutputFile)
		c.logger.Info("task finished",
			zap.String("run", c.runID),
			zap.String("task", t.ID),
			zap.String("file", result.File),
			zap.Duration("elapsed", result.Duration))
		c.emit(Event{Kind: EventTaskFinished, Task: t, Index: i, Total: total, Output: &out.Tasks[len(out.Tasks)-1]})
	}
	return out, nil
}

func (c *Crew) execute(ctx context.Context, t *task.Task, inputs map[string]string, prior, priorFiles []string) (TaskOutput, error) {
	if err := ctx.Err(); err != nil {
		return TaskOutput{}, err
	}
	start := c.clock()
	req := llm.Request{
		System: t.Agent.SystemPrompt(),
		Prompt: t.Prompt(inputs, prior),
		Wait:   c.limiter.Wait,
	}
	if t.Agent.Verbose {
		c.logger.Debug("task prompt", zap.String("task", t.ID), zap.String("prompt", req.Prompt))
	}
	resp, err := c.client.Generate(ctx, req)
	if err != nil {
		return TaskOutput{}, err
	}

	ref, _ := artifact.ForFile(t.OutputFile)
	meta := artifact.Metadata{
		Agent:  t.Agent.Key,
		Model:  resp.Model,
		RunID:  c.runID,
		Inputs: append([]string{}, priorFiles...),
	}
	if err := c.store.Write(ref, []byte(resp.Text+"\n"), meta); err != nil {
		return TaskOutput{}, err
	}
	return TaskOutput{
		TaskID:   t.ID,
		Agent:    t.Agent.Key,
		File:     c.store.Path(ref),
		Text:     resp.Text,
		Attempts: resp.Attempts,
		Duration: c.clock().Sub(start),
	}, nil
}

func (c *Crew) emit(ev Event) {
	if c.observer != nil {
		c.observer(ev)
	}
}
