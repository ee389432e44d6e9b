package pipeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kingrea/agency/internal/artifact"
	"github.com/kingrea/agency/internal/crew"
	"github.com/kingrea/agency/internal/history"
	"github.com/kingrea/agency/internal/llm"
)

// Recorder persists run outcomes. *history.Store satisfies it.
type Recorder interface {
	StartRun(ctx context.Context, id, choice, phase, idea string) error
	RecordTask(ctx context.Context, rec history.TaskRecord) error
	FinishRun(ctx context.Context, id, status string, runErr error) error
}

// CrewExecutor runs a selection as a sequential crew.
type CrewExecutor struct {
	Client   llm.Client
	Store    *artifact.Store
	MaxRPM   int
	Logger   *zap.Logger
	Observer crew.Observer
	Recorder Recorder
	NewRunID func() string
}

// Execute implements Executor.
func (e *CrewExecutor) Execute(ctx context.Context, sel *Selection) (crew.Output, error) {
	logger := e.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	newID := e.NewRunID
	if newID == nil {
		newID = uuid.NewString
	}
	runID := newID()

	c, err := crew.New(crew.Config{
		Agents:   sel.Agents,
		Tasks:    sel.Tasks,
		MaxRPM:   e.MaxRPM,
		Client:   e.Client,
		Store:    e.Store,
		RunID:    runID,
		Logger:   logger,
		Observer: e.observe(ctx, runID, logger),
	})
	if err != nil {
		return crew.Output{}, fmt.Errorf("pipeline: %w", err)
	}

	if e.Recorder != nil {
		if err := e.Recorder.StartRun(ctx, runID, sel.Phase.Choice(), sel.Phase.String(), sel.Inputs[TopicInput]); err != nil {
			logger.Warn("history unavailable", zap.Error(err))
		}
	}
	out, runErr := c.Kickoff(ctx, sel.Inputs)
	if e.Recorder != nil {
		status := history.StatusSucceeded
		if runErr != nil {
			status = history.StatusFailed
		}
		// The run context may already be cancelled; the ledger still gets the outcome.
		if err := e.Recorder.FinishRun(context.WithoutCancel(ctx), runID, status, runErr); err != nil {
			logger.Warn("history unavailable", zap.Error(err))
		}
	}
	return out, runErr
}

func (e *CrewExecutor) observe(ctx context.Context, runID string, logger *zap.Logger) crew.Observer {
	return func(ev crew.Event) {
		if e.Recorder != nil && ev.Kind != crew.EventTaskStarted {
			rec := history.TaskRecord{
				RunID:  runID,
				TaskID: ev.Task.ID,
				Agent:  ev.Task.Agent.Key,
				Status: history.StatusSucceeded,
			}
			if ev.Output != nil {
				rec.File = ev.Output.File
				rec.Attempts = ev.Output.Attempts
				rec.Duration = ev.Output.Duration
			}
			if ev.Err != nil {
				rec.Status = history.StatusFailed
				rec.Error = ev.Err.Error()
			}
			if err := e.Recorder.RecordTask(context.WithoutCancel(ctx), rec); err != nil {
				logger.Warn("history unavailable", zap.Error(err))
			}
		}
		if e.Observer != nil {
			e.Observer(ev)
		}
	}
}
