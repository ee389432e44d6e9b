package history

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "state", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func steppingClock(start time.Time) func() time.Time {
	current := start
	return func() time.Time {
		current = current.Add(time.Second)
		return current
	}
}

func TestRunRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	s.now = steppingClock(time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC))

	require.NoError(t, s.StartRun(ctx, "run-1", "1", "PM", "a todo app"))
	require.NoError(t, s.RecordTask(ctx, TaskRecord{
		RunID: "run-1", TaskID: "define-app", Agent: "product-manager",
		File: "PRD.md", Status: StatusSucceeded, Attempts: 2, Duration: 1500 * time.Millisecond,
	}))
	require.NoError(t, s.RecordTask(ctx, TaskRecord{
		RunID: "run-1", TaskID: "tech-stack", Agent: "architect",
		Status: StatusFailed, Error: "quota exceeded",
	}))
	require.NoError(t, s.FinishRun(ctx, "run-1", StatusFailed, errors.New("crew: task tech-stack: quota exceeded")))

	runs, err := s.Runs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	run := runs[0]
	assert.Equal(t, "1", run.Choice)
	assert.Equal(t, "PM", run.Phase)
	assert.Equal(t, "a todo app", run.Idea)
	assert.Equal(t, StatusFailed, run.Status)
	assert.Contains(t, run.Error, "quota exceeded")
	assert.Equal(t, 2, run.TaskCount)
	require.NotNil(t, run.FinishedAt)
	assert.True(t, run.FinishedAt.After(run.StartedAt))

	tasks, err := s.Tasks(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "define-app", tasks[0].TaskID)
	assert.Equal(t, 1500*time.Millisecond, tasks[0].Duration)
	assert.Equal(t, 2, tasks[0].Attempts)
	assert.Equal(t, "tech-stack", tasks[1].TaskID)
	assert.Equal(t, "quota exceeded", tasks[1].Error)
}

func TestRunsNewestFirstAndLimit(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	s.now = steppingClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.StartRun(ctx, id, "2", "Architect", ""))
	}
	runs, err := s.Runs(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "c", runs[0].ID)
	assert.Equal(t, "b", runs[1].ID)
	assert.Nil(t, runs[0].FinishedAt)
	assert.Equal(t, StatusRunning, runs[0].Status)
}

func TestFinishUnknownRun(t *testing.T) {
	s := newTestStore(t)
	err := s.FinishRun(context.Background(), "missing", StatusSucceeded, nil)
	assert.ErrorContains(t, err, "not found")
}

func TestStartRunRequiresID(t *testing.T) {
	s := newTestStore(t)
	assert.Error(t, s.StartRun(context.Background(), " ", "1", "PM", "idea"))
}

func TestRecordTaskRequiresExistingRun(t *testing.T) {
	s := newTestStore(t)
	err := s.RecordTask(context.Background(), TaskRecord{RunID: "ghost", TaskID: "qa-planning", Agent: "qa-engineer", Status: StatusSucceeded})
	assert.Error(t, err, "foreign keys are enforced")
}

func TestOpenReportsDriverFailure(t *testing.T) {
	orig := openDB
	t.Cleanup(func() { openDB = orig })
	openDB = func(driverName, dataSourceName string) (*sql.DB, error) {
		return nil, errors.New("boom")
	}
	_, err := Open(filepath.Join(t.TempDir(), "history.db"))
	assert.ErrorContains(t, err, "history: open database")
}

func TestRunsOrderWithinTheSameSecond(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	stamps := []time.Time{
		time.Date(2025, 1, 1, 0, 0, 5, 0, time.UTC),
		time.Date(2025, 1, 1, 0, 0, 5, 500_000_000, time.UTC),
		time.Date(2025, 1, 1, 0, 0, 5, 900_000_001, time.UTC),
	}
	for i, id := range []string{"whole", "half", "late"} {
		at := stamps[i]
		s.now = func() time.Time { return at }
		require.NoError(t, s.StartRun(ctx, id, "1", "PM", "idea"))
	}

	runs, err := s.Runs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, []string{"late", "half", "whole"}, []string{runs[0].ID, runs[1].ID, runs[2].ID})
	assert.True(t, runs[2].StartedAt.Equal(stamps[0]))
	assert.True(t, runs[1].StartedAt.Equal(stamps[1]))
}

func TestParseStampAcceptsVariableWidth(t *testing.T) {
	want := time.Date(2025, 1, 1, 0, 0, 5, 500_000_000, time.UTC)
	assert.True(t, parseStamp("2025-01-01T00:00:05.5Z").Equal(want))
	assert.True(t, parseStamp(want.Format(timeLayout)).Equal(want))
	assert.Equal(t, "2025-01-01T00:00:05.500000000Z", want.Format(timeLayout))
	assert.True(t, parseStamp("yesterday").IsZero())
}
