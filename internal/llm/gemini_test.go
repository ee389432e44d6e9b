package llm

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: text}}},
		}},
	}
}

func testClient(cfg Config, gen generateFunc) (*GeminiClient, *[]time.Duration) {
	var slept []time.Duration
	c := newGeminiClient(cfg, gen)
	c.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return c, &slept
}

func TestGenerateSendsSystemInstructionAndTemperature(t *testing.T) {
	cfg := DefaultConfig("key")
	var gotModel string
	var gotCfg *genai.GenerateContentConfig
	var gotContents []*genai.Content
	c, _ := testClient(cfg, func(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
		gotModel, gotContents, gotCfg = model, contents, config
		return textResponse("  # PRD\n"), nil
	})

	resp, err := c.Generate(context.Background(), Request{System: "You are a PM", Prompt: "Write a PRD"})
	require.NoError(t, err)
	assert.Equal(t, "# PRD", resp.Text)
	assert.Equal(t, 1, resp.Attempts)
	assert.Equal(t, DefaultModel, gotModel)
	require.Len(t, gotContents, 1)
	assert.Equal(t, "Write a PRD", gotContents[0].Parts[0].Text)
	require.NotNil(t, gotCfg.Temperature)
	assert.InDelta(t, 0.6, *gotCfg.Temperature, 1e-6)
	require.NotNil(t, gotCfg.SystemInstruction)
	assert.Equal(t, "You are a PM", gotCfg.SystemInstruction.Parts[0].Text)
}

func TestGenerateRetriesRateLimitsWithBackoff(t *testing.T) {
	cfg := DefaultConfig("key")
	calls := 0
	c, slept := testClient(cfg, func(context.Context, string, []*genai.Content, *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
		calls++
		if calls < 3 {
			return nil, genai.APIError{Code: http.StatusTooManyRequests, Message: "slow down"}
		}
		return textResponse("ok"), nil
	})

	resp, err := c.Generate(context.Background(), Request{Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, 3, resp.Attempts)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, *slept)
}

func TestGenerateWaitsBeforeEveryAttempt(t *testing.T) {
	calls, waits := 0, 0
	c, _ := testClient(DefaultConfig("key"), func(context.Context, string, []*genai.Content, *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
		calls++
		if waits != calls {
			t.Fatalf("attempt %d sent after %d waits", calls, waits)
		}
		if calls < 3 {
			return nil, genai.APIError{Code: http.StatusServiceUnavailable, Message: "busy"}
		}
		return textResponse("ok"), nil
	})

	wait := func(context.Context) error {
		waits++
		return nil
	}
	resp, err := c.Generate(context.Background(), Request{Prompt: "p", Wait: wait})
	require.NoError(t, err)
	assert.Equal(t, 3, resp.Attempts)
	assert.Equal(t, 3, waits)
}

func TestGenerateStopsWhenWaitFails(t *testing.T) {
	c, _ := testClient(DefaultConfig("key"), func(context.Context, string, []*genai.Content, *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
		t.Fatalf("request must not be sent")
		return nil, nil
	})
	_, err := c.Generate(context.Background(), Request{Prompt: "p", Wait: func(context.Context) error {
		return context.DeadlineExceeded
	}})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGenerateStopsOnClientErrors(t *testing.T) {
	calls := 0
	c, _ := testClient(DefaultConfig("key"), func(context.Context, string, []*genai.Content, *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
		calls++
		return nil, genai.APIError{Code: http.StatusBadRequest, Message: "bad"}
	})

	_, err := c.Generate(context.Background(), Request{Prompt: "p"})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestGenerateGivesUpAfterMaxRetries(t *testing.T) {
	cfg := DefaultConfig("key")
	cfg.MaxRetries = 2
	calls := 0
	boom := errors.New("connection reset")
	c, _ := testClient(cfg, func(context.Context, string, []*genai.Content, *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
		calls++
		return nil, boom
	})

	_, err := c.Generate(context.Background(), Request{Prompt: "p"})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 3, calls)
}

func TestGenerateTreatsEmptyCompletionAsRetryable(t *testing.T) {
	cfg := DefaultConfig("key")
	cfg.MaxRetries = 1
	c, _ := testClient(cfg, func(context.Context, string, []*genai.Content, *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
		return textResponse("   "), nil
	})

	_, err := c.Generate(context.Background(), Request{Prompt: "p"})
	require.ErrorIs(t, err, errEmptyCompletion)
}

func TestGenerateHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c, _ := testClient(DefaultConfig("key"), func(context.Context, string, []*genai.Content, *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
		cancel()
		return nil, errors.New("canceled upstream")
	})

	_, err := c.Generate(ctx, Request{Prompt: "p"})
	require.ErrorIs(t, err, context.Canceled)
}

func TestConfigValidate(t *testing.T) {
	assert.Error(t, Config{Model: "m"}.Validate())
	assert.Error(t, Config{APIKey: "k"}.Validate())
	assert.Error(t, Config{APIKey: "k", Model: "m", Provider: "openai"}.Validate())
	assert.NoError(t, DefaultConfig("k").Validate())
}

func TestGenerateRejectsEmptyPrompt(t *testing.T) {
	c, _ := testClient(DefaultConfig("key"), nil)
	_, err := c.Generate(context.Background(), Request{System: "s"})
	assert.Error(t, err)
}
