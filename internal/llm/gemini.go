package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

type generateFunc func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)

// GeminiClient implements Client on top of the Google GenAI SDK.
type GeminiClient struct {
	cfg      Config
	generate generateFunc
	sleep    func(context.Context, time.Duration) error
	logger   *zap.Logger
}

// Option customizes a GeminiClient.
type Option func(*GeminiClient)

// WithLogger routes retry and latency logs to the provided logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *GeminiClient) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewGeminiClient creates a Gemini-backed client.
func NewGeminiClient(ctx context.Context, cfg Config, opts ...Option) (*GeminiClient, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("llm: create genai client: %w", err)
	}
	return newGeminiClient(cfg, client.Models.GenerateContent, opts...), nil
}

func newGeminiClient(cfg Config, generate generateFunc, opts ...Option) *GeminiClient {
	c := &GeminiClient{
		cfg:      cfg,
		generate: generate,
		sleep:    sleepContext,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Generate sends the request, retrying transient failures up to MaxRetries
// times with exponential spacing. req.Wait runs before every attempt.
func (c *GeminiClient) Generate(ctx context.Context, req Request) (Response, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return Response{}, fmt.Errorf("llm: prompt is required")
	}
	contents := genai.Text(req.Prompt)
	genCfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(c.cfg.Temperature),
	}
	if strings.TrimSpace(req.System) != "" {
		genCfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	start := time.Now()
	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(1<<uint(attempt-1)) * time.Second
			c.logger.Warn("retrying model call",
				zap.String("model", c.cfg.Model),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(lastErr))
			if err := c.sleep(ctx, delay); err != nil {
				return Response{}, err
			}
		}
		if err := req.wait(ctx); err != nil {
			return Response{}, err
		}

		callCtx, cancel := c.callContext(ctx)
		resp, err := c.generate(callCtx, c.cfg.Model, contents, genCfg)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return Response{}, ctx.Err()
			}
			if !retryable(err) {
				return Response{}, fmt.Errorf("llm: generate: %w", err)
			}
			lastErr = err
			continue
		}

		text := strings.TrimSpace(resp.Text())
		if text == "" {
			lastErr = errEmptyCompletion
			continue
		}
		c.logger.Debug("model call completed",
			zap.String("model", c.cfg.Model),
			zap.Duration("elapsed", time.Since(start)),
			zap.Int("response_len", len(text)))
		return Response{Text: text, Model: c.cfg.Model, Attempts: attempt + 1}, nil
	}
	return Response{}, fmt.Errorf("llm: max retries exceeded: %w", lastErr)
}

var errEmptyCompletion = errors.New("llm: empty completion")

func (c *GeminiClient) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.cfg.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.cfg.Timeout)
}

// retryable reports whether an SDK error is worth another attempt: rate
// limits, server errors, and anything that is not a structured API error.
func retryable(err error) bool {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= http.StatusInternalServerError
	}
	return true
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
