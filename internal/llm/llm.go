// Package llm is the thin model-client layer shared by every agent. It hides
// the provider SDK behind a single Generate call so the crew can be exercised
// with scripted clients in tests.
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const (
	ProviderGemini = "gemini"

	DefaultModel       = "gemini-3-flash-preview"
	DefaultTemperature = 0.6
	DefaultMaxRetries  = 5
	DefaultTimeout     = 5 * time.Minute
)

// Config is the model configuration shared by all agents of a crew.
type Config struct {
	Provider    string
	Model       string
	APIKey      string
	Temperature float32
	MaxRetries  int
	Timeout     time.Duration
}

// DefaultConfig returns the settings the pipeline ships with.
func DefaultConfig(apiKey string) Config {
	return Config{
		Provider:    ProviderGemini,
		Model:       DefaultModel,
		APIKey:      apiKey,
		Temperature: DefaultTemperature,
		MaxRetries:  DefaultMaxRetries,
		Timeout:     DefaultTimeout,
	}
}

// Validate ensures the config can build a client.
func (c Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("llm: api key is required")
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("llm: model is required")
	}
	if c.Provider != "" && c.Provider != ProviderGemini {
		return fmt.Errorf("llm: unsupported provider %q", c.Provider)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("llm: max retries must be >= 0")
	}
	return nil
}

// Request is a single completion call.
type Request struct {
	System string
	Prompt string
	// Wait, when set, is called before every attempt to send the request,
	// retries included. A non-nil error aborts the call.
	Wait func(context.Context) error
}

func (r Request) wait(ctx context.Context) error {
	if r.Wait == nil {
		return nil
	}
	return r.Wait(ctx)
}

// Response carries the generated text.
type Response struct {
	Text     string
	Model    string
	Attempts int
}

// Client defines the interface for model providers.
type Client interface {
	Generate(ctx context.Context, req Request) (Response, error)
}

// ClientFunc adapts a function to the Client interface.
type ClientFunc func(ctx context.Context, req Request) (Response, error)

// Generate implements Client.
func (f ClientFunc) Generate(ctx context.Context, req Request) (Response, error) {
	return f(ctx, req)
}
