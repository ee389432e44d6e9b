// internal/config/config.go
//
// This package handles configuration and the .agency directory structure.
// Every project that runs the pipeline gets a .agency/ folder in its root for
// logs, run history, and agent overrides. The generated documents themselves
// land in the output directory (the project root unless configured otherwise).

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// AgencyDir is the name of the directory we create in each project
	AgencyDir = ".agency"

	// DefaultAPIKeyEnv names the environment variable holding the model API key.
	DefaultAPIKeyEnv = "GEMINI_API_KEY"

	// ModelOverrideEnv replaces the configured model name when set.
	ModelOverrideEnv = "AGENCY_MODEL"

	defaultProvider    = "gemini"
	defaultModel       = "gemini-3-flash-preview"
	defaultTemperature = 0.6
	defaultMaxRetries  = 5
	defaultTimeout     = 5 * time.Minute
	defaultMaxRPM      = 2
)

const defaultProjectConfigYAML = `# agency project configuration
version: 1

# Model shared by every agent in the crew.
model:
  provider: gemini
  name: gemini-3-flash-preview
  temperature: 0.6
  max_retries: 5
  timeout: 5m
  api_key_env: GEMINI_API_KEY

# Sequential crew settings. max_rpm caps model requests per minute.
crew:
  max_rpm: 2
  verbose: true

# Where PRD.md, TechSpec.md, SecurityReview.md and QAPlan.md are read and written.
output_dir: .

# Prefix written checkpoints with provenance frontmatter (agent, model, run,
# checksum). Set to false to write plain markdown.
provenance: true
`

// ModelConfig describes the model client shared by all agents.
type ModelConfig struct {
	Provider    string        `yaml:"provider"`
	Name        string        `yaml:"name"`
	Temperature float32       `yaml:"temperature"`
	MaxRetries  int           `yaml:"max_retries"`
	Timeout     time.Duration `yaml:"timeout"`
	APIKeyEnv   string        `yaml:"api_key_env"`
}

// CrewConfig captures sequential executor settings.
type CrewConfig struct {
	MaxRPM  int  `yaml:"max_rpm"`
	// Verbose logs each task prompt at debug level; overrides may flip it per agent.
	Verbose bool `yaml:"verbose"`
}

// ProjectConfig models .agency/config.yaml.
type ProjectConfig struct {
	Version    int         `yaml:"version"`
	Model      ModelConfig `yaml:"model"`
	Crew       CrewConfig  `yaml:"crew"`
	OutputDir  string      `yaml:"output_dir"`
	// Provenance controls the frontmatter header on written checkpoints.
	Provenance bool        `yaml:"provenance"`
}

// Config holds the runtime configuration for a pipeline invocation.
type Config struct {
	// ProjectDir is the directory where the user ran `agency` from
	ProjectDir string

	// AgencyProjectDir is ProjectDir/.agency
	AgencyProjectDir string

	Project ProjectConfig
}

// InitAgencyDir creates the .agency directory structure in the given project directory.
//
// Structure created:
// .agency/
// ├── config.yaml
// ├── agents/   <- optional role overrides (<key>.yaml)
// ├── logs/     <- zap log output
// └── state/    <- run history database
func InitAgencyDir(projectDir string) error {
	agencyDir := filepath.Join(projectDir, AgencyDir)

	dirs := []string{
		filepath.Join(agencyDir, "agents"),
		filepath.Join(agencyDir, "logs"),
		filepath.Join(agencyDir, "state"),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	return ensureProjectConfig(filepath.Join(agencyDir, "config.yaml"))
}

// NewConfig creates a new Config instance populated with project settings.
func NewConfig(projectDir string) (*Config, error) {
	cfg := &Config{
		ProjectDir:       projectDir,
		AgencyProjectDir: filepath.Join(projectDir, AgencyDir),
		Project:          defaultProjectConfig(),
	}

	if err := cfg.loadProjectConfig(); err != nil {
		return nil, err
	}
	cfg.applyEnvOverrides()

	return cfg, nil
}

// LogsDir returns the path to the logs directory
func (c *Config) LogsDir() string {
	return filepath.Join(c.AgencyProjectDir, "logs")
}

// StateDir returns the path to the state directory
func (c *Config) StateDir() string {
	return filepath.Join(c.AgencyProjectDir, "state")
}

// AgentsDir returns the path that holds agent override files
func (c *Config) AgentsDir() string {
	return filepath.Join(c.AgencyProjectDir, "agents")
}

// HistoryPath returns the run history database location.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.StateDir(), "history.db")
}

// ProjectConfigPath returns the on-disk location for the project config file.
func (c *Config) ProjectConfigPath() string {
	return filepath.Join(c.AgencyProjectDir, "config.yaml")
}

// OutputDir returns the absolute directory holding checkpoint documents.
func (c *Config) OutputDir() string {
	return resolvePath(c.ProjectDir, c.Project.OutputDir)
}

// APIKey reads the model API key from the configured environment variable.
func (c *Config) APIKey() string {
	return strings.TrimSpace(os.Getenv(c.Project.Model.APIKeyEnv))
}

// RequireAPIKey returns the API key or an error naming the variable to set.
func (c *Config) RequireAPIKey() (string, error) {
	key := c.APIKey()
	if key == "" {
		return "", fmt.Errorf("config: %s is not set", c.Project.Model.APIKeyEnv)
	}
	return key, nil
}

func (c *Config) applyEnvOverrides() {
	if model := strings.TrimSpace(os.Getenv(ModelOverrideEnv)); model != "" {
		c.Project.Model.Name = model
	}
}

func (c *Config) loadProjectConfig() error {
	path := c.ProjectConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	parsed := defaultProjectConfig()
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}

	parsed.applyDefaults()
	parsed.normalize()
	if err := parsed.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	c.Project = parsed
	return nil
}

func defaultProjectConfig() ProjectConfig {
	return ProjectConfig{
		Version: 1,
		Model: ModelConfig{
			Provider:    defaultProvider,
			Name:        defaultModel,
			Temperature: defaultTemperature,
			MaxRetries:  defaultMaxRetries,
			Timeout:     defaultTimeout,
			APIKeyEnv:   DefaultAPIKeyEnv,
		},
		Crew: CrewConfig{
			MaxRPM:  defaultMaxRPM,
			Verbose: true,
		},
		OutputDir:  ".",
		Provenance: true,
	}
}

func (pc *ProjectConfig) applyDefaults() {
	if pc.Version == 0 {
		pc.Version = 1
	}
	if pc.Model.Timeout == 0 {
		pc.Model.Timeout = defaultTimeout
	}
	if pc.Crew.MaxRPM == 0 {
		pc.Crew.MaxRPM = defaultMaxRPM
	}
}

func (pc *ProjectConfig) normalize() {
	pc.Model.Provider = strings.ToLower(strings.TrimSpace(pc.Model.Provider))
	if pc.Model.Provider == "" {
		pc.Model.Provider = defaultProvider
	}
	pc.Model.Name = strings.TrimSpace(pc.Model.Name)
	if pc.Model.Name == "" {
		pc.Model.Name = defaultModel
	}
	pc.Model.APIKeyEnv = strings.TrimSpace(pc.Model.APIKeyEnv)
	if pc.Model.APIKeyEnv == "" {
		pc.Model.APIKeyEnv = DefaultAPIKeyEnv
	}
	pc.OutputDir = strings.TrimSpace(pc.OutputDir)
	if pc.OutputDir == "" {
		pc.OutputDir = "."
	}
}

func (pc *ProjectConfig) validate() error {
	if pc.Version < 1 {
		return fmt.Errorf("config version must be >= 1")
	}
	if pc.Model.Provider != defaultProvider {
		return fmt.Errorf("model.provider must be %q", defaultProvider)
	}
	if pc.Model.Temperature < 0 || pc.Model.Temperature > 2 {
		return fmt.Errorf("model.temperature must be between 0 and 2")
	}
	if pc.Model.MaxRetries < 0 {
		return fmt.Errorf("model.max_retries must be >= 0")
	}
	if pc.Model.Timeout < 0 {
		return fmt.Errorf("model.timeout must be positive")
	}
	if pc.Crew.MaxRPM < 0 {
		return fmt.Errorf("crew.max_rpm must be >= 0")
	}
	return nil
}

func resolvePath(base, candidate string) string {
	trimmed := strings.TrimSpace(candidate)
	if trimmed == "" {
		return filepath.Clean(base)
	}
	if filepath.IsAbs(trimmed) {
		return filepath.Clean(trimmed)
	}
	return filepath.Clean(filepath.Join(base, trimmed))
}

func ensureProjectConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.WriteFile(path, []byte(defaultProjectConfigYAML), 0644)
}
