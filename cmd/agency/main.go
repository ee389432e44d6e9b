// cmd/agency/main.go
//
// This is the entry point for the agency CLI.
// When you run `agency` from any directory, this is what executes.
//
// Flow:
// 1. Initialize the .agency folder and load its config
// 2. Ask where the pipeline should start (menu or plain prompt)
// 3. Load the checkpoints that phase needs and run the crew

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/kingrea/agency/internal/agent"
	"github.com/kingrea/agency/internal/artifact"
	"github.com/kingrea/agency/internal/config"
	"github.com/kingrea/agency/internal/crew"
	"github.com/kingrea/agency/internal/history"
	"github.com/kingrea/agency/internal/llm"
	"github.com/kingrea/agency/internal/logging"
	"github.com/kingrea/agency/internal/pipeline"
	"github.com/kingrea/agency/internal/tui"
)

var (
	// Global flags
	verbose   bool
	plain     bool
	workspace string

	// newClient builds the model client; tests swap it for a scripted one.
	newClient = func(ctx context.Context, cfg llm.Config, logger *zap.Logger) (llm.Client, error) {
		return llm.NewGeminiClient(ctx, cfg, llm.WithLogger(logger))
	}
)

// exitError carries a process exit code for failures that were already
// reported to the user.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "agency",
	Short: "Virtual agency: PM, Architect, Security and QA agents in one pipeline",
	Long: `agency runs four role-specialised agents in sequence to turn an app idea
into PRD.md, TechSpec.md, SecurityReview.md and QAPlan.md.

Run without arguments to pick where the pipeline starts. Choice 1 starts
fresh and asks for the app idea; an empty idea is rejected and nothing runs.
Later phases resume from the documents earlier phases left in the output
directory. Only the exact choices 1, 2, 3 and 4 are accepted.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runPipeline,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Keep debug entries (including prompts) in .agency/logs/agency.log")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Project directory (default: current)")
	rootCmd.Flags().BoolVar(&plain, "plain", false, "Use the line-oriented prompt instead of the interactive menu")

	rootCmd.AddCommand(validateAgentCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(showCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		var exit *exitError
		if errors.As(err, &exit) {
			os.Exit(exit.code)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// session bundles what every command needs from the project directory.
type session struct {
	cfg    *config.Config
	logger *logging.Logger
	store  *artifact.Store
}

// openSession falls back to a discarding logger, with a warning on errOut, when
// the log file cannot be opened.
func openSession(errOut io.Writer) (*session, error) {
	projectDir, err := resolveWorkspace()
	if err != nil {
		return nil, err
	}
	if err := config.InitAgencyDir(projectDir); err != nil {
		return nil, fmt.Errorf("initialize %s: %w", config.AgencyDir, err)
	}
	cfg, err := config.NewConfig(projectDir)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(projectDir, verbose)
	if err != nil {
		fmt.Fprintf(errOut, "Warning: logging disabled: %v\n", err)
		logger = logging.Nop()
	}
	return &session{
		cfg:    cfg,
		logger: logger,
		store:  artifact.NewStore(cfg.OutputDir(), storeOptions(cfg)...),
	}, nil
}

func storeOptions(cfg *config.Config) []artifact.StoreOption {
	if cfg.Project.Provenance {
		return nil
	}
	return []artifact.StoreOption{artifact.WithoutProvenance()}
}

func (s *session) Close() {
	s.logger.Close()
}

func resolveWorkspace() (string, error) {
	dir := workspace
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("determine working directory: %w", err)
		}
		dir = cwd
	}
	return filepath.Abs(dir)
}

func runPipeline(cmd *cobra.Command, args []string) error {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := openSession(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer s.Close()
	log := s.logger.Logger
	out := cmd.OutOrStdout()
	progress := tui.NewProgress(out)

	model := modelConfig(s.cfg)
	roster := agent.NewRoster(&model)
	roster.SetVerbose(s.cfg.Project.Crew.Verbose)
	if applied, err := roster.ApplyOverrides(s.cfg.AgentsDir()); err != nil {
		return err
	} else if len(applied) > 0 {
		log.Info("agent overrides applied", zap.Strings("agents", applied))
	}

	exec := &lazyExecutor{
		model:    &model,
		cfg:      s.cfg,
		store:    s.store,
		logger:   log,
		progress: progress,
	}
	p, err := pipeline.New(roster, s.store, exec,
		pipeline.WithLogger(log),
		pipeline.WithAnnouncer(progress.Loading))
	if err != nil {
		return err
	}

	sel, err := promptSelection(ctx, cmd.InOrStdin(), out, p.Status())
	if err != nil {
		return err
	}
	if sel.Cancelled {
		log.Info("menu cancelled")
		return nil
	}
	log.Info("phase selected", zap.String("choice", sel.Choice))

	_, result, err := p.Run(ctx, sel.Choice, sel.Idea)
	if err != nil {
		return reportRunError(out, progress, log, err)
	}
	progress.Complete(result)
	return nil
}

func promptSelection(ctx context.Context, in io.Reader, out io.Writer, status pipeline.Status) (tui.Selection, error) {
	if plain || !isTerminal(in) {
		return tui.PromptPlain(in, out)
	}
	return tui.RunMenu(ctx, status, in, out)
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// reportRunError prints the user-facing message for a failed run and maps it
// to exit status 1.
func reportRunError(out io.Writer, progress *tui.Progress, log *zap.Logger, err error) error {
	var missing *artifact.MissingError
	switch {
	case errors.Is(err, pipeline.ErrInvalidChoice):
		fmt.Fprintln(out, "Invalid choice. Exiting.")
	case errors.As(err, &missing):
		progress.Failure(
			fmt.Sprintf("Required checkpoint file '%s' not found!", missing.File),
			"You must run the previous steps to generate this file before resuming here.")
	case errors.Is(err, pipeline.ErrEmptyIdea):
		progress.Failure("No app idea given.", "Describe the app you want built when starting fresh.")
	case errors.Is(err, context.Canceled):
		progress.Failure("Run interrupted.", "Checkpoints written so far are kept; resume from the next phase.")
	default:
		progress.Failure("Pipeline stopped.", err.Error())
	}
	log.Error("run failed", zap.Error(err))
	return &exitError{code: 1}
}

func modelConfig(cfg *config.Config) llm.Config {
	m := cfg.Project.Model
	return llm.Config{
		Provider:    m.Provider,
		Model:       m.Name,
		Temperature: m.Temperature,
		MaxRetries:  m.MaxRetries,
		Timeout:     m.Timeout,
	}
}

// lazyExecutor defers building the model client until a selection has been
// prepared, so an invalid choice or missing checkpoint is reported without
// an API key.
type lazyExecutor struct {
	model    *llm.Config
	cfg      *config.Config
	store    *artifact.Store
	logger   *zap.Logger
	progress *tui.Progress
}

func (e *lazyExecutor) Execute(ctx context.Context, sel *pipeline.Selection) (crew.Output, error) {
	key, err := e.cfg.RequireAPIKey()
	if err != nil {
		return crew.Output{}, err
	}
	// Agents share this config by pointer.
	e.model.APIKey = key
	client, err := newClient(ctx, *e.model, e.logger)
	if err != nil {
		return crew.Output{}, err
	}

	exec := &pipeline.CrewExecutor{
		Client:   client,
		Store:    e.store,
		MaxRPM:   e.cfg.Project.Crew.MaxRPM,
		Logger:   e.logger,
		Observer: e.progress.Observe,
	}
	if ledger, err := history.Open(e.cfg.HistoryPath()); err != nil {
		e.logger.Warn("history disabled", zap.Error(err))
	} else {
		defer ledger.Close()
		exec.Recorder = ledger
	}

	e.progress.Assembling()
	return exec.Execute(ctx, sel)
}
