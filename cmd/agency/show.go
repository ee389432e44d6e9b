package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/kingrea/agency/internal/artifact"
)

var showRaw bool

var showCmd = &cobra.Command{
	Use:   "show <document>",
	Short: "Render a checkpoint document",
	Long: `Renders PRD.md, TechSpec.md, SecurityReview.md or QAPlan.md from the
output directory. Documents can be named by file (PRD.md) or id (prd,
tech-spec, security-review, qa-plan).`,
	Args: cobra.ExactArgs(1),
	RunE: runShow,
}

func init() {
	showCmd.Flags().BoolVar(&showRaw, "raw", false, "Print markdown without rendering")
}

func runShow(cmd *cobra.Command, args []string) error {
	ref, ok := artifact.Lookup(args[0])
	if !ok {
		return fmt.Errorf("unknown document %q (want one of %s)", args[0], documentNames())
	}
	s, err := openSession(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer s.Close()

	body, err := s.store.Read(ref)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if res, err := s.store.Check(ref); err == nil && res.Metadata != nil {
		meta := res.Metadata
		fmt.Fprintf(out, "%s · written by %s (%s) · run %s · %s\n\n",
			ref.Name, meta.Agent, meta.Model, meta.RunID, meta.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	if showRaw {
		fmt.Fprint(out, body)
		return nil
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return fmt.Errorf("markdown renderer: %w", err)
	}
	rendered, err := renderer.Render(body)
	if err != nil {
		return fmt.Errorf("render %s: %w", ref.FileName, err)
	}
	fmt.Fprint(out, rendered)
	return nil
}

func documentNames() string {
	var names []string
	for _, ref := range artifact.All() {
		names = append(names, ref.FileName)
	}
	return strings.Join(names, ", ")
}
