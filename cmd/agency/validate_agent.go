package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kingrea/agency/internal/agent"
)

var validateAgentCmd = &cobra.Command{
	Use:   "validate-agent <file>",
	Short: "Validate an agent override file",
	Long: `Checks a .agency/agents/<key>.yaml override against the built-in roles.
The file must declare agency.type "agent", agency.version 1, one of the keys
product-manager, architect, security-engineer or qa-engineer, and at least one
of role, goal or backstory.`,
	Args: cobra.ExactArgs(1),
	RunE: runValidateAgent,
}

func runValidateAgent(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	report, err := agent.ValidateFile(args[0])
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Validation failed: %v\n", err)
		return &exitError{code: 1}
	}
	if report.IsValid() {
		fmt.Fprintf(out, "OK: %s (%s)\n", report.Path, report.Key)
		if contract, ok := agent.ContractForKey(report.Key); ok {
			printContract(out, contract)
		}
		return nil
	}
	fmt.Fprintf(out, "Invalid: %s (%s)\n", report.Path, report.Key)
	for _, validationErr := range report.Errors {
		fmt.Fprintf(out, "- %v\n", validationErr)
	}
	return &exitError{code: 1}
}

// printContract shows what the overridden agent still reads and writes.
func printContract(out io.Writer, c agent.Contract) {
	reads := "the app idea"
	if len(c.Inputs) > 0 {
		reads = strings.Join(c.Inputs, ", ")
	}
	fmt.Fprintf(out, "  phase:  %s\n  reads:  %s\n  writes: %s\n", c.Phase, reads, strings.Join(c.Outputs, ", "))
}
