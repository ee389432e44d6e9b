package tui

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/kingrea/agency/internal/workflow"
)

const plainMenu = `Where would you like to start the pipeline?
1. PM phase        (Start Fresh - Runs all 4 Agents)
2. Architect phase (Requires PRD.md)
3. Security phase  (Requires PRD.md & TechSpec.md)
4. QA phase        (Requires PRD.md, TechSpec.md & SecurityReview.md)
`

// PromptPlain asks for the start phase on a line-oriented terminal. The
// choice is returned as typed (trimmed); validation is left to the pipeline
// so an invalid entry still reaches the caller.
func PromptPlain(in io.Reader, out io.Writer) (Selection, error) {
	r := bufio.NewReader(in)
	fmt.Fprintf(out, "\n%s\n%s\n%s\n%s", rule, Banner, rule, plainMenu)
	fmt.Fprint(out, "\nEnter choice (1-4): ")
	choice, err := readLine(r)
	if err != nil {
		return Selection{}, err
	}
	sel := Selection{Choice: strings.TrimSpace(choice)}
	if sel.Choice == workflow.PhaseProduct.Choice() {
		fmt.Fprint(out, "\nWhat app would you like us to build? \n> ")
		idea, err := readLine(r)
		if err != nil {
			return Selection{}, err
		}
		sel.Idea = idea
	}
	return sel, nil
}

// readLine returns one line without its terminator. A final line without a
// newline is returned as is.
func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("tui: read input: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
