package tui

import (
	"fmt"
	"io"
	"time"

	"github.com/kingrea/agency/internal/crew"
)

// Progress prints crew events as they arrive.
type Progress struct {
	out io.Writer
}

// NewProgress writes progress lines to out.
func NewProgress(out io.Writer) *Progress {
	return &Progress{out: out}
}

// Loading echoes a checkpoint loading notice.
func (p *Progress) Loading(msg string) {
	fmt.Fprintf(p.out, "\n%s\n", detailStyle.Render(msg))
}

// Assembling announces that the crew is about to start.
func (p *Progress) Assembling() {
	fmt.Fprint(p.out, "\n⚙️ Assembling Crew and starting execution...\n\n")
}

// Observe renders one crew event. It matches crew.Observer.
func (p *Progress) Observe(ev crew.Event) {
	step := fmt.Sprintf("[%d/%d]", ev.Index+1, ev.Total)
	switch ev.Kind {
	case crew.EventTaskStarted:
		fmt.Fprintf(p.out, "%s %s %s\n",
			runningStyle.Render("▶ "+step),
			ev.Task.Agent.Role,
			detailStyle.Render("working on "+ev.Task.OutputFile))
	case crew.EventTaskFinished:
		line := doneStyle.Render("✔ "+step) + " " + ev.Task.OutputFile
		if ev.Output != nil {
			line += " " + detailStyle.Render(fmt.Sprintf("written to %s in %s", ev.Output.File, ev.Output.Duration.Round(time.Second)))
		}
		fmt.Fprintln(p.out, line)
	case crew.EventTaskFailed:
		fmt.Fprintf(p.out, "%s %s: %v\n", failedStyle.Render("✘ "+step), ev.Task.ID, ev.Err)
	}
}

// Complete prints the completion banner and where the last document went.
func (p *Progress) Complete(out crew.Output) {
	fmt.Fprintf(p.out, "\n%s\n%s\n%s\n", rule, doneStyle.Render("✅ PIPELINE EXECUTION COMPLETE!"), rule)
	if final, ok := out.Final(); ok {
		fmt.Fprintln(p.out, detailStyle.Render("Final document: "+final.File))
	}
}

// Failure prints a user-facing error block.
func (p *Progress) Failure(headline, detail string) {
	fmt.Fprintf(p.out, "\n%s\n", failedStyle.Render("❌ ERROR: "+headline))
	if detail != "" {
		fmt.Fprintln(p.out, detail)
	}
}
