// internal/workflow/phase.go
//
// Phases of the document pipeline and the checkpoint files they produce.
// Resume state is derived from which checkpoint documents exist in the output
// directory, so a run can be picked up again after a crash or a manual edit.

package workflow

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Checkpoint file names, written in the output directory.
const (
	FilePRD            = "PRD.md"
	FileTechSpec       = "TechSpec.md"
	FileSecurityReview = "SecurityReview.md"
	FileQAPlan         = "QAPlan.md"
)

// Phase represents a stage of the pipeline. The numeric value of each
// runnable phase is the menu choice that starts the pipeline there.
type Phase int

const (
	PhaseNone Phase = iota
	PhaseProduct
	PhaseArchitecture
	PhaseSecurity
	PhaseQA
	PhaseComplete
)

// Runnable lists the phases in execution order.
var Runnable = []Phase{PhaseProduct, PhaseArchitecture, PhaseSecurity, PhaseQA}

// String returns a human-readable name for the phase
func (p Phase) String() string {
	switch p {
	case PhaseNone:
		return "Not Started"
	case PhaseProduct:
		return "PM"
	case PhaseArchitecture:
		return "Architect"
	case PhaseSecurity:
		return "Security"
	case PhaseQA:
		return "QA"
	case PhaseComplete:
		return "Complete"
	default:
		return "Unknown"
	}
}

// FriendlyName returns a short description suitable for menu display
func (p Phase) FriendlyName() string {
	switch p {
	case PhaseProduct:
		return "PM phase (Start Fresh - Runs all 4 Agents)"
	case PhaseArchitecture:
		return "Architect phase (Requires PRD.md)"
	case PhaseSecurity:
		return "Security phase (Requires PRD.md & TechSpec.md)"
	case PhaseQA:
		return "QA phase (Requires PRD.md, TechSpec.md & SecurityReview.md)"
	default:
		return p.String()
	}
}

// Next returns the next phase in the pipeline
func (p Phase) Next() Phase {
	if p >= PhaseComplete {
		return PhaseComplete
	}
	return p + 1
}

// IsRunnable reports whether the phase can be picked from the menu.
func (p Phase) IsRunnable() bool {
	return p >= PhaseProduct && p <= PhaseQA
}

// Choice returns the menu number for the phase ("1".."4"), or "" for
// phases that cannot be started directly.
func (p Phase) Choice() string {
	if !p.IsRunnable() {
		return ""
	}
	return strconv.Itoa(int(p))
}

// OutputFile names the checkpoint the phase writes.
func (p Phase) OutputFile() string {
	switch p {
	case PhaseProduct:
		return FilePRD
	case PhaseArchitecture:
		return FileTechSpec
	case PhaseSecurity:
		return FileSecurityReview
	case PhaseQA:
		return FileQAPlan
	default:
		return ""
	}
}

// Requires lists the checkpoint files that must exist before the phase runs,
// in the order they are injected.
func (p Phase) Requires() []string {
	var files []string
	for _, prior := range Runnable {
		if prior >= p {
			break
		}
		files = append(files, prior.OutputFile())
	}
	return files
}

// ParseChoice maps raw menu input to a runnable phase. Surrounding whitespace
// is ignored; anything other than the exact strings "1" to "4" is rejected.
func ParseChoice(raw string) (Phase, bool) {
	raw = strings.TrimSpace(raw)
	for _, p := range Runnable {
		if p.Choice() == raw {
			return p, true
		}
	}
	return PhaseNone, false
}

// DetectPhase examines the output directory and returns the furthest phase
// that can be resumed. Checkpoints only count as a contiguous prefix: a
// TechSpec.md without PRD.md does not unlock the security phase.
func DetectPhase(outputDir string) Phase {
	resume := PhaseProduct
	for _, p := range Runnable {
		if !fileExists(outputDir, p.OutputFile()) {
			return resume
		}
		resume = p.Next()
	}
	return PhaseComplete
}

// fileExists checks if a file exists at the given path segments
func fileExists(parts ...string) bool {
	path := filepath.Join(parts...)
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
