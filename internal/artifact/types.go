// Package artifact defines the checkpoint documents phases exchange. Each
// artifact has a stable identifier and a file name inside the output
// directory; the Store reads and writes them.

package artifact

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kingrea/agency/internal/workflow"
)

// ErrMissingCheckpoint is returned when a required checkpoint file is absent.
var ErrMissingCheckpoint = errors.New("required checkpoint file not found")

// MissingError names the checkpoint that was absent. It matches
// ErrMissingCheckpoint under errors.Is.
type MissingError struct {
	File string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMissingCheckpoint, e.File)
}

func (e *MissingError) Is(target error) bool {
	return target == ErrMissingCheckpoint
}

// Ref declares a stable identifier and metadata for a checkpoint document.
type Ref struct {
	ID          string
	Name        string
	Description string
	FileName    string
	Phase       workflow.Phase
}

// Validate ensures the reference is well-formed.
func (r Ref) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("artifact: id is required")
	}
	if r.FileName == "" {
		return fmt.Errorf("artifact: file name is required for %s", r.ID)
	}
	return nil
}

// Metadata captures provenance stored inside the document frontmatter.
type Metadata struct {
	ArtifactID string
	Phase      string
	Agent      string
	Model      string
	RunID      string
	Inputs     []string
	CreatedAt  time.Time
	Checksum   string
}

// WithDefaults ensures metadata carries the artifact ID and timestamps.
func (m Metadata) WithDefaults(ref Ref, now time.Time) Metadata {
	clone := m
	if clone.ArtifactID == "" {
		clone.ArtifactID = ref.ID
	}
	if clone.Phase == "" {
		clone.Phase = ref.Phase.String()
	}
	if clone.CreatedAt.IsZero() {
		clone.CreatedAt = now.UTC()
	} else {
		clone.CreatedAt = clone.CreatedAt.UTC()
	}
	return clone
}

// ValidateFor ensures metadata matches the artifact contract.
func (m Metadata) ValidateFor(ref Ref) error {
	if m.ArtifactID != ref.ID {
		return fmt.Errorf("artifact: metadata id %s does not match ref %s", m.ArtifactID, ref.ID)
	}
	return nil
}

// State captures the readiness of an artifact on disk.
type State string

const (
	StateMissing State = "missing"
	StateReady   State = "ready"
	StateError   State = "error"
)

// CheckResult captures Store.Check results. Metadata is nil for documents
// written by hand or by other tools.
type CheckResult struct {
	Ref      Ref
	Path     string
	State    State
	Metadata *Metadata
	Err      error
}

var refs map[string]Ref

// helper to register global references
func register(ref Ref) Ref {
	if refs == nil {
		refs = map[string]Ref{}
	}
	refs[ref.ID] = ref
	return ref
}

// Lookup returns a registered reference by ID or file name, case-insensitively.
func Lookup(name string) (Ref, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	for _, ref := range refs {
		if ref.ID == key || strings.ToLower(ref.FileName) == key {
			return ref, true
		}
	}
	return Ref{}, false
}

// ForFile returns the reference that owns a checkpoint file name.
func ForFile(fileName string) (Ref, bool) {
	for _, ref := range refs {
		if ref.FileName == fileName {
			return ref, true
		}
	}
	return Ref{}, false
}

// All returns the checkpoint references in pipeline order.
func All() []Ref {
	return []Ref{PRD, TechSpec, SecurityReview, QAPlan}
}

// Canonical checkpoint references.
var (
	PRD            = register(Ref{ID: "prd", Name: "Product Requirements", Description: "Feature list and user stories from the product manager", FileName: workflow.FilePRD, Phase: workflow.PhaseProduct})
	TechSpec       = register(Ref{ID: "tech-spec", Name: "Technical Specification", Description: "Technology stack, database schema and API structure", FileName: workflow.FileTechSpec, Phase: workflow.PhaseArchitecture})
	SecurityReview = register(Ref{ID: "security-review", Name: "Security Review", Description: "Threat model and encryption recommendations", FileName: workflow.FileSecurityReview, Phase: workflow.PhaseSecurity})
	QAPlan         = register(Ref{ID: "qa-plan", Name: "QA Plan", Description: "Unit and integration testing strategy", FileName: workflow.FileQAPlan, Phase: workflow.PhaseQA})
)
