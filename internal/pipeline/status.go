package pipeline

import (
	"github.com/kingrea/agency/internal/artifact"
	"github.com/kingrea/agency/internal/workflow"
)

// Status summarizes the checkpoints on disk.
type Status struct {
	Checkpoints []artifact.CheckResult
	// Resume is the furthest phase that can be started, or PhaseComplete
	// when every document exists.
	Resume workflow.Phase
}

// Available reports whether every checkpoint the phase needs is on disk.
func (s Status) Available(p workflow.Phase) bool {
	ready := make(map[string]bool, len(s.Checkpoints))
	for _, cp := range s.Checkpoints {
		ready[cp.Ref.FileName] = cp.State == artifact.StateReady
	}
	for _, file := range p.Requires() {
		if !ready[file] {
			return false
		}
	}
	return true
}

// Status inspects the output directory.
func (p *Pipeline) Status() Status {
	var st Status
	for _, ref := range artifact.All() {
		res, _ := p.store.Check(ref)
		st.Checkpoints = append(st.Checkpoints, res)
	}
	st.Resume = workflow.DetectPhase(p.store.Dir())
	return st
}
