package agent

import "github.com/kingrea/agency/internal/workflow"

// Contract describes what an agent consumes and produces in the pipeline.
// Overrides may change an agent's persona but never its contract.
type Contract struct {
	Key     string
	Phase   workflow.Phase
	Inputs  []string
	Outputs []string
}

var contracts = map[string]Contract{
	KeyProductManager:   contractFor(KeyProductManager, workflow.PhaseProduct),
	KeyArchitect:        contractFor(KeyArchitect, workflow.PhaseArchitecture),
	KeySecurityEngineer: contractFor(KeySecurityEngineer, workflow.PhaseSecurity),
	KeyQAEngineer:       contractFor(KeyQAEngineer, workflow.PhaseQA),
}

func contractFor(key string, phase workflow.Phase) Contract {
	return Contract{
		Key:     key,
		Phase:   phase,
		Inputs:  phase.Requires(),
		Outputs: []string{phase.OutputFile()},
	}
}

// ContractForKey returns the contract for the given agent key, if it exists.
func ContractForKey(key string) (Contract, bool) {
	contract, ok := contracts[key]
	return contract, ok
}
