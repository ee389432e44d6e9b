package agent

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Spec defines the expected override file schema (.agency/agents/<key>.yaml).
// Empty persona fields keep the built-in value.
type Spec struct {
	Agency          SpecMeta `yaml:"agency"`
	Key             string   `yaml:"key"`
	Role            string   `yaml:"role"`
	Goal            string   `yaml:"goal"`
	Backstory       string   `yaml:"backstory"`
	AllowDelegation *bool    `yaml:"allow_delegation,omitempty"`
	Verbose         *bool    `yaml:"verbose,omitempty"`
}

// SpecMeta captures shared metadata for agency files.
type SpecMeta struct {
	Type    string `yaml:"type"`
	Version int    `yaml:"version"`
}

// Report captures validation results for an override file.
type Report struct {
	Path   string
	Key    string
	Errors []error
}

// IsValid reports whether the validation passed.
func (r *Report) IsValid() bool {
	return r != nil && len(r.Errors) == 0
}

// ValidateSpec checks an override against the built-in contracts.
func ValidateSpec(spec *Spec) []error {
	var errs []error
	if spec == nil {
		return []error{fmt.Errorf("agent spec is nil")}
	}
	if spec.Agency.Type != "agent" {
		errs = append(errs, fmt.Errorf("agency.type must be agent"))
	}
	if spec.Agency.Version != 1 {
		errs = append(errs, fmt.Errorf("agency.version must be 1"))
	}
	if spec.Key == "" {
		errs = append(errs, fmt.Errorf("key is required"))
	} else if _, ok := ContractForKey(spec.Key); !ok {
		errs = append(errs, fmt.Errorf("unknown key %q", spec.Key))
	}
	if strings.TrimSpace(spec.Role) == "" && strings.TrimSpace(spec.Goal) == "" && strings.TrimSpace(spec.Backstory) == "" {
		errs = append(errs, fmt.Errorf("at least one of role, goal or backstory is required"))
	}
	return errs
}

// ValidateFile reads and validates an override file.
func ValidateFile(path string) (*Report, error) {
	spec, err := readSpec(path)
	if err != nil {
		return nil, err
	}
	return &Report{Path: path, Key: spec.Key, Errors: ValidateSpec(spec)}, nil
}

func readSpec(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read agent file: %w", err)
	}
	var spec Spec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("parse agent file: %w", err)
	}
	spec.Key = strings.TrimSpace(spec.Key)
	return &spec, nil
}

// ApplyOverrides loads <key>.yaml files from dir onto the roster. A missing
// directory is not an error. It returns the keys that were overridden.
func (r *Roster) ApplyOverrides(dir string) ([]string, error) {
	var applied []string
	for _, key := range Keys {
		path := filepath.Join(dir, key+".yaml")
		spec, err := readSpec(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return applied, fmt.Errorf("agent: %s: %w", key, err)
		}
		if errs := ValidateSpec(spec); len(errs) > 0 {
			return applied, fmt.Errorf("agent: %s: %w", path, errors.Join(errs...))
		}
		if spec.Key != key {
			return applied, fmt.Errorf("agent: %s declares key %q", path, spec.Key)
		}
		target, _ := r.ByKey(key)
		spec.applyTo(target)
		applied = append(applied, key)
	}
	return applied, nil
}

func (s *Spec) applyTo(a *Agent) {
	if role := strings.TrimSpace(s.Role); role != "" {
		a.Role = role
	}
	if goal := strings.TrimSpace(s.Goal); goal != "" {
		a.Goal = goal
	}
	if backstory := strings.TrimSpace(s.Backstory); backstory != "" {
		a.Backstory = backstory
	}
	if s.AllowDelegation != nil {
		a.AllowDelegation = *s.AllowDelegation
	}
	if s.Verbose != nil {
		a.Verbose = *s.Verbose
	}
}
