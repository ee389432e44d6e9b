package workflow

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestParseChoice(t *testing.T) {
	tests := []struct {
		raw  string
		want Phase
		ok   bool
	}{
		{raw: "1", want: PhaseProduct, ok: true},
		{raw: " 2\n", want: PhaseArchitecture, ok: true},
		{raw: "3", want: PhaseSecurity, ok: true},
		{raw: "4", want: PhaseQA, ok: true},
		{raw: "0"},
		{raw: "5"},
		{raw: ""},
		{raw: "two"},
		{raw: "+1"},
		{raw: "01"},
		{raw: "004"},
		{raw: "+2"},
		{raw: "1 2"},
	}
	for _, test := range tests {
		got, ok := ParseChoice(test.raw)
		if got != test.want || ok != test.ok {
			t.Fatalf("ParseChoice(%q) = %v, %v; want %v, %v", test.raw, got, ok, test.want, test.ok)
		}
	}
}

func TestRequiresInInjectionOrder(t *testing.T) {
	cases := map[Phase][]string{
		PhaseProduct:      nil,
		PhaseArchitecture: {FilePRD},
		PhaseSecurity:     {FilePRD, FileTechSpec},
		PhaseQA:           {FilePRD, FileTechSpec, FileSecurityReview},
	}
	for phase, want := range cases {
		if got := phase.Requires(); !reflect.DeepEqual(got, want) {
			t.Fatalf("%s.Requires() = %v, want %v", phase, got, want)
		}
	}
}

func TestDetectPhaseRequiresContiguousCheckpoints(t *testing.T) {
	dir := t.TempDir()
	if got := DetectPhase(dir); got != PhaseProduct {
		t.Fatalf("empty dir: got %s", got)
	}

	touch(t, filepath.Join(dir, FileTechSpec))
	if got := DetectPhase(dir); got != PhaseProduct {
		t.Fatalf("tech spec alone must not unlock later phases, got %s", got)
	}

	touch(t, filepath.Join(dir, FilePRD))
	if got := DetectPhase(dir); got != PhaseSecurity {
		t.Fatalf("prd+tech: got %s", got)
	}

	touch(t, filepath.Join(dir, FileSecurityReview))
	touch(t, filepath.Join(dir, FileQAPlan))
	if got := DetectPhase(dir); got != PhaseComplete {
		t.Fatalf("all checkpoints: got %s", got)
	}
}

func TestChoiceAndOutputFile(t *testing.T) {
	if PhaseQA.Choice() != "4" || PhaseComplete.Choice() != "" {
		t.Fatalf("unexpected choices %q %q", PhaseQA.Choice(), PhaseComplete.Choice())
	}
	if PhaseSecurity.OutputFile() != FileSecurityReview {
		t.Fatalf("security output = %s", PhaseSecurity.OutputFile())
	}
	if PhaseQA.Next() != PhaseComplete || PhaseComplete.Next() != PhaseComplete {
		t.Fatalf("unexpected Next chain")
	}
}

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("doc"), 0o644); err != nil {
		t.Fatalf("touch %s: %v", path, err)
	}
}
