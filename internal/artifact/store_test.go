package artifact

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kingrea/agency/internal/workflow"
)

func fixedClock() time.Time {
	return time.Date(2026, 10, 17, 9, 30, 0, 0, time.UTC)
}

func TestWriteThenReadStripsProvenance(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, WithClock(fixedClock))
	body := "# PRD\n\n- feature one\n"
	meta := Metadata{Agent: "product-manager", Model: "gemini-3-flash-preview", RunID: "run-1"}
	if err := store.Write(PRD, []byte(body), meta); err != nil {
		t.Fatalf("write: %v", err)
	}

	raw, err := os.ReadFile(filepath.Join(dir, workflow.FilePRD))
	if err != nil {
		t.Fatalf("read raw: %v", err)
	}
	if !strings.HasPrefix(string(raw), "---\nagency:\n") {
		t.Fatalf("expected frontmatter, got %q", raw)
	}

	got, err := store.Read(PRD)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got != body {
		t.Fatalf("Read = %q, want %q", got, body)
	}

	result, err := store.Check(PRD)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if result.State != StateReady || result.Metadata == nil {
		t.Fatalf("unexpected check result %+v", result)
	}
	if result.Metadata.Phase != "PM" || result.Metadata.RunID != "run-1" {
		t.Fatalf("unexpected metadata %+v", result.Metadata)
	}
	if !result.Metadata.CreatedAt.Equal(fixedClock()) {
		t.Fatalf("created = %s", result.Metadata.CreatedAt)
	}
	if !strings.HasPrefix(result.Metadata.Checksum, "sha256:") {
		t.Fatalf("checksum missing: %q", result.Metadata.Checksum)
	}
}

func TestWriteWithoutProvenanceWritesPlainMarkdown(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, WithoutProvenance())
	body := "# Threat Model\n\nUse TLS everywhere.\n"
	if err := store.Write(SecurityReview, []byte(body), Metadata{Agent: "security-engineer"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	raw, err := os.ReadFile(filepath.Join(dir, workflow.FileSecurityReview))
	if err != nil {
		t.Fatalf("read raw: %v", err)
	}
	if string(raw) != body {
		t.Fatalf("file = %q, want %q", raw, body)
	}
	result, err := store.Check(SecurityReview)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if result.State != StateReady || result.Metadata != nil {
		t.Fatalf("plain file should be ready without metadata: %+v", result)
	}
	if got, err := store.Read(SecurityReview); err != nil || got != body {
		t.Fatalf("Read = %q, %v", got, err)
	}
}

func TestReadReturnsHandWrittenFilesVerbatim(t *testing.T) {
	dir := t.TempDir()
	content := "---\ntitle: my notes\n---\nPRD written by hand\n"
	if err := os.WriteFile(filepath.Join(dir, workflow.FilePRD), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	store := NewStore(dir)
	got, err := store.Read(PRD)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got != content {
		t.Fatalf("Read = %q, want verbatim %q", got, content)
	}
	result, err := store.Check(PRD)
	if err != nil || result.State != StateReady || result.Metadata != nil {
		t.Fatalf("check = %+v, %v", result, err)
	}
}

func TestReadMissingCheckpoint(t *testing.T) {
	store := NewStore(t.TempDir())
	_, err := store.Read(TechSpec)
	if !errors.Is(err, ErrMissingCheckpoint) {
		t.Fatalf("expected ErrMissingCheckpoint, got %v", err)
	}
	if !strings.Contains(err.Error(), workflow.FileTechSpec) {
		t.Fatalf("error should name the file: %v", err)
	}
	var missing *MissingError
	if !errors.As(err, &missing) || missing.File != workflow.FileTechSpec {
		t.Fatalf("expected *MissingError for %s, got %#v", workflow.FileTechSpec, err)
	}
	result, err := store.Check(TechSpec)
	if err != nil || result.State != StateMissing {
		t.Fatalf("check = %+v, %v", result, err)
	}
}

func TestCheckRejectsDirectories(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, workflow.FileQAPlan), 0o755); err != nil {
		t.Fatal(err)
	}
	result, err := NewStore(dir).Check(QAPlan)
	if err == nil || result.State != StateError {
		t.Fatalf("expected error state, got %+v", result)
	}
}

func TestLookup(t *testing.T) {
	for _, name := range []string{"prd", "PRD.md", "prd.md"} {
		if ref, ok := Lookup(name); !ok || ref.ID != PRD.ID {
			t.Fatalf("Lookup(%q) = %v, %v", name, ref, ok)
		}
	}
	if ref, ok := ForFile(workflow.FileSecurityReview); !ok || ref.ID != SecurityReview.ID {
		t.Fatalf("ForFile(security) = %v, %v", ref, ok)
	}
	if _, ok := Lookup("roadmap"); ok {
		t.Fatalf("unexpected lookup hit")
	}
}

func TestParseFrontMatterErrors(t *testing.T) {
	if _, _, err := ParseFrontMatter(nil); !errors.Is(err, ErrMissingFrontMatter) {
		t.Fatalf("nil: %v", err)
	}
	if _, _, err := ParseFrontMatter([]byte("---\nagency:\n  artifact: prd\n")); !errors.Is(err, ErrMalformedFrontMatter) {
		t.Fatalf("unterminated: %v", err)
	}
}
