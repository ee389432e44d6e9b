package artifact

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// Store manages checkpoint IO rooted at the output directory.
type Store struct {
	dir   string
	now   func() time.Time
	plain bool
}

// StoreOption customizes a Store during construction.
type StoreOption func(*Store)

// WithClock overrides the clock used for metadata timestamps.
func WithClock(clock func() time.Time) StoreOption {
	return func(s *Store) {
		s.now = clock
	}
}

// WithoutProvenance makes Write emit the document body alone, without the
// frontmatter header.
func WithoutProvenance() StoreOption {
	return func(s *Store) {
		s.plain = true
	}
}

// NewStore builds a store for an output directory.
func NewStore(dir string, opts ...StoreOption) *Store {
	store := &Store{
		dir: dir,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// Dir returns the output directory.
func (s *Store) Dir() string {
	return s.dir
}

// Path resolves the on-disk location of a checkpoint.
func (s *Store) Path(ref Ref) string {
	return filepath.Join(s.dir, ref.FileName)
}

// Check inspects the artifact on disk and returns its status and metadata.
func (s *Store) Check(ref Ref) (CheckResult, error) {
	if err := ref.Validate(); err != nil {
		return CheckResult{Ref: ref, State: StateError, Err: err}, err
	}
	path := s.Path(ref)
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return CheckResult{Ref: ref, Path: path, State: StateMissing}, nil
		}
		return CheckResult{Ref: ref, Path: path, State: StateError, Err: err}, err
	}
	if info.IsDir() {
		err := fmt.Errorf("artifact: expected file got directory at %s", path)
		return CheckResult{Ref: ref, Path: path, State: StateError, Err: err}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return CheckResult{Ref: ref, Path: path, State: StateError, Err: err}, err
	}
	result := CheckResult{Ref: ref, Path: path, State: StateReady}
	if meta, _, metaErr := ParseFrontMatter(data); metaErr == nil && meta.ArtifactID == ref.ID {
		result.Metadata = &meta
	}
	return result, nil
}

// Read returns the checkpoint text. Provenance frontmatter written by Write
// is stripped; any other content is returned verbatim. A missing file yields
// a *MissingError.
func (s *Store) Read(ref Ref) (string, error) {
	path := s.Path(ref)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", &MissingError{File: ref.FileName}
		}
		return "", fmt.Errorf("artifact: read %s: %w", ref.FileName, err)
	}
	if meta, body, err := ParseFrontMatter(data); err == nil && meta.ArtifactID == ref.ID {
		return string(body), nil
	}
	return string(data), nil
}

// Write persists the document body with provenance frontmatter, or as plain
// markdown when the store was built WithoutProvenance. Metadata is validated
// either way.
func (s *Store) Write(ref Ref, body []byte, meta Metadata) error {
	if err := ref.Validate(); err != nil {
		return err
	}
	if body == nil {
		body = []byte{}
	}
	prepared := meta.WithDefaults(ref, s.now())
	if err := prepared.ValidateFor(ref); err != nil {
		return err
	}
	content := body
	if !s.plain {
		prepared.Checksum = checksum(body)
		var err error
		if content, err = WriteFrontMatter(prepared, body); err != nil {
			return err
		}
	}
	path := s.Path(ref)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("artifact: ensure output dir: %w", err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return fmt.Errorf("artifact: write %s: %w", ref.FileName, err)
	}
	return nil
}

func checksum(body []byte) string {
	sum := sha256.Sum256(body)
	return "sha256:" + hex.EncodeToString(sum[:])
}
