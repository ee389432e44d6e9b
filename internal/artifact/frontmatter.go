package artifact

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	// ErrMissingFrontMatter indicates the document did not start with a YAML fence.
	ErrMissingFrontMatter = errors.New("artifact: missing frontmatter")
	// ErrMalformedFrontMatter indicates the YAML block could not be parsed.
	ErrMalformedFrontMatter = errors.New("artifact: malformed frontmatter")
)

// ParseFrontMatter extracts the provenance block and body from a document
// that starts with `---` YAML fences carrying an `agency:` key.
func ParseFrontMatter(content []byte) (Metadata, []byte, error) {
	if len(content) == 0 {
		return Metadata{}, nil, ErrMissingFrontMatter
	}
	normalized := normalizeNewlines(content)
	if !bytes.HasPrefix(normalized, []byte("---\n")) {
		return Metadata{}, nil, ErrMissingFrontMatter
	}
	rest := normalized[4:]
	parts := bytes.SplitN(rest, []byte("\n---\n"), 2)
	if len(parts) < 2 {
		return Metadata{}, nil, ErrMalformedFrontMatter
	}
	var envelope agencyEnvelope
	if err := yaml.Unmarshal(parts[0], &envelope); err != nil {
		return Metadata{}, nil, fmt.Errorf("%w: %v", ErrMalformedFrontMatter, err)
	}
	meta, err := envelope.toMetadata()
	if err != nil {
		return Metadata{}, nil, err
	}
	return meta, bytes.TrimPrefix(parts[1], []byte("\n")), nil
}

// WriteFrontMatter renders metadata + body with YAML fences.
func WriteFrontMatter(meta Metadata, body []byte) ([]byte, error) {
	if meta.ArtifactID == "" {
		return nil, fmt.Errorf("artifact: metadata missing artifact id")
	}
	envelope := agencyEnvelope{}
	envelope.fromMetadata(meta)
	data, err := yaml.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("artifact: encode frontmatter: %w", err)
	}
	var buf bytes.Buffer
	buf.WriteString("---\n")
	buf.Write(bytes.TrimRight(data, "\n"))
	buf.WriteString("\n---\n\n")
	buf.Write(body)
	return buf.Bytes(), nil
}

type agencyEnvelope struct {
	Agency agencyMetadata `yaml:"agency"`
}

type agencyMetadata struct {
	Artifact string   `yaml:"artifact"`
	Phase    string   `yaml:"phase,omitempty"`
	Agent    string   `yaml:"agent,omitempty"`
	Model    string   `yaml:"model,omitempty"`
	Run      string   `yaml:"run,omitempty"`
	Inputs   []string `yaml:"inputs,omitempty"`
	Created  string   `yaml:"created"`
	Checksum string   `yaml:"checksum,omitempty"`
}

func (e agencyEnvelope) toMetadata() (Metadata, error) {
	if e.Agency.Artifact == "" {
		return Metadata{}, ErrMalformedFrontMatter
	}
	created, err := parseTime(e.Agency.Created)
	if err != nil {
		return Metadata{}, fmt.Errorf("artifact: parse created timestamp: %w", err)
	}
	return Metadata{
		ArtifactID: e.Agency.Artifact,
		Phase:      e.Agency.Phase,
		Agent:      e.Agency.Agent,
		Model:      e.Agency.Model,
		RunID:      e.Agency.Run,
		Inputs:     append([]string{}, e.Agency.Inputs...),
		CreatedAt:  created,
		Checksum:   e.Agency.Checksum,
	}, nil
}

func (e *agencyEnvelope) fromMetadata(meta Metadata) {
	e.Agency.Artifact = meta.ArtifactID
	e.Agency.Phase = meta.Phase
	e.Agency.Agent = meta.Agent
	e.Agency.Model = meta.Model
	e.Agency.Run = meta.RunID
	e.Agency.Inputs = append([]string{}, meta.Inputs...)
	e.Agency.Created = meta.CreatedAt.UTC().Format(timeLayout)
	e.Agency.Checksum = meta.Checksum
}

const timeLayout = "2006-01-02T15:04:05Z07:00"

func parseTime(value string) (time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return time.Time{}, fmt.Errorf("artifact: empty created timestamp")
	}
	t, err := time.Parse(timeLayout, value)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

func normalizeNewlines(content []byte) []byte {
	return bytes.ReplaceAll(content, []byte("\r\n"), []byte("\n"))
}
