package appstate

import (
	"encoding/json"
	"fmt"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// snapshotSchema validates the shape Snapshot marshals to; it exists so an
// external binding consuming ExportJSON's output can trust the document
// without depending on this package's Go types.
const snapshotSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["trust", "rules", "users", "groups"],
  "properties": {
    "trust": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["path", "size", "hash", "source"],
        "properties": {
          "path":   {"type": "string"},
          "size":   {"type": "integer", "minimum": 0},
          "hash":   {"type": "string"},
          "source": {"type": "string"}
        }
      }
    },
    "rules": {"type": "array", "items": {"type": "string"}},
    "users": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name", "uid", "gid", "home", "shell"],
        "properties": {
          "name":  {"type": "string"},
          "uid":   {"type": "integer"},
          "gid":   {"type": "integer"},
          "home":  {"type": "string"},
          "shell": {"type": "string"}
        }
      }
    },
    "groups": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name", "gid", "users"],
        "properties": {
          "name":  {"type": "string"},
          "gid":   {"type": "integer"},
          "users": {"type": "array", "items": {"type": "string"}}
        }
      }
    }
  }
}`

// TrustEntry is one flattened trust.DB record, keyed by path, in a form
// stable enough to export.
type TrustEntry struct {
	Path   string `json:"path" yaml:"path"`
	Size   uint64 `json:"size" yaml:"size"`
	Hash   string `json:"hash" yaml:"hash"`
	Source string `json:"source" yaml:"source"`
}

// Snapshot is the exportable view of a State: every component database
// flattened into plain, schema-checkable structures. Snapshot carries no
// behavior of its own; it exists solely for ExportJSON/ExportYAML.
type Snapshot struct {
	Trust  []TrustEntry `json:"trust" yaml:"trust"`
	Rules  []string     `json:"rules" yaml:"rules"`
	Users  []User       `json:"users" yaml:"users"`
	Groups []Group      `json:"groups" yaml:"groups"`
}

// ToSnapshot flattens s into its exportable form.
func (s *State) ToSnapshot() Snapshot {
	snap := Snapshot{
		Trust:  []TrustEntry{},
		Rules:  []string{},
		Users:  append([]User{}, s.Users...),
		Groups: append([]Group{}, s.Groups...),
	}
	for i := range snap.Groups {
		if snap.Groups[i].Users == nil {
			snap.Groups[i].Users = []string{}
		}
	}
	for _, path := range s.Trust.OrderedPaths() {
		m, _ := s.Trust.Get(path)
		snap.Trust = append(snap.Trust, TrustEntry{
			Path:   path,
			Size:   m.Trusted.Size,
			Hash:   m.Trusted.Hash,
			Source: m.Source.Kind.String(),
		})
	}
	for _, r := range s.Rules.Rules() {
		snap.Rules = append(snap.Rules, r.Text)
	}
	return snap
}

// ExportJSON marshals s to its canonical JSON form and validates the
// result against snapshotSchema before returning it, so a malformed
// snapshot is caught here rather than at a downstream consumer.
func ExportJSON(s *State) ([]byte, error) {
	snap := s.ToSnapshot()

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("appstate: marshal snapshot: %w", err)
	}

	schemaLoader := gojsonschema.NewStringLoader(snapshotSchema)
	docLoader := gojsonschema.NewGoLoader(snap)
	result, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		return nil, fmt.Errorf("appstate: validate snapshot: %w", err)
	}
	if !result.Valid() {
		return nil, fmt.Errorf("appstate: snapshot failed schema validation: %v", result.Errors())
	}

	return data, nil
}

// ExportYAML renders s as a human-readable diagnostics dump. Unlike
// ExportJSON it is not schema-validated; it is meant for a terminal or a
// bug report, not for machine consumption.
func ExportYAML(s *State) ([]byte, error) {
	data, err := yaml.Marshal(s.ToSnapshot())
	if err != nil {
		return nil, fmt.Errorf("appstate: marshal diagnostics: %w", err)
	}
	return data, nil
}
