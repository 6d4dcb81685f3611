package database

import (
	"fmt"
	"strings"

	"github.com/ksred/linkdesk/internal/models"
	"gopkg.in/yaml.v3"
)

// Manifest orders patch identifiers around the model sync step
type Manifest struct {
	PreModelSync  []string `yaml:"pre_model_sync"`
	PostModelSync []string `yaml:"post_model_sync"`
}

// ParseManifest decodes a patches.yaml document and rejects duplicate lines
func ParseManifest(data []byte) (Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("parse patch manifest: %w", err)
	}

	seen := make(map[string]bool)
	clean := func(lines []string) ([]string, error) {
		out := make([]string, 0, len(lines))
		for _, line := range lines {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if models.PatchKey(line) == "" {
				return nil, fmt.Errorf("patch manifest line %q has no identifier", line)
			}
			if seen[line] {
				return nil, fmt.Errorf("patch %q listed twice", line)
			}
			seen[line] = true
			out = append(out, line)
		}
		return out, nil
	}

	var err error
	if m.PreModelSync, err = clean(m.PreModelSync); err != nil {
		return Manifest{}, err
	}
	if m.PostModelSync, err = clean(m.PostModelSync); err != nil {
		return Manifest{}, err
	}
	return m, nil
}

// All returns every line, pre-sync patches first
func (m Manifest) All() []string {
	out := make([]string, 0, len(m.PreModelSync)+len(m.PostModelSync))
	out = append(out, m.PreModelSync...)
	return append(out, m.PostModelSync...)
}
