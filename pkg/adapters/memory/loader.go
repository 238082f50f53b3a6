package memory

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/aretw0/arbor/pkg/domain"
)

// Loader implements ports.TemplateSource using an in-memory map.
type Loader struct {
	templates map[string][]byte
}

// NewLoader creates a new Loader with the provided raw data (JSON strings).
func NewLoader(data map[string]string) *Loader {
	templates := make(map[string][]byte)
	for k, v := range data {
		templates[k] = []byte(v)
	}
	return &Loader{
		templates: templates,
	}
}

// NewFromTrees creates a Loader from instance trees.
// This handles serialization automatically, improving DX for tests.
func NewFromTrees(trees map[string]*domain.Instance) (*Loader, error) {
	data := make(map[string][]byte)
	for name, root := range trees {
		if root == nil {
			return nil, fmt.Errorf("template %s has no root", name)
		}
		bytes, err := json.Marshal(domain.Flatten(root))
		if err != nil {
			return nil, fmt.Errorf("failed to marshal template %s: %w", name, err)
		}
		data[name] = bytes
	}
	return &Loader{templates: data}, nil
}

// GetTemplate retrieves the raw template by name.
func (l *Loader) GetTemplate(name string) ([]byte, error) {
	content, ok := l.templates[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrTemplateNotFound, name)
	}
	return content, nil
}

// ListTemplates returns all available template names.
func (l *Loader) ListTemplates() ([]string, error) {
	keys := make([]string, 0, len(l.templates))
	for k := range l.templates {
		keys = append(keys, k)
	}
	sort.Strings(keys) // Deterministic order
	return keys, nil
}
