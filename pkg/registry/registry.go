package registry

import (
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/aretw0/arbor/pkg/domain"
	"gopkg.in/yaml.v3"
)

// RootComponent is the component type of every document root.
const RootComponent = "Body"

// Registry holds the component types known to the editor.
// Safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	metas map[string]domain.ComponentMeta
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		metas: make(map[string]domain.ComponentMeta),
	}
}

// Default returns a registry with the built-in components.
func Default() *Registry {
	r := New()
	for _, m := range builtins() {
		r.Register(m)
	}
	return r
}

// Register adds a component type.
// If a component with the same name exists, it is overwritten.
func (r *Registry) Register(meta domain.ComponentMeta) {
	if meta.Label == "" {
		meta.Label = meta.Name
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metas[meta.Name] = meta
}

// Lookup returns the metadata of a component type.
func (r *Registry) Lookup(component string) (domain.ComponentMeta, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.metas[component]
	if ok {
		m.DefaultProps = domain.CopyProps(m.DefaultProps)
	}
	return m, ok
}

// CanAcceptChild reports whether instances of component may hold child instances.
func (r *Registry) CanAcceptChild(component string) bool {
	m, ok := r.Lookup(component)
	return ok && m.AcceptsChildren
}

// IsListed reports whether the component appears in the component palette.
func (r *Registry) IsListed(component string) bool {
	m, ok := r.Lookup(component)
	return ok && m.Listed
}

// IsContentEditable reports whether the component text can be edited in place.
func (r *Registry) IsContentEditable(component string) bool {
	m, ok := r.Lookup(component)
	return ok && m.ContentEditable
}

// Listed returns the palette components sorted by name.
func (r *Registry) Listed() []domain.ComponentMeta {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.ComponentMeta, 0, len(r.metas))
	for _, m := range r.metas {
		if m.Listed {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// All returns every registered component sorted by name.
func (r *Registry) All() []domain.ComponentMeta {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.ComponentMeta, 0, len(r.metas))
	for _, m := range r.metas {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

type componentFile struct {
	Components []domain.ComponentMeta `yaml:"components"`
}

// LoadFile registers the components declared in a YAML file.
//
//	components:
//	  - name: Card
//	    label: Card
//	    accepts_children: true
//	    listed: true
func (r *Registry) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read component file: %w", err)
	}
	var f componentFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("failed to parse component file: %w", err)
	}
	for i, m := range f.Components {
		if m.Name == "" {
			return fmt.Errorf("component %d: missing name", i)
		}
		r.Register(m)
	}
	return nil
}
