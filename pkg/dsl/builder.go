package dsl

import (
	"fmt"
	"sort"

	"github.com/aretw0/arbor/pkg/adapters/memory"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/aretw0/arbor/pkg/registry"
	"github.com/aretw0/arbor/pkg/schema"
)

// Builder collects named templates.
type Builder struct {
	registry  ports.ComponentRegistry
	templates map[string]*NodeBuilder
}

// Option configures the Builder.
type Option func(*Builder)

// WithRegistry validates components against r instead of registry.Default().
func WithRegistry(r ports.ComponentRegistry) Option {
	return func(b *Builder) {
		b.registry = r
	}
}

// New creates a new template builder.
func New(opts ...Option) *Builder {
	b := &Builder{
		registry:  registry.Default(),
		templates: make(map[string]*NodeBuilder),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Template registers root under name, replacing any previous definition.
func (b *Builder) Template(name string, root *NodeBuilder) *Builder {
	b.templates[name] = root
	return b
}

// Tree builds and validates the template name.
func (b *Builder) Tree(name string) (*domain.Instance, error) {
	root, ok := b.templates[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrTemplateNotFound, name)
	}
	inst := root.Build("root")
	if err := b.validate(inst); err != nil {
		return nil, fmt.Errorf("template %s: %w", name, err)
	}
	return inst, nil
}

func (b *Builder) validate(root *domain.Instance) error {
	seen := make(map[string]bool)
	var dup string
	root.Walk(func(inst, _ *domain.Instance) bool {
		if seen[inst.ID] && dup == "" {
			dup = inst.ID
		}
		seen[inst.ID] = true
		return true
	})
	if dup != "" {
		return fmt.Errorf("%w: duplicate id %q", domain.ErrMalformedTree, dup)
	}

	known := func(component string) bool {
		_, ok := b.registry.Lookup(component)
		return ok
	}
	if err := schema.ValidateTree(domain.Flatten(root), known); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrMalformedTree, err)
	}

	var err error
	root.Walk(func(inst, _ *domain.Instance) bool {
		if len(inst.Children) > 0 && !b.registry.CanAcceptChild(inst.Component) {
			err = fmt.Errorf("%w: %s %q cannot accept children", domain.ErrInvalidTarget, inst.Component, inst.ID)
		}
		return err == nil
	})
	return err
}

// Build compiles every template into a memory Loader.
func (b *Builder) Build() (*memory.Loader, error) {
	names := make([]string, 0, len(b.templates))
	for name := range b.templates {
		names = append(names, name)
	}
	sort.Strings(names)

	trees := make(map[string]*domain.Instance, len(names))
	for _, name := range names {
		inst, err := b.Tree(name)
		if err != nil {
			return nil, err
		}
		trees[name] = inst
	}

	loader, err := memory.NewFromTrees(trees)
	if err != nil {
		return nil, fmt.Errorf("failed to build memory loader: %w", err)
	}
	return loader, nil
}
