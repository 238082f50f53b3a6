package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/tree"
)

// Source names where a tree comes from. Exactly one field is set.
type Source struct {
	Document string
	Template string
	File     string
}

// LoadTree reads and validates the tree named by src without opening a designer.
// It returns the root and the stored version (zero for templates and files).
func (st *Stack) LoadTree(ctx context.Context, src Source) (*domain.Instance, uint64, error) {
	s := tree.New(tree.WithRegistry(st.Workspace.Registry()), tree.WithLogger(st.logger))
	switch {
	case src.Template != "":
		data, err := st.Templates.GetTemplate(src.Template)
		if err != nil {
			return nil, 0, err
		}
		root, err := s.Populate(data)
		if err != nil {
			return nil, 0, fmt.Errorf("template %q: %w", src.Template, err)
		}
		return root, 0, nil
	case src.File != "":
		data, err := os.ReadFile(src.File)
		if err != nil {
			return nil, 0, err
		}
		root, err := s.Populate(data)
		if err != nil {
			return nil, 0, fmt.Errorf("%s: %w", src.File, err)
		}
		return root, 0, nil
	case src.Document != "":
		doc, err := st.Workspace.Manager().Load(ctx, src.Document)
		if err != nil {
			return nil, 0, err
		}
		root, err := s.PopulateTree(doc.Tree)
		if err != nil {
			return nil, 0, fmt.Errorf("document %q: %w", src.Document, err)
		}
		return root, doc.Version, nil
	}
	return nil, 0, errors.New("no document, template or file given")
}

// ValidateTemplates populates every template and returns the failures by name.
func (st *Stack) ValidateTemplates(ctx context.Context) (names []string, failures map[string]error, err error) {
	names, err = st.Templates.ListTemplates()
	if err != nil {
		return nil, nil, err
	}
	sort.Strings(names)
	failures = make(map[string]error)
	for _, name := range names {
		if _, _, err := st.LoadTree(ctx, Source{Template: name}); err != nil {
			failures[name] = err
		}
	}
	return names, failures, nil
}
