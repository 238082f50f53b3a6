// Package loam serves page templates from a Loam repository of markdown,
// YAML or JSON files.
package loam

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/loam"
	"github.com/mitchellh/mapstructure"
)

// Loader adapts a Loam repository to ports.TemplateSource.
type Loader struct {
	Repo *loam.TypedRepository[TemplateMetadata]
}

// New creates a new Loam adapter.
func New(repo *loam.TypedRepository[TemplateMetadata]) *Loader {
	return &Loader{
		Repo: repo,
	}
}

// Open initializes a read-only Loam repository at dir and wraps it.
func Open(dir string) (*Loader, error) {
	absPath, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}
	repo, err := loam.Init(absPath,
		loam.WithStrict(true),
		loam.WithReadOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize loam: %w", err)
	}
	return New(loam.NewTypedRepository[TemplateMetadata](repo)), nil
}

// GetTemplate returns the template's tree in nested JSON form.
// Nodes without an id get one derived from the template name and their path.
func (l *Loader) GetTemplate(name string) ([]byte, error) {
	ctx := context.Background()

	doc, err := l.Repo.Get(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", domain.ErrTemplateNotFound, name, err)
	}
	if len(doc.Data.Tree) == 0 {
		return nil, fmt.Errorf("%w: template %q has no tree", domain.ErrMalformedTree, name)
	}

	root, err := decodeNode(doc.Data.Tree, templateID(doc.Data.ID, doc.ID))
	if err != nil {
		return nil, fmt.Errorf("template %q: %w", name, err)
	}

	data, err := json.Marshal(root)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal template: %w", err)
	}
	return data, nil
}

// decodeNode converts a raw node to an instance. path seeds the generated id.
func decodeNode(raw any, path string) (*domain.Instance, error) {
	var node templateNode
	if err := mapstructure.Decode(raw, &node); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrMalformedTree, path, err)
	}
	if node.Component == "" {
		return nil, fmt.Errorf("%w: %s: missing component", domain.ErrMalformedTree, path)
	}
	id := node.ID
	if id == "" {
		id = path
	}

	inst := domain.New(id, node.Component)
	inst.Props = node.Props
	for i, c := range node.Children {
		switch v := c.(type) {
		case string:
			inst.Children = append(inst.Children, domain.TextChild(v))
		case json.Number:
			inst.Children = append(inst.Children, domain.TextChild(v.String()))
		default:
			child, err := decodeNode(v, path+"-"+strconv.Itoa(i))
			if err != nil {
				return nil, err
			}
			inst.Children = append(inst.Children, domain.InstanceChild(child))
		}
	}
	return inst, nil
}

// ListTemplates lists template names in sorted order.
func (l *Loader) ListTemplates() ([]string, error) {
	ctx := context.Background()
	docs, err := l.Repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loam list failed: %w", err)
	}

	seen := make(map[string]string)
	names := make([]string, 0, len(docs))
	for _, doc := range docs {
		name := templateID(doc.Data.ID, doc.ID)
		if existing, ok := seen[name]; ok {
			return nil, fmt.Errorf("collision detected: template '%s' is defined in both '%s' and '%s'", name, existing, doc.ID)
		}
		seen[name] = doc.ID
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Describe returns the title and description of a template.
func (l *Loader) Describe(name string) (title, description string, err error) {
	doc, err := l.Repo.Get(context.Background(), name)
	if err != nil {
		return "", "", fmt.Errorf("%w: %q: %v", domain.ErrTemplateNotFound, name, err)
	}
	description = doc.Data.Description
	if description == "" {
		description = strings.TrimSpace(doc.Content)
	}
	return doc.Data.Title, description, nil
}

// Watch emits the name of each template file that changes.
func (l *Loader) Watch(ctx context.Context) (<-chan string, error) {
	events, err := l.Repo.Watch(ctx, "**/*.{md,json,yaml,yml}")
	if err != nil {
		return nil, fmt.Errorf("failed to start loam watcher: %w", err)
	}

	ch := make(chan string, 1)
	go func() {
		defer close(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-events:
				if !ok {
					return
				}
				select {
				case ch <- trimExtension(evt.ID):
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return ch, nil
}

func templateID(metaID, docID string) string {
	if metaID != "" {
		return trimExtension(metaID)
	}
	return trimExtension(docID)
}

func trimExtension(id string) string {
	ext := filepath.Ext(id)
	if ext != "" {
		return filepath.ToSlash(strings.TrimSuffix(id, ext))
	}
	return filepath.ToSlash(id)
}
