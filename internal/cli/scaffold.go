package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/aretw0/arbor/pkg/dsl"
	"github.com/aretw0/loam"
	"github.com/aretw0/loam/pkg/core"
	"gopkg.in/yaml.v3"
)

// Scaffold writes the starter templates into dir as markdown files with the
// tree in the frontmatter, ready to be served by the loam template source.
// It returns the names written.
func Scaffold(ctx context.Context, dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	repo, err := loam.Init(dir, loam.WithVersioning(false))
	if err != nil {
		return nil, fmt.Errorf("failed to init loam: %w", err)
	}

	b := dsl.New()
	var names []string
	for _, s := range starters() {
		root, err := b.Template(s.name, s.root).Tree(s.name)
		if err != nil {
			return nil, err
		}
		// Round-trip through JSON so the frontmatter uses the nested wire form.
		raw, err := json.Marshal(root)
		if err != nil {
			return nil, err
		}
		var tree map[string]any
		if err := json.Unmarshal(raw, &tree); err != nil {
			return nil, err
		}
		front, err := yaml.Marshal(map[string]any{
			"id":    s.name,
			"title": s.title,
			"tree":  tree,
		})
		if err != nil {
			return nil, err
		}

		var content strings.Builder
		content.WriteString("---\n")
		content.Write(front)
		content.WriteString("---\n")
		content.WriteString(s.description)
		content.WriteString("\n")

		if err := repo.Save(ctx, core.Document{ID: s.name + ".md", Content: content.String()}); err != nil {
			return nil, fmt.Errorf("save %s: %w", s.name, err)
		}
		names = append(names, s.name)
	}
	return names, nil
}
