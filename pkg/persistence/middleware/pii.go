package middleware

import (
	"context"
	"regexp"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
)

// Mask replaces the value of a matching prop.
const Mask = "***"

type piiMiddleware struct {
	next     ports.DocumentStore
	patterns []*regexp.Regexp
}

// NewPIIMiddleware creates a middleware that masks prop values whose key
// matches one of the patterns before the document is written. Nested maps
// (e.g. "style") are walked. Masking is one-way: Load returns the masked value.
func NewPIIMiddleware(patternStrings []string) Middleware {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		patterns[i] = regexp.MustCompile(p)
	}
	return func(next ports.DocumentStore) ports.DocumentStore {
		return &piiMiddleware{next: next, patterns: patterns}
	}
}

func (m *piiMiddleware) Save(ctx context.Context, doc *domain.Document) error {
	// The caller's document is shared with live designers; mask a copy.
	cloned := doc.Clone()
	for id, inst := range cloned.Tree.Instances {
		if len(inst.Props) == 0 {
			continue
		}
		inst.Props = deepCopyMap(inst.Props)
		maskMap(inst.Props, m.patterns)
		cloned.Tree.Instances[id] = inst
	}
	return m.next.Save(ctx, cloned)
}

func (m *piiMiddleware) Load(ctx context.Context, id string) (*domain.Document, error) {
	return m.next.Load(ctx, id)
}

func (m *piiMiddleware) Delete(ctx context.Context, id string) error {
	return m.next.Delete(ctx, id)
}

func (m *piiMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

func deepCopyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if subMap, ok := v.(map[string]any); ok {
			out[k] = deepCopyMap(subMap)
		} else {
			out[k] = v
		}
	}
	return out
}

func maskMap(m map[string]any, patterns []*regexp.Regexp) {
	for k, v := range m {
		masked := false
		for _, p := range patterns {
			if p.MatchString(k) {
				m[k] = Mask
				masked = true
				break
			}
		}
		if masked {
			continue
		}
		if subMap, ok := v.(map[string]any); ok {
			maskMap(subMap, patterns)
		}
	}
}
