package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/arbor/pkg/domain"
)

// Outline renders an instance tree as a nested markdown list.
// The selected instance is shown in bold.
func Outline(root *domain.Instance, selected string) string {
	var sb strings.Builder
	if root == nil {
		sb.WriteString("_empty document_\n")
		return sb.String()
	}
	writeOutline(&sb, root, selected, 0)
	return sb.String()
}

func writeOutline(sb *strings.Builder, inst *domain.Instance, selected string, depth int) {
	indent := strings.Repeat("  ", depth)
	label := fmt.Sprintf("%s `%s`", inst.Component, inst.ID)
	if inst.ID == selected {
		label = "**" + label + "**"
	}
	if props := formatProps(inst.Props); props != "" {
		label += " " + props
	}
	fmt.Fprintf(sb, "%s- %s\n", indent, label)

	for _, c := range inst.Children {
		if c.Instance != nil {
			writeOutline(sb, c.Instance, selected, depth+1)
			continue
		}
		fmt.Fprintf(sb, "%s  - _%q_\n", indent, c.Text)
	}
}

func formatProps(props map[string]any) string {
	if len(props) == 0 {
		return ""
	}
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, props[k]))
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
