package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
)

// GraphOverlay contains designer state to highlight on the graph.
type GraphOverlay struct {
	Selected string
	Hovered  string
}

// GenerateMermaid produces a Mermaid flowchart of an instance tree.
// Shapes:
// - Root: ((Circle))
// - Container (accepts children): [Rectangle]
// - Leaf component: ([Stadium])
// - Text child: [/Parallelogram/]
// Edges are labeled with the child position.
func GenerateMermaid(root *domain.Instance, reg ports.ComponentRegistry, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")
	if root == nil {
		return sb.String()
	}

	root.Walk(func(inst, parent *domain.Instance) bool {
		safeID := sanitizeMermaidID(inst.ID)

		opener, closer := "([", "])"
		switch {
		case parent == nil:
			opener, closer = "((", "))"
		case reg == nil || reg.CanAcceptChild(inst.Component):
			opener, closer = "[", "]"
		}
		sb.WriteString(fmt.Sprintf("    %s%s\"%s <br/> %s\"%s\n", safeID, opener, escape(inst.Component), escape(inst.ID), closer))

		for i, c := range inst.Children {
			if c.Instance != nil {
				sb.WriteString(fmt.Sprintf("    %s -- %d --> %s\n", safeID, i, sanitizeMermaidID(c.Instance.ID)))
				continue
			}
			textID := fmt.Sprintf("%s_text_%d", safeID, i)
			sb.WriteString(fmt.Sprintf("    %s[/\"%s\"/]\n", textID, escape(abbreviate(c.Text, 24))))
			sb.WriteString(fmt.Sprintf("    %s -. %d .-> %s\n", safeID, i, textID))
		}
		return true
	})

	if overlay != nil && (overlay.Selected != "" || overlay.Hovered != "") {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for contrast on light and dark themes
		sb.WriteString("    classDef hovered fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef selected fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")
		if overlay.Hovered != "" && overlay.Hovered != overlay.Selected {
			sb.WriteString(fmt.Sprintf("    class %s hovered;\n", sanitizeMermaidID(overlay.Hovered)))
		}
		if overlay.Selected != "" {
			sb.WriteString(fmt.Sprintf("    class %s selected;\n", sanitizeMermaidID(overlay.Selected)))
		}
	}

	return sb.String()
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}

func escape(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

func abbreviate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
