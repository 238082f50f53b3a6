package registry

import "github.com/aretw0/arbor/pkg/domain"

func builtins() []domain.ComponentMeta {
	return []domain.ComponentMeta{
		{Name: RootComponent, Label: "Body", AcceptsChildren: true},
		{Name: "Box", Label: "Box", AcceptsChildren: true, Listed: true},
		{Name: "Form", Label: "Form", AcceptsChildren: true, Listed: true},
		{Name: "Heading", Label: "Heading", AcceptsChildren: true, ContentEditable: true, Listed: true,
			DefaultProps: map[string]any{"tag": "h1"}},
		{Name: "Paragraph", Label: "Paragraph", AcceptsChildren: true, ContentEditable: true, Listed: true},
		{Name: "TextBlock", Label: "Text Block", AcceptsChildren: true, ContentEditable: true, Listed: true},
		{Name: "Link", Label: "Link", AcceptsChildren: true, ContentEditable: true, Listed: true,
			DefaultProps: map[string]any{"href": "#"}, PropTypes: map[string]string{"href": "string", "target": "string"}},
		{Name: "Button", Label: "Button", AcceptsChildren: true, ContentEditable: true, Listed: true},
		{Name: "Input", Label: "Input", Listed: true, PropTypes: map[string]string{"value": "string", "disabled": "bool"}},
		{Name: "Image", Label: "Image", Listed: true, PropTypes: map[string]string{"src": "string", "alt": "string"}},
		{Name: "Bold", Label: "Bold Text", AcceptsChildren: true, InlineOnly: true},
		{Name: "Italic", Label: "Italic Text", AcceptsChildren: true, InlineOnly: true},
		{Name: "Span", Label: "Span", AcceptsChildren: true, InlineOnly: true},
	}
}
