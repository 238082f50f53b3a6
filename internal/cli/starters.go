package cli

import (
	"github.com/aretw0/arbor/pkg/adapters/memory"
	"github.com/aretw0/arbor/pkg/dsl"
)

type starter struct {
	name        string
	title       string
	description string
	root        *dsl.NodeBuilder
}

func starters() []starter {
	return []starter{
		{
			name:        "landing",
			title:       "Landing page",
			description: "A hero box with a heading, a paragraph and a call to action.",
			root: dsl.Node("Body").ID("root").Children(
				dsl.Node("Box").ID("hero").Style("padding", "48px").Children(
					dsl.Node("Heading").Text("Welcome"),
					dsl.Node("Paragraph").Text("Tell visitors what this page is about."),
					dsl.Node("Button").Text("Get started"),
				),
			),
		},
		{
			name:        "article",
			title:       "Article",
			description: "A title followed by a block of text.",
			root: dsl.Node("Body").ID("root").Children(
				dsl.Node("Heading").Prop("tag", "h1").Text("Title"),
				dsl.Node("TextBlock").Children(
					dsl.Node("Paragraph").Text("Opening paragraph."),
				),
			),
		},
		{
			name:        "contact",
			title:       "Contact form",
			description: "A form with an email field, a message field and a send button.",
			root: dsl.Node("Body").ID("root").Children(
				dsl.Node("Form").ID("contact").Children(
					dsl.Node("Input").Props(map[string]any{"name": "email", "type": "email"}),
					dsl.Node("Input").Props(map[string]any{"name": "message"}),
					dsl.Node("Button").Text("Send"),
				),
			),
		},
	}
}

// StarterTemplates returns the templates available when no template
// directory is configured.
func StarterTemplates() (*memory.Loader, error) {
	b := dsl.New()
	for _, s := range starters() {
		b.Template(s.name, s.root)
	}
	return b.Build()
}
