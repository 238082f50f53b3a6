/*
Package dsl provides a Go DSL for programmatically constructing instance trees.

It lets callers describe page templates with a type-safe, fluent builder
instead of hand-written JSON. This is useful for seeding documents, unit
tests and generated layouts.

Example usage:

	b := dsl.New()

	b.Template("landing",
		dsl.Node("Body").ID("root").Children(
			dsl.Node("Heading").Prop("tag", "h1").Text("Welcome"),
			dsl.Node("Box").Children(
				dsl.Node("Paragraph").Text("Build pages by dragging components."),
				dsl.Node("Button").Text("Start"),
			),
		),
	)

	// The result is a ports.TemplateSource
	loader, err := b.Build()
	// ... pass loader to arbor.WithTemplates(...)

Instances without an explicit ID get one derived from their position
("root-1-0" is the first child of the second child of "root").
*/
package dsl
