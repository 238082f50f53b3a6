package loam

// TemplateMetadata is the frontmatter (or top-level JSON) of a template file.
type TemplateMetadata struct {
	ID          string `json:"id" mapstructure:"id"`
	Title       string `json:"title" mapstructure:"title"`
	Description string `json:"description" mapstructure:"description"`

	// Tree is the nested instance tree. Children are strings (text) or nodes.
	Tree map[string]any `json:"tree" mapstructure:"tree"`
}

// templateNode is one decoded node of TemplateMetadata.Tree.
type templateNode struct {
	ID        string         `mapstructure:"id"`
	Component string         `mapstructure:"component"`
	Props     map[string]any `mapstructure:"props"`
	Children  []any          `mapstructure:"children"`
}
