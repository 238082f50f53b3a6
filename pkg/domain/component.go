package domain

// ComponentMeta describes what a component type allows in the editor.
type ComponentMeta struct {
	Name            string         `json:"name" yaml:"name"`
	Label           string         `json:"label" yaml:"label"`
	AcceptsChildren bool           `json:"accepts_children" yaml:"accepts_children"`
	ContentEditable bool           `json:"content_editable" yaml:"content_editable"`
	InlineOnly      bool           `json:"inline_only" yaml:"inline_only"`
	Listed          bool           `json:"listed" yaml:"listed"`
	DefaultProps    map[string]any `json:"default_props,omitempty" yaml:"default_props,omitempty"`
	// PropTypes declares prop types as schema type strings, e.g. {"href": "string"}.
	PropTypes map[string]string `json:"prop_types,omitempty" yaml:"prop_types,omitempty"`
}
