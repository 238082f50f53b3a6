package ports

// TemplateSource provides named starting trees for new documents.
// A template is a serialized tree in either flat or nested JSON form,
// as accepted by tree.Store.Populate.
type TemplateSource interface {
	// GetTemplate returns the raw template.
	// Returns domain.ErrTemplateNotFound if the name is unknown.
	GetTemplate(name string) ([]byte, error)

	// ListTemplates returns the template names in sorted order.
	ListTemplates() ([]string, error)
}
