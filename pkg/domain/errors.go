package domain

import "errors"

var (
	// ErrNotFound is returned when an instance id is not present in the tree.
	ErrNotFound = errors.New("instance not found")

	// ErrInvalidTarget is returned when a mutation would break the tree:
	// a missing parent, a cycle, a duplicate id, or a parent that cannot hold children.
	ErrInvalidTarget = errors.New("invalid target")

	// ErrMalformedTree is returned when populating from serialized data that is not a valid tree.
	ErrMalformedTree = errors.New("malformed tree")

	// ErrUnknownComponentType is returned when the registry does not know a component.
	ErrUnknownComponentType = errors.New("unknown component type")

	// ErrInvalidProps is returned when props do not match the component's declared prop types.
	ErrInvalidProps = errors.New("invalid props")

	// ErrDocumentNotFound is returned when a document id cannot be found in the store.
	ErrDocumentNotFound = errors.New("document not found")

	// ErrDocumentExists is returned when creating a document whose id is taken.
	ErrDocumentExists = errors.New("document already exists")

	// ErrTemplateNotFound is returned when a template source has no template by that name.
	ErrTemplateNotFound = errors.New("template not found")
)
