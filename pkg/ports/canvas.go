package ports

import "github.com/aretw0/arbor/pkg/domain"

// RectSource reports the rendered bounds of instances on the canvas.
type RectSource interface {
	// RectOf returns the bounds of an instance, or false if it is not rendered.
	RectOf(id string) (domain.Rect, bool)
}

// ComponentRegistry answers capability questions about component types.
type ComponentRegistry interface {
	Lookup(component string) (domain.ComponentMeta, bool)
	CanAcceptChild(component string) bool
	IsListed(component string) bool
	IsContentEditable(component string) bool
}
