// Package drag turns normalized pointer gestures into drop targets and,
// on a deliberate release, into exactly one tree mutation.
//
// The Engine is a pointer.Handler. It reads the tree through Tree, live
// layout through ports.RectSource and component capabilities through
// ports.ComponentRegistry. It never mutates the tree itself: a drop is
// handed to a Committer.
package drag
