/*
Package domain contains the core models of the Arbor page builder.

It defines the instance tree that the designer edits, the geometry used to
target drops on the canvas, and the serialized form exchanged with storage and
with the rendering surface. This package is kept pure and free of I/O, following
Hexagonal Architecture principles.

# Key Entities

  - Instance: a component node with ordered children (instances or text leaves).
  - SerializedTree: the flat, id-indexed form used for persistence and diffs.
  - DropTarget: where a dragged instance would land (parent and index).
  - Document: a versioned, persisted tree.
*/
package domain
