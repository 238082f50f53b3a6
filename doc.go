/*
Package arbor is the editing core of a visual page builder.

A page is a tree of component instances. Arbor keeps that tree in a versioned
store, turns raw pointer and keyboard input into drag gestures, resolves each
gesture to a drop target, and exchanges every change as typed messages between
the authoring surface and the rendering surface.

# Concept

The Designer owns one document. Edits arrive either as direct calls
(Insert, Delete, Reparent, SetProps...) or as intent messages on the bus
(insertInstance, deleteInstance, reparentInstance...). Both paths validate
before they commit, bump the document version by one, and broadcast a
treeChanged message carrying a JSON merge patch, so a canvas replica
(canvas.Mirror) can follow the authoring tree across a process boundary.

# Usage

	d, err := arbor.New(arbor.WithRectSource(rects))
	if err != nil {
		log.Fatal(err)
	}
	defer d.Close()

	if _, err := d.Populate(pageJSON); err != nil {
		log.Fatal(err)
	}

	// Arrow keys reorder the focused instance among its siblings.
	d.HandleInput(pointer.KeyEvent{Key: "ArrowDown", Target: "hero"})
	_ = d.Flush(ctx)

A Workspace keeps one designer per open document and persists every commit
through a ports.DocumentStore (memory, file or redis), optionally wrapped by
the persistence middleware (encryption at rest, prop masking).
*/
package arbor
