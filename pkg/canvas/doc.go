// Package canvas holds the rendering surface's side of the bus: a Mirror of
// the authoring tree kept current by treeChanged messages, and RectTable,
// a plain rect source for layouts computed outside a browser.
package canvas
