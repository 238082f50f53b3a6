// Package bus is the typed publish/subscribe channel between the authoring
// surface and the canvas.
//
// The set of message types is closed: every Type maps to exactly one payload
// struct, and Publish rejects anything else. Delivery is asynchronous. Each
// subscriber owns a FIFO mailbox drained by its own goroutine, so a handler
// never runs on the publisher's stack and sees messages in publish order.
//
// A Bridge couples a Bus to a ports.Transport so two processes can share one
// logical channel.
package bus
