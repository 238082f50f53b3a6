// Package http exposes a Workspace over HTTP: document CRUD, intent
// submission, and a server-sent event stream of each document's bus.
package http
