// Package middleware wraps a DocumentStore with storage-side behavior such
// as encryption at rest and masking of sensitive props.
package middleware

import "github.com/aretw0/arbor/pkg/ports"

// Middleware allows wrapping a DocumentStore to add behavior.
type Middleware func(ports.DocumentStore) ports.DocumentStore

// Chain wraps store so that the first middleware sees calls first.
func Chain(store ports.DocumentStore, mws ...Middleware) ports.DocumentStore {
	for i := len(mws) - 1; i >= 0; i-- {
		store = mws[i](store)
	}
	return store
}
