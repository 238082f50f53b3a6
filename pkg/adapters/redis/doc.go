// Package redis provides Redis-backed adapters: a document store, a
// distributed locker for multi-replica servers, and a pub/sub transport for
// bridging a bus between processes.
package redis
