/*
Package session coordinates access to persisted documents.

Manager serializes load, save and delete per document id, optionally across
replicas through a distributed locker. Persister writes designer snapshots in
the background so editing never waits on storage; when a document changes
faster than it can be written, only the latest version is kept.
*/
package session
