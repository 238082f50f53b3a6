/*
Package observability turns designer lifecycle hooks into logs and metrics.

Metrics registers prometheus collectors for committed and rejected mutations
and for drag gestures, and exposes them through an http.Handler suitable for
mounting at /metrics. LoggingHooks emits the same events through slog.
Chain combines several hook sets into one.
*/
package observability
