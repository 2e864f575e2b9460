// Package observability provides structured logging and tracing for the
// router.
//
// Loggers are zap based and carry the chi request ID when derived from a
// request context. Tracing exports spans over OTLP gRPC when enabled and
// falls back to the global no-op provider otherwise.
package observability
