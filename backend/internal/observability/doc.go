// Package observability provides structured logging for the auth service.
//
// Loggers are zap-based and carry the chi request id when one is present on
// the request context.
package observability
