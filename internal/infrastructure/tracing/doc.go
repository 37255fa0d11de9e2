// Package tracing provides lightweight request tracing: one span per
// API request or host RPC, collected asynchronously and logged. Trace
// ids propagate through X-Trace-ID / X-Span-ID headers and gRPC
// metadata on the execution host link.
package tracing
