// Package logging provides structured logging using uber/zap.
//
// Production builds use JSON output; development builds use colored
// console output with stacktraces enabled. The level comes from the
// application config (SHELLHOST_LOG_LEVEL, SHELLHOST_LOG_DEV).
package logging
