// Package logger wraps zap with a global sugared logger that travels through
// context.Context.
//
// Services derive scoped loggers with WithName and WithKV and log through the
// package-level helpers (Infof, WarnKV, ...). The level comes from
// the command line, the TIMESYNC_LOG_LEVEL environment variable or the YAML
// configuration, in that order.
package logger
