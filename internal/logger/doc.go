// Package logger wraps zap with a global sugared logger writing to stderr,
// context helpers (ToContext/FromContext/WithName/WithKV) and level parsing.
//
// Packaging steps take a context and log through it, so every message carries
// the command name and the release being built.
package logger
