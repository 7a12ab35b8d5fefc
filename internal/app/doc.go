// Package app wires the orchestrator together: it owns the logger, the
// loaded configuration, the invocation environment, and the pipeline, and
// exposes one method per named output (package, app, checks, devshell,
// formatter).
package app
