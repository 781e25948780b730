// Package preflight provides readiness checks for the external services,
// binaries, and filesystem paths the pipeline depends on.
//
// The daemon runs RunAll once at startup and logs the results; a failed check
// is a warning, not a fatal error, because a job may never reach the stage
// that needs the broken piece. The CLI status command uses CheckSystemDeps to
// render the dependency table.
package preflight
