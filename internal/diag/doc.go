// Package diag defines the diagnostic model shared by the IR core, the
// driver and the CLI.
//
// Builders fail with *Error, which carries a Code from one of four ranges:
// SEM (name resolution, typing, control flow), MOD (module registry and
// imports), BCK (backend verification and execution) and PRJ (manifest,
// files, import graph). The orchestrator turns errors into Diagnostic records
// through a Reporter, usually a BagReporter, and renders the Bag with
// internal/diagfmt.
package diag
