// Package preflight provides readiness checks for the directories,
// binaries, and provider endpoints a production run depends on.
//
// These checks run in two contexts:
//   - "reelsmith doctor" runs RunAll plus the system binary checks to
//     display overall health before an operator starts a run.
//   - Individual check functions (CheckDirectoryAccess, CheckScriptProvider)
//     back targeted diagnostics.
//
// Network checks are gated on their provider being configured -- an unset
// API key reports as a failed check, not a network error.
package preflight
