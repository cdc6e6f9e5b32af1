// Package store persists productions in SQLite: outputs, their scenes and
// generated assets, the audio timeline, stage approval gates, render
// artifacts, and the cost ledger. All multi-row invariants (single selected
// asset per slot, cascading gate resets, scene replacement) are enforced
// inside transactions.
package store
