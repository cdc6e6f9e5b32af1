// Package stage defines the fixed production stage sequence and gate
// statuses. The sequence is data, not control flow: the store's gate
// transitions and the pipeline's precondition checks both walk Sequence()
// so the cascading-reset invariant lives in exactly one place.
package stage
