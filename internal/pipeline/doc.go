// Package pipeline orchestrates the eleven production stages from outline
// through render. Every stage execution is gated: it refuses to start until
// all earlier stages carry a human approval, and its own result waits for
// review before the next stage can run. Provider calls fan out under a
// bounded batch size, with same-environment scenes serialized so each image
// can reference its predecessor.
package pipeline
