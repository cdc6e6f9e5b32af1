// Package services defines the shared error taxonomy, context carriers, and
// cost descriptor used by the generative provider adapters in its
// subpackages.
//
// Errors are classified by wrapping sentinel markers (ErrTransient,
// ErrRestricted, ErrConfiguration, ...) so callers branch with errors.Is
// instead of string matching. Subpackages implement one HTTP client per
// provider kind: scriptgen, speech, imagegen, motiongen, musicgen.
package services
