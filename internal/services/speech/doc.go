// Package speech synthesizes narration audio with word-level timing through
// an HTTP text-to-speech provider. The provider's duration estimate is
// surfaced as NominalDuration only; the duration-fitting controller probes
// the rendered audio for the authoritative length.
package speech
