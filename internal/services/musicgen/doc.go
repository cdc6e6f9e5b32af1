// Package musicgen composes background music, scene sound effects, and short
// timed event cues (stingers, risers, drops) through an HTTP audio provider.
package musicgen
