// Package ffprobe wraps the ffprobe binary for measuring generated media:
// narration clip durations for the duration-fitting controller and stream
// dimensions for render conforming.
package ffprobe
