// Package render assembles the final video: each scene's selected visual
// is conformed to its narration duration (stills looped, motion clips
// PTS-stretched), scene clips concatenate with stream copy, and music plus
// timed events mix under the narration truncated to the video's length.
package render
