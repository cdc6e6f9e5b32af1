// Package motiongen animates still frames into short motion clips via an
// image-to-video provider, with optional start/end keyframe interpolation.
package motiongen
