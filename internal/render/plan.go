package render

import (
	"fmt"
	"strings"

	"reelsmith/internal/store"
)

// SceneClip is one scene's contribution to the timeline: a selected visual
// asset plus its narration audio, which dictates the clip's exact length.
type SceneClip struct {
	Order  int
	Visual store.StoredMedia
	// Motion marks the visual as a video clip rather than a still image.
	Motion bool
	// NativeDurationMS is the motion clip's generated length, used to
	// derive the time-stretch factor. Ignored for stills.
	NativeDurationMS int64
	Narration        store.StoredMedia
	NarrationMS      int64
}

// AudioMix is one music or event track placed on the output timeline.
type AudioMix struct {
	Media store.StoredMedia
	// OffsetMS positions the track on the absolute timeline. Background
	// music segments and music events both use it; a whole-output track
	// sits at zero.
	OffsetMS int64
	Gain     float64
}

// Input is everything Assemble needs to produce the final file.
type Input struct {
	OutputID    string
	AspectRatio string
	FrameRate   int
	Scenes      []SceneClip
	Music       []AudioMix
	Events      []AudioMix
	// OutPath is where the final container is written.
	OutPath string
}

// Resolution maps an aspect ratio label to output dimensions.
func Resolution(aspectRatio string) (int, int, error) {
	switch strings.TrimSpace(aspectRatio) {
	case "9:16", "":
		return 1080, 1920, nil
	case "16:9":
		return 1920, 1080, nil
	case "1:1":
		return 1080, 1080, nil
	case "4:5":
		return 1080, 1350, nil
	}
	return 0, 0, fmt.Errorf("unsupported aspect ratio %q", aspectRatio)
}

// StretchFactor is the presentation-timestamp multiplier that conforms a
// motion clip's native length to the narration duration.
func StretchFactor(narrationMS, nativeMS int64) float64 {
	if nativeMS <= 0 || narrationMS <= 0 {
		return 1.0
	}
	return float64(narrationMS) / float64(nativeMS)
}

// conformFilter scales then center-crops to the target frame, so any source
// aspect fills the output without distortion.
func conformFilter(width, height, frameRate int) string {
	return fmt.Sprintf(
		"scale=%d:%d:force_original_aspect_ratio=increase,crop=%d:%d,setsar=1,fps=%d",
		width, height, width, height, frameRate)
}

// sceneArgs builds the ffmpeg invocation that renders one scene to an
// intermediate clip: stills loop for the narration duration, motion clips
// are PTS-stretched to it, and both are muxed with the narration audio.
func sceneArgs(clip SceneClip, visualPath, narrationPath, outPath string, width, height, frameRate int) []string {
	duration := fmt.Sprintf("%.3f", float64(clip.NarrationMS)/1000)
	args := []string{"-y", "-hide_banner", "-loglevel", "error"}
	if clip.Motion {
		filter := fmt.Sprintf("setpts=%.6f*PTS,%s",
			StretchFactor(clip.NarrationMS, clip.NativeDurationMS),
			conformFilter(width, height, frameRate))
		args = append(args,
			"-i", visualPath,
			"-i", narrationPath,
			"-filter:v", filter,
		)
	} else {
		args = append(args,
			"-loop", "1", "-framerate", fmt.Sprintf("%d", frameRate),
			"-i", visualPath,
			"-i", narrationPath,
			"-vf", conformFilter(width, height, frameRate),
		)
	}
	args = append(args,
		"-map", "0:v", "-map", "1:a",
		"-c:v", "libx264", "-preset", "medium", "-pix_fmt", "yuv420p",
		"-c:a", "aac", "-b:a", "192k", "-ar", "48000",
		"-t", duration,
		outPath,
	)
	return args
}

// concatArgs concatenates the intermediate scene clips without re-encoding;
// stream copy avoids cumulative drift.
func concatArgs(listPath, outPath string) []string {
	return []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-f", "concat", "-safe", "0",
		"-i", listPath,
		"-c", "copy",
		outPath,
	}
}

// concatList renders the concat demuxer's input file.
func concatList(paths []string) string {
	var b strings.Builder
	for _, path := range paths {
		fmt.Fprintf(&b, "file '%s'\n", strings.ReplaceAll(path, "'", `'\''`))
	}
	return b.String()
}

// mixArgs mixes music and event tracks under the concatenated narration.
// duration=first pins the mix to the video's length, so music never extends
// the output. The video stream is copied untouched.
func mixArgs(videoPath string, music, events []AudioMix, trackPaths []string, outPath string) []string {
	args := []string{"-y", "-hide_banner", "-loglevel", "error", "-i", videoPath}
	for _, path := range trackPaths {
		args = append(args, "-i", path)
	}

	var (
		filters []string
		labels  = []string{"[0:a]"}
	)
	index := 1
	for _, track := range append(append([]AudioMix{}, music...), events...) {
		label := fmt.Sprintf("[m%d]", index)
		chain := fmt.Sprintf("[%d:a]volume=%.3f", index, track.Gain)
		if track.OffsetMS > 0 {
			chain += fmt.Sprintf(",adelay=%d:all=1", track.OffsetMS)
		}
		filters = append(filters, chain+label)
		labels = append(labels, label)
		index++
	}
	filters = append(filters, fmt.Sprintf("%samix=inputs=%d:duration=first:normalize=0[aout]",
		strings.Join(labels, ""), len(labels)))

	args = append(args,
		"-filter_complex", strings.Join(filters, ";"),
		"-map", "0:v", "-map", "[aout]",
		"-c:v", "copy",
		"-c:a", "aac", "-b:a", "192k",
		outPath,
	)
	return args
}
