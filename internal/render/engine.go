package render

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"reelsmith/internal/config"
	"reelsmith/internal/fileutil"
	"reelsmith/internal/logging"
	"reelsmith/internal/media/ffprobe"
	"reelsmith/internal/services"
	"reelsmith/internal/store"
)

const stageName = "render"

// Runner executes an external encoder invocation. Tests substitute a fake
// to assert on the planned commands without touching ffmpeg.
type Runner func(ctx context.Context, binary string, args []string) error

// ExecRunner runs commands with os/exec, surfacing trimmed stderr on
// failure since that is where ffmpeg explains itself.
func ExecRunner(ctx context.Context, binary string, args []string) error {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: %s", err, tailOf(stderr.String()))
	}
	return nil
}

func tailOf(output string) string {
	output = strings.TrimSpace(output)
	const max = 800
	if len(output) > max {
		output = "..." + output[len(output)-max:]
	}
	return output
}

// Engine assembles the final video from per-scene assets.
type Engine struct {
	cfg    config.Render
	runner Runner
	logger *slog.Logger
}

// NewEngine builds a render engine. A nil runner gets the real executor.
func NewEngine(cfg config.Render, runner Runner, logger *slog.Logger) *Engine {
	if runner == nil {
		runner = ExecRunner
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Engine{cfg: cfg, runner: runner, logger: logging.NewComponentLogger(logger, "render")}
}

// Result describes the assembled file.
type Result struct {
	Path       string
	DurationMS int64
	// SkippedScenes counts scenes left out for missing narration.
	SkippedScenes int
}

// Assemble renders every scene to an intermediate clip, concatenates them
// in narrative order with stream copy, and mixes music and events under
// the narration. Scenes without narration are skipped with a warning; any
// encoder failure aborts the whole render.
func (e *Engine) Assemble(ctx context.Context, input Input) (Result, error) {
	if len(input.Scenes) == 0 {
		return Result{}, services.Wrap(services.ErrValidation, stageName, "assemble", "no scenes to render", nil)
	}
	if strings.TrimSpace(input.OutPath) == "" {
		return Result{}, services.Wrap(services.ErrValidation, stageName, "assemble", "missing output path", nil)
	}
	width, height, err := Resolution(input.AspectRatio)
	if err != nil {
		return Result{}, services.Wrap(services.ErrValidation, stageName, "assemble", err.Error(), nil)
	}
	frameRate := input.FrameRate
	if frameRate <= 0 {
		frameRate = 30
	}

	workDir, err := os.MkdirTemp("", "reelsmith-render-*")
	if err != nil {
		return Result{}, services.Wrap(services.ErrExternalTool, stageName, "assemble", "create work dir", err)
	}
	defer os.RemoveAll(workDir)

	var (
		result     Result
		clipPaths  []string
		durationMS int64
	)
	for _, clip := range input.Scenes {
		if clip.Narration.IsZero() || clip.NarrationMS <= 0 {
			e.logger.Warn("scene missing narration, skipping", logging.Int("scene", clip.Order))
			result.SkippedScenes++
			continue
		}
		visualPath, err := materialize(workDir, fmt.Sprintf("visual-%03d", clip.Order), clip.Visual, clip.Motion)
		if err != nil {
			return Result{}, services.Wrap(services.ErrExternalTool, stageName, "assemble", "stage visual", err)
		}
		narrationPath, err := materialize(workDir, fmt.Sprintf("narr-%03d", clip.Order), clip.Narration, false)
		if err != nil {
			return Result{}, services.Wrap(services.ErrExternalTool, stageName, "assemble", "stage narration", err)
		}
		outPath := filepath.Join(workDir, fmt.Sprintf("scene-%03d.mp4", clip.Order))
		args := sceneArgs(clip, visualPath, narrationPath, outPath, width, height, frameRate)
		if err := e.runner(ctx, e.cfg.FFmpegBinary, args); err != nil {
			return Result{}, services.Wrap(services.ErrExternalTool, stageName, "scene clip",
				fmt.Sprintf("scene %d", clip.Order), err)
		}
		clipPaths = append(clipPaths, outPath)
		durationMS += clip.NarrationMS
	}
	if len(clipPaths) == 0 {
		return Result{}, services.Wrap(services.ErrValidation, stageName, "assemble", "no renderable scenes", nil)
	}

	concatPath := filepath.Join(workDir, "concat.mp4")
	listPath := filepath.Join(workDir, "clips.txt")
	if err := os.WriteFile(listPath, []byte(concatList(clipPaths)), 0o644); err != nil {
		return Result{}, services.Wrap(services.ErrExternalTool, stageName, "assemble", "write concat list", err)
	}
	if err := e.runner(ctx, e.cfg.FFmpegBinary, concatArgs(listPath, concatPath)); err != nil {
		return Result{}, services.Wrap(services.ErrExternalTool, stageName, "concat", "", err)
	}

	finalSource := concatPath
	if len(input.Music)+len(input.Events) > 0 {
		mixed := filepath.Join(workDir, "mixed.mp4")
		trackPaths := make([]string, 0, len(input.Music)+len(input.Events))
		for i, track := range append(append([]AudioMix{}, input.Music...), input.Events...) {
			path, err := materialize(workDir, fmt.Sprintf("track-%03d", i), track.Media, false)
			if err != nil {
				return Result{}, services.Wrap(services.ErrExternalTool, stageName, "assemble", "stage audio track", err)
			}
			trackPaths = append(trackPaths, path)
		}
		if err := e.runner(ctx, e.cfg.FFmpegBinary, mixArgs(concatPath, input.Music, input.Events, trackPaths, mixed)); err != nil {
			return Result{}, services.Wrap(services.ErrExternalTool, stageName, "audio mix", "", err)
		}
		finalSource = mixed
	}

	if err := os.MkdirAll(filepath.Dir(input.OutPath), 0o755); err != nil {
		return Result{}, services.Wrap(services.ErrExternalTool, stageName, "assemble", "create output dir", err)
	}
	if err := fileutil.MoveFile(finalSource, input.OutPath); err != nil {
		return Result{}, services.Wrap(services.ErrExternalTool, stageName, "assemble", "finalize output", err)
	}

	result.Path = input.OutPath
	result.DurationMS = durationMS
	if probed, err := ffprobe.Inspect(ctx, e.cfg.FFprobeBinary, input.OutPath); err == nil {
		if ms := probed.DurationMS(); ms > 0 {
			result.DurationMS = ms
		}
	}
	e.logger.Info("render complete",
		logging.String(logging.FieldOutputID, input.OutputID),
		logging.String("path", result.Path),
		logging.Int64("duration_ms", result.DurationMS),
		logging.Int("skipped_scenes", result.SkippedScenes))
	return result, nil
}

// materialize resolves hybrid media to an on-disk path the encoder can
// read, spilling blobs into the work dir.
func materialize(workDir, name string, media store.StoredMedia, video bool) (string, error) {
	if media.Path != "" {
		return media.Path, nil
	}
	if len(media.Blob) == 0 {
		return "", fmt.Errorf("media %s: empty", name)
	}
	ext := ".bin"
	if video {
		ext = ".mp4"
	} else if strings.HasPrefix(name, "narr") || strings.HasPrefix(name, "track") {
		ext = ".mp3"
	} else if strings.HasPrefix(name, "visual") {
		ext = ".png"
	}
	path := filepath.Join(workDir, name+ext)
	if err := os.WriteFile(path, media.Blob, 0o644); err != nil {
		return "", fmt.Errorf("media %s: %w", name, err)
	}
	return path, nil
}

