package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	WorkspaceDir string `toml:"workspace_dir"`
	LibraryDir   string `toml:"library_dir"`
	LogDir       string `toml:"log_dir"`
}

// Provider holds connection settings for one external generative provider.
type Provider struct {
	BaseURL        string `toml:"base_url"`
	APIKey         string `toml:"api_key"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Providers groups the five generative provider endpoints.
type Providers struct {
	Script Provider `toml:"script"`
	Speech Provider `toml:"speech"`
	Image  Provider `toml:"image"`
	Motion Provider `toml:"motion"`
	Music  Provider `toml:"music"`
}

// Narration contains duration-fitting controller settings.
type Narration struct {
	// WordsPerMinute is the assumed speech rate at unit speed.
	WordsPerMinute int `toml:"words_per_minute"`
	// ToleranceSeconds is how far a measured clip may miss its budget.
	ToleranceSeconds float64 `toml:"tolerance_seconds"`
	MinRate          float64 `toml:"min_rate"`
	MaxRate          float64 `toml:"max_rate"`
	MaxAttempts      int     `toml:"max_attempts"`
}

// Pipeline contains stage executor settings.
type Pipeline struct {
	// BatchSize bounds concurrent provider calls within a stage.
	BatchSize int `toml:"batch_size"`
	// SegmentedMusicMinScenes switches background music to per-segment
	// tracks when an output has at least this many scenes. Zero disables
	// segmented music.
	SegmentedMusicMinScenes int `toml:"segmented_music_min_scenes"`
	// MusicSegmentScenes is the number of scenes covered by each segment track.
	MusicSegmentScenes int `toml:"music_segment_scenes"`
}

// Render contains media toolkit settings.
type Render struct {
	FFmpegBinary  string  `toml:"ffmpeg_binary"`
	FFprobeBinary string  `toml:"ffprobe_binary"`
	FrameRate     int     `toml:"frame_rate"`
	MusicGain     float64 `toml:"music_gain"`
	EventGain     float64 `toml:"event_gain"`
	// BlobMaxBytes is the largest payload stored inline in the database;
	// larger media is written to the workspace and stored by path.
	BlobMaxBytes int64 `toml:"blob_max_bytes"`
}

// Notifications contains ntfy push notification settings.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Review         bool   `toml:"review"`
	Render         bool   `toml:"render"`
	Errors         bool   `toml:"errors"`
}

// Logging contains log output configuration.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// PriceRule maps one (provider, model, resource) triple to a unit price.
type PriceRule struct {
	Provider string  `toml:"provider"`
	Model    string  `toml:"model"`
	Resource string  `toml:"resource"`
	UnitUSD  float64 `toml:"unit_usd"`
}

// Config encapsulates all configuration values for reelsmith.
//
// Configuration sections by subsystem:
//   - Paths: workspace, library, and log directories
//   - Providers: generative provider endpoints (script, speech, image, motion, music)
//   - Narration: duration-fitting speech rate bounds and tolerance
//   - Pipeline: batch fan-out and background music segmentation
//   - Render: ffmpeg/ffprobe binaries, gains, storage thresholds
//   - Notifications: ntfy push notification settings
//   - Logging: log format and level
//   - Pricing: unit prices for cost pre-flight and ledger entries
type Config struct {
	Paths         Paths         `toml:"paths"`
	Providers     Providers     `toml:"providers"`
	Narration     Narration     `toml:"narration"`
	Pipeline      Pipeline      `toml:"pipeline"`
	Render        Render        `toml:"render"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
	Pricing       []PriceRule   `toml:"pricing"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/reelsmith/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized. Provider API keys may
// also come from the environment (optionally seeded from a .env file), which
// takes precedence over the file so keys stay out of committed configs.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	_ = godotenv.Load()
	cfg.applyEnvironment()

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("reelsmith.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

func (c *Config) applyEnvironment() {
	envKeys := []struct {
		name   string
		target *string
	}{
		{"REELSMITH_SCRIPT_API_KEY", &c.Providers.Script.APIKey},
		{"REELSMITH_SPEECH_API_KEY", &c.Providers.Speech.APIKey},
		{"REELSMITH_IMAGE_API_KEY", &c.Providers.Image.APIKey},
		{"REELSMITH_MOTION_API_KEY", &c.Providers.Motion.APIKey},
		{"REELSMITH_MUSIC_API_KEY", &c.Providers.Music.APIKey},
	}
	for _, key := range envKeys {
		if value := strings.TrimSpace(os.Getenv(key.name)); value != "" {
			*key.target = value
		}
	}
}

// EnsureDirectories creates required directories for pipeline operation.
// LibraryDir is created on a best-effort basis so stage runs can proceed
// when external storage is temporarily unavailable.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.WorkspaceDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.LibraryDir) != "" {
		_ = os.MkdirAll(c.Paths.LibraryDir, 0o755)
	}
	return nil
}

// FFmpegBinary returns the ffmpeg executable used for rendering.
func (c *Config) FFmpegBinary() string {
	if strings.TrimSpace(c.Render.FFmpegBinary) == "" {
		return "ffmpeg"
	}
	return c.Render.FFmpegBinary
}

// FFprobeBinary returns the ffprobe executable used for duration probing.
func (c *Config) FFprobeBinary() string {
	if strings.TrimSpace(c.Render.FFprobeBinary) == "" {
		return "ffprobe"
	}
	return c.Render.FFprobeBinary
}

// SampleConfig returns the embedded sample configuration file contents.
func SampleConfig() string {
	return sampleConfig
}

// WriteSample writes the sample configuration to the given path, refusing to
// overwrite an existing file.
func WriteSample(path string) error {
	expanded, err := expandPath(path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(expanded); err == nil {
		return fmt.Errorf("config already exists at %s", expanded)
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(expanded, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}
