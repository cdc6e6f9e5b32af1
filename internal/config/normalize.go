package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeProviders()
	c.normalizeNarration()
	c.normalizePipeline()
	c.normalizeRender()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.WorkspaceDir, err = expandPath(c.Paths.WorkspaceDir); err != nil {
		return fmt.Errorf("paths.workspace_dir: %w", err)
	}
	if c.Paths.LibraryDir, err = expandPath(c.Paths.LibraryDir); err != nil {
		return fmt.Errorf("paths.library_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeProviders() {
	for _, provider := range []*Provider{
		&c.Providers.Script,
		&c.Providers.Speech,
		&c.Providers.Image,
		&c.Providers.Motion,
		&c.Providers.Music,
	} {
		provider.BaseURL = strings.TrimSpace(provider.BaseURL)
		provider.APIKey = strings.TrimSpace(provider.APIKey)
		provider.Model = strings.TrimSpace(provider.Model)
		if provider.TimeoutSeconds <= 0 {
			provider.TimeoutSeconds = defaultTimeoutSeconds
		}
	}
}

func (c *Config) normalizeNarration() {
	if c.Narration.WordsPerMinute <= 0 {
		c.Narration.WordsPerMinute = defaultWordsPerMinute
	}
	if c.Narration.ToleranceSeconds <= 0 {
		c.Narration.ToleranceSeconds = defaultToleranceSeconds
	}
	if c.Narration.MinRate <= 0 {
		c.Narration.MinRate = defaultMinRate
	}
	if c.Narration.MaxRate <= 0 {
		c.Narration.MaxRate = defaultMaxRate
	}
	if c.Narration.MaxAttempts <= 0 {
		c.Narration.MaxAttempts = defaultMaxAttempts
	}
}

func (c *Config) normalizePipeline() {
	if c.Pipeline.BatchSize <= 0 {
		c.Pipeline.BatchSize = defaultBatchSize
	}
	if c.Pipeline.MusicSegmentScenes <= 0 {
		c.Pipeline.MusicSegmentScenes = defaultMusicSegmentScenes
	}
}

func (c *Config) normalizeRender() {
	c.Render.FFmpegBinary = strings.TrimSpace(c.Render.FFmpegBinary)
	c.Render.FFprobeBinary = strings.TrimSpace(c.Render.FFprobeBinary)
	if c.Render.FrameRate <= 0 {
		c.Render.FrameRate = defaultFrameRate
	}
	if c.Render.BlobMaxBytes <= 0 {
		c.Render.BlobMaxBytes = defaultBlobMaxBytes
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
