package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateProviders(); err != nil {
		return err
	}
	if err := c.validateNarration(); err != nil {
		return err
	}
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validateRender(); err != nil {
		return err
	}
	if err := c.validatePricing(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.WorkspaceDir) == "" {
		return errors.New("paths.workspace_dir must be set")
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return errors.New("paths.log_dir must be set")
	}
	return nil
}

func (c *Config) validateProviders() error {
	providers := []struct {
		name  string
		value Provider
	}{
		{"script", c.Providers.Script},
		{"speech", c.Providers.Speech},
		{"image", c.Providers.Image},
		{"motion", c.Providers.Motion},
		{"music", c.Providers.Music},
	}
	for _, provider := range providers {
		if provider.value.Model == "" {
			return fmt.Errorf("providers.%s.model must be set", provider.name)
		}
	}
	return nil
}

func (c *Config) validateNarration() error {
	if c.Narration.MinRate > c.Narration.MaxRate {
		return errors.New("narration.min_rate must not exceed narration.max_rate")
	}
	if c.Narration.MaxRate > 2.0 {
		return errors.New("narration.max_rate above 2.0 produces unnatural speech")
	}
	if c.Narration.MaxAttempts > 10 {
		return errors.New("narration.max_attempts must be 10 or fewer")
	}
	return nil
}

func (c *Config) validatePipeline() error {
	if c.Pipeline.BatchSize > 16 {
		return errors.New("pipeline.batch_size above 16 risks provider rate limits")
	}
	return nil
}

func (c *Config) validateRender() error {
	if c.Render.MusicGain < 0 || c.Render.MusicGain > 1 {
		return errors.New("render.music_gain must be between 0 and 1")
	}
	if c.Render.EventGain < 0 || c.Render.EventGain > 1 {
		return errors.New("render.event_gain must be between 0 and 1")
	}
	return nil
}

func (c *Config) validatePricing() error {
	seen := make(map[string]struct{}, len(c.Pricing))
	for i, rule := range c.Pricing {
		if strings.TrimSpace(rule.Provider) == "" || strings.TrimSpace(rule.Model) == "" || strings.TrimSpace(rule.Resource) == "" {
			return fmt.Errorf("pricing[%d]: provider, model, and resource must all be set", i)
		}
		if rule.UnitUSD < 0 {
			return fmt.Errorf("pricing[%d]: unit_usd must not be negative", i)
		}
		key := rule.Provider + "/" + rule.Model + "/" + rule.Resource
		if _, dup := seen[key]; dup {
			return fmt.Errorf("pricing[%d]: duplicate rule for %s", i, key)
		}
		seen[key] = struct{}{}
	}
	return nil
}
