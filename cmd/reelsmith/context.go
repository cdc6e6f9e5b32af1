package main

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"reelsmith/internal/config"
	"reelsmith/internal/logging"
	"reelsmith/internal/pipeline"
	"reelsmith/internal/store"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// withStore opens the store for one command invocation.
func (c *commandContext) withStore(fn func(cfg *config.Config, st *store.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	st, err := store.Open(cfg)
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(cfg, st)
}

// withPipeline builds the full provider-backed pipeline. Commands that
// execute stages or redos go through here; read-only commands use withStore.
func (c *commandContext) withPipeline(fn func(cfg *config.Config, st *store.Store, p *pipeline.Pipeline) error) error {
	return c.withStore(func(cfg *config.Config, st *store.Store) error {
		logger, err := logging.NewFromConfig(cfg)
		if err != nil {
			return err
		}
		p, err := pipeline.FromConfig(cfg, st, logger)
		if err != nil {
			return err
		}
		return fn(cfg, st, p)
	})
}

// withLocalPipeline builds a pipeline without provider clients, for
// operations that only touch the store and notifications. These must work
// even when pricing and API keys are not configured yet.
func (c *commandContext) withLocalPipeline(fn func(cfg *config.Config, st *store.Store, p *pipeline.Pipeline) error) error {
	return c.withStore(func(cfg *config.Config, st *store.Store) error {
		logger, err := logging.NewFromConfig(cfg)
		if err != nil {
			return err
		}
		return fn(cfg, st, pipeline.New(cfg, st, pipeline.Deps{Logger: logger}))
	})
}

// withRunLock serializes stage execution across processes sharing one
// workspace. Provider calls are expensive; two runs against the same output
// would double-bill and race the gate machine.
func (c *commandContext) withRunLock(cfg *config.Config, fn func() error) error {
	lock := flock.New(filepath.Join(cfg.Paths.LogDir, "reelsmith.lock"))
	ok, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("another reelsmith run is already in progress")
	}
	defer func() {
		if unlockErr := lock.Unlock(); unlockErr != nil {
			slog.Warn("failed to release run lock", "error", unlockErr)
		}
	}()
	return fn()
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for current := cmd; current != nil; current = current.Parent() {
		if current.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
