package main

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"markercut/internal/batch"
	"markercut/internal/config"
	"markercut/internal/ledger"
	"markercut/internal/logging"
	"markercut/internal/metrics"
)

type commandContext struct {
	configFlag *string

	configOnce   sync.Once
	config       *config.Config
	configPath   string
	configExists bool
	configErr    error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error
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
		cfg, resolved, exists, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config, c.configPath, c.configExists = cfg, resolved, exists
	})
	return c.config, c.configErr
}

func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		c.logger, c.loggerErr = logging.NewFromConfig(cfg)
	})
	return c.logger, c.loggerErr
}

func (c *commandContext) withLedger(ctx context.Context, fn func(*ledger.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := ledger.Open(ctx, cfg.LedgerPath())
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

// withRunner wires the production pipeline around the ledger and a fresh
// metrics registry for one batch command.
func (c *commandContext) withRunner(cmd *cobra.Command, fn func(context.Context, *batch.Runner) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	return c.withLedger(ctx, func(store *ledger.Store) error {
		m := metrics.New()
		parts, err := batch.BuildComponents(cfg, logger, m)
		if err != nil {
			return err
		}
		runner, err := batch.New(cfg, parts,
			batch.WithLedger(store),
			batch.WithMetrics(m),
			batch.WithLogger(logger),
			batch.WithProgressOutput(cmd.ErrOrStderr()),
		)
		if err != nil {
			return err
		}
		return fn(ctx, runner)
	})
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
