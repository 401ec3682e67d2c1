package main

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/spf13/cobra"

	"github.com/iliyamo/seatpack-sync/internal/app"
	"github.com/iliyamo/seatpack-sync/internal/config"
	"github.com/iliyamo/seatpack-sync/internal/logging"
)

// commandContext builds the application lazily so commands that need no
// database (token) never touch one.
type commandContext struct {
	logLevel *string

	once sync.Once
	app  *app.App
	err  error
}

func newCommandContext(logLevel *string) *commandContext {
	return &commandContext{logLevel: logLevel}
}

func (c *commandContext) ensureApp(ctx context.Context) (*app.App, error) {
	c.once.Do(func() {
		cfg := config.Load()
		if c.logLevel != nil && *c.logLevel != "" {
			cfg.LogLevel = *c.logLevel
		}
		logger, err := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
		if err != nil {
			c.err = err
			return
		}
		c.app, c.err = app.New(ctx, cfg, logger)
	})
	return c.app, c.err
}

func (c *commandContext) close() {
	if c.app != nil {
		c.app.Close()
	}
}

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
