package cmd

import (
	"github.com/templui/imagevault/internal/app"
	"github.com/templui/imagevault/internal/config"
	"github.com/templui/imagevault/internal/logger"
)

// withApp runs fn against a fully initialised app and closes it afterwards.
// The background sweeper is never started here.
func withApp(fn func(*app.App) error) error {
	cfg := config.Load()
	logger.Init(cfg.IsDevelopment(), cfg.SentryDSN)
	defer logger.Flush()

	a, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(a)
}
