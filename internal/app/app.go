// Package app assembles the configured components and runs the sweep either
// once or on the polling schedule.
package app

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"AdSweeper/internal/config"
	"AdSweeper/internal/infrastructure/feishu"
	"AdSweeper/internal/infrastructure/oceanengine"
	"AdSweeper/internal/ports"
	"AdSweeper/internal/usecase"
)

// Application owns the wired pipeline and its optional scheduler.
type Application struct {
	cfg      config.Config
	logger   *slog.Logger
	pipeline *usecase.Pipeline
}

// New wires the application from validated configuration.
func New(cfg config.Config, logger *slog.Logger) *Application {
	platform := oceanengine.NewClient(oceanengine.Config{
		BaseURL:           cfg.Platform.ResolvedBaseURL(),
		Timeout:           cfg.Platform.Timeout(),
		RequestsPerSecond: cfg.Platform.RequestsPerSecond,
		FetchConcurrency:  cfg.Sweep.FetchConcurrency,
	}, logger)

	var directory ports.AccountDirectory
	if cfg.Directory.Configured() {
		directory = feishu.NewDirectory(feishu.Config{
			AppID:     cfg.Directory.AppID,
			AppSecret: cfg.Directory.AppSecret,
			AppToken:  cfg.Directory.AppToken,
			TableID:   cfg.Directory.TableID,
			BaseURL:   cfg.Directory.BaseURL,
			Timeout:   cfg.Platform.Timeout(),
		}, logger)
	}

	executor := usecase.NewExecutor(usecase.ExecutorDeps{
		Platform:     platform,
		PreviewDelay: cfg.Sweep.PreviewDelay(),
		DeleteDelay:  cfg.Sweep.DeleteDelay(),
		DryRun:       cfg.Sweep.DryRun,
		Logger:       logger,
	})

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Directory: directory,
		Platform:  platform,
		Credentials: usecase.CredentialResolver{
			Cookies:  cfg.Credentials.Cookies,
			Subjects: cfg.Credentials.Subjects,
			Default:  cfg.Credentials.Default,
		},
		Executor:       executor,
		StaticAccounts: cfg.DomainAccounts(),
		AliasWhitelist: cfg.Sweep.AliasWhitelist,
		WindowStart:    cfg.Sweep.WindowStart(),
		WindowEnd:      cfg.Sweep.WindowEnd(),
		Logger:         logger,
	})

	return &Application{cfg: cfg, logger: logger, pipeline: pipeline}
}

// Run executes a single sweep when no interval is configured, otherwise
// drives the scheduler until a shutdown signal arrives.
func (a *Application) Run(ctx context.Context) error {
	if a.cfg.Scheduler.IntervalMinutes == 0 {
		a.logger.Info("single-run mode")
		return a.pipeline.Sweep(ctx, usecase.NewEpoch())
	}

	scheduler := usecase.NewPollScheduler(a.cfg.Scheduler.Interval(), a.pipeline, a.logger)
	scheduler.Start(ctx)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	sig := <-stop

	a.logger.Info("shutdown signal received", "signal", sig.String())
	scheduler.Stop()
	return nil
}
