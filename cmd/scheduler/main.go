// Command scheduler fires the daily birthday sweep and the periodic sync
// fan-outs on cron schedules.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	cron "gopkg.in/robfig/cron.v2"

	"github.com/cloudbday/cloudbday/internal/app"
	"github.com/cloudbday/cloudbday/internal/config"
	"github.com/cloudbday/cloudbday/internal/observability/logger"
)

// job is one scheduled fan-out.
type job struct {
	name string
	spec string
	run  func(ctx context.Context) error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger.InitLogger(logger.Config{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: cfg.Observability.ServiceName + "-scheduler",
	})

	once := len(os.Args) > 1 && os.Args[1] == "once"
	if err := run(cfg, once); err != nil {
		slog.Error("scheduler failed", logger.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, once bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	jobs := []job{
		{name: "birthdays", spec: cfg.Schedule.Birthdays, run: func(ctx context.Context) error {
			_, err := a.Notifier.Sweep(ctx, time.Now())
			return err
		}},
		{name: "directory_sync", spec: cfg.Schedule.DirectorySync, run: func(ctx context.Context) error {
			_, err := a.Directory.ScheduleAll(ctx)
			return err
		}},
		{name: "calendar_sync", spec: cfg.Schedule.CalendarSync, run: func(ctx context.Context) error {
			_, err := a.Calendar.ScheduleAll(ctx)
			return err
		}},
	}

	// "once" runs every job immediately, for one-shot invocations from
	// an external cron.
	if once {
		g, gctx := errgroup.WithContext(ctx)
		for _, j := range jobs {
			g.Go(func() error {
				if err := j.run(gctx); err != nil {
					return fmt.Errorf("%s: %w", j.name, err)
				}
				return nil
			})
		}
		return g.Wait()
	}

	c := cron.New()
	for _, j := range jobs {
		if j.spec == "" {
			continue
		}
		spec := withTimeZone(j.spec, cfg.Schedule.TimeZone)
		if _, err := c.AddFunc(spec, func() { fire(ctx, j) }); err != nil {
			return fmt.Errorf("schedule %s %q: %w", j.name, spec, err)
		}
		slog.Info("job scheduled", logger.Operation(j.name), slog.String("spec", spec))
	}

	c.Start()
	<-ctx.Done()
	c.Stop()
	slog.Info("scheduler stopped")
	return nil
}

func fire(ctx context.Context, j job) {
	start := time.Now()
	if err := j.run(ctx); err != nil {
		slog.Error("scheduled job failed", logger.Operation(j.name), logger.Error(err))
		return
	}
	slog.Info("scheduled job finished", logger.Operation(j.name), logger.Duration(time.Since(start).Milliseconds()))
}

// withTimeZone prefixes spec with the cron.v2 TZ= directive.
func withTimeZone(spec, tz string) string {
	if tz == "" || tz == "UTC" {
		return spec
	}
	return "TZ=" + tz + " " + spec
}
