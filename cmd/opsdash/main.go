package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"opsdash/internal/calendar"
	"opsdash/internal/clock"
	"opsdash/internal/config"
	"opsdash/internal/ics"
	appLog "opsdash/internal/log"
	"opsdash/internal/scheduler"
	"opsdash/internal/store"
	"opsdash/internal/weather"
	"opsdash/internal/web"
)

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath string
	listen     string
	calendar   string
}

func main() {
	appLog.Info("opsdash starting", "version", "0.1.0")

	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))

	// CLI --listen overrides config file listen if provided.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}

	loc, err := conf.Location()
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "timezone", conf.Timezone)
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", loc.String(),
		"horizon_days", conf.HorizonDays,
		"refresh", conf.RefreshCron,
		"data_dir", conf.DataDir,
		"subscription", conf.Calendar.URL != "",
	)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sysClock := clock.NewSystem()
	cal := calendar.NewService(sysClock, loc, conf.HorizonDays)

	st, err := store.Open(conf.StorePath(), sysClock)
	if err != nil {
		appLog.Error("failed to open store", err, "path", conf.StorePath())
		os.Exit(1)
	}

	// A calendar file given on the command line is loaded once at startup.
	if flags.calendar != "" {
		body, err := os.ReadFile(flags.calendar)
		if err != nil {
			appLog.Error("failed to read calendar file", err, "path", flags.calendar)
			os.Exit(1)
		}
		if _, err := cal.Load(body, "file:"+flags.calendar); err != nil {
			appLog.Error("calendar file rejected", err, "path", flags.calendar)
			os.Exit(1)
		}
	}

	deps := web.Deps{
		Calendar: cal,
		Store:    st,
		Weather:  weather.NewClient(conf.Weather.GeocodeURL, conf.Weather.ForecastURL),
	}

	if conf.Calendar.URL != "" {
		src := ics.Source{ID: conf.Calendar.ID, URL: conf.Calendar.URL}
		fetcher := ics.NewFetcher(conf.ICSCacheDir(), nil)
		sched, err := scheduler.New(conf.RefreshCron, loc, src, fetcher, cal)
		if err != nil {
			appLog.Error("failed to create refresh scheduler", err)
			os.Exit(1)
		}
		if err := sched.Start(ctx); err != nil {
			appLog.Error("failed to start refresh scheduler", err)
			os.Exit(1)
		}
		deps.Refresher = sched
	}

	srv := web.NewServer(conf, deps)
	if err := srv.Run(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		appLog.Error("http server failed", err)
		os.Exit(1)
	}

	appLog.Info("opsdash exiting")
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "./opsdash.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.StringVar(&cfg.calendar, "calendar", "", "Load this .ics file at startup")

	flag.Parse()

	return cfg
}
