package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "time/tzdata"

	"chimbori.dev/calshot/capture"
	"chimbori.dev/calshot/conf"
	"chimbori.dev/calshot/core"
	"chimbori.dev/calshot/db"
	"chimbori.dev/calshot/publish"
	"chimbori.dev/calshot/slogdb"
	"chimbori.dev/calshot/snapshot"
	"github.com/lmittmann/tint"
	"golang.org/x/term"
)

func main() {
	configYmlFlag := flag.String("config", "calshot.yml", "path to calshot.yml")
	urlFlag := flag.String("url", "", "page to capture (overrides capture.url)")
	outFlag := flag.String("out", "", "output directory (overrides output.dir)")
	debugFlag := flag.Bool("debug", false, "log at DEBUG level & show browser errors")
	healthCheckFlag := flag.Duration("healthcheck", 0, "verify that latest.jpg is newer than the given age (e.g. 2h) & exit")
	flag.Parse()

	override := func(c *conf.AppConfig) {
		if *urlFlag != "" {
			c.Capture.Url = *urlFlag
		}
		if *outFlag != "" {
			c.Output.Dir = *outFlag
		}
		if *debugFlag {
			c.Debug = true
		}
	}

	// If run with “--healthcheck”, check the output of previous runs instead of capturing.
	if *healthCheckFlag > 0 {
		os.Exit(healthCheck(*configYmlFlag, override, *healthCheckFlag))
	}

	os.Exit(run(*configYmlFlag, override))
}

// run performs a single capture & returns the process exit status.
func run(configYml string, override func(*conf.AppConfig)) int {
	setupLogging(slog.LevelInfo)
	slog.Info(conf.AppName, "build-timestamp", conf.BuildTimestamp)

	var err error
	conf.Config, err = conf.ReadConfig(configYml, override)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Warn("Config file not found; using defaults", "config", configYml)
	} else if err != nil {
		slog.Error("Failed to parse config", tint.Err(err))
		return 1
	}

	// If debug mode was turned on in the config file, print logs at DEBUG or above.
	if conf.Config.Debug {
		setupLogging(slog.LevelDebug)
		conf.Config.Print()
		slog.Warn("Debug mode is enabled")
	}

	target, err := conf.Config.Target()
	if err != nil {
		slog.Error("Invalid image config", tint.Err(err))
		return 1
	}

	if conf.Config.Database.Url != "" {
		if err := db.Connect(context.Background(), conf.Config.Database.Url); err != nil {
			// The database only records logs; a capture can still proceed without it.
			slog.Error("Database error logging disabled", tint.Err(err))
		} else {
			defer db.Close()
			slog.SetDefault(slog.New(slogdb.NewDBHandler(slog.Default().Handler(), db.Pool)))
			slog.Info("Database error logging enabled")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := conf.Config.Capture
	browser := &capture.Browser{
		Url: c.Url,
		Viewport: capture.Viewport{
			Width:  c.Viewport.Width,
			Height: c.Viewport.Height,
			Scale:  c.Viewport.Scale,
		},
		Timeout:         c.Timeout,
		Settle:          *c.Settle,
		WaitNetworkIdle: *c.WaitNetworkIdle,
		UserAgent:       c.UserAgent,
		ExecPath:        c.ChromePath,
		Locator:         capture.SelectorLocator{Selectors: c.Selectors},
		Debug:           conf.Config.Debug,
	}

	res, err := snapshot.Run(ctx, browser, snapshot.Options{
		Dir:            conf.Config.Output.Dir,
		Slug:           conf.Config.Output.Slug,
		BudgetKB:       conf.Config.Image.BudgetKB,
		Target:         target,
		ArchiveMaxAge:  conf.Config.Output.Archive.MaxAge,
		ArchiveMaxSize: conf.Config.Output.Archive.MaxSizeBytes,
	})
	switch {
	case errors.Is(err, capture.ErrCaptureFailed):
		slog.Error("Failed to capture screenshot", tint.Err(err), "url", c.Url)
		return 1
	case errors.Is(err, publish.ErrIOFailed):
		slog.Error("Failed to write screenshot", tint.Err(err), "dir", conf.Config.Output.Dir)
		return 1
	case err != nil:
		slog.Error("Run failed", tint.Err(err))
		return 1
	}

	slog.Info("Done", "archive", res.ArchivePath, "latest", res.LatestPath, "quality", res.Image.Quality)
	return 0
}

// healthCheck verifies that a recent run has published latest.jpg. Only the verdict is printed to
// stdout, even in debug mode.
func healthCheck(configYml string, override func(*conf.AppConfig), maxAge time.Duration) int {
	c, _ := conf.ReadConfig(configYml, override)
	return core.VerifyHealthCheck(publish.LatestPath(c.Output.Dir), maxAge, time.Now())
}

// setupLogging installs a [tint] handler on stderr, without colors when stderr is not a terminal
// (e.g. under cron or CI).
func setupLogging(level slog.Level) {
	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: "2006-01-02 15:04:05.000",
		NoColor:    !term.IsTerminal(int(os.Stderr.Fd())),
	})))
}
