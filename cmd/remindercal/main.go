package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"remindercal/internal/api"
	"remindercal/internal/capture"
	"remindercal/internal/config"
	"remindercal/internal/ics"
	appLog "remindercal/internal/log"
	"remindercal/internal/metrics"
	"remindercal/internal/session"
	"remindercal/internal/web"
)

type flagConfig struct {
	configPath string
	listen     string
	once       bool
	exportPath string
	importSrc  string
	debug      bool
}

type app struct {
	cfg      *config.Config
	client   *api.Client
	metrics  *metrics.Metrics
	calendar *session.Calendar
	server   *web.Server
}

func main() {
	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	level := appLog.Level(strings.ToUpper(conf.Log.Level))
	if flags.debug {
		level = appLog.LevelDebug
	}
	if err := appLog.Configure(conf.Log.Format, level); err != nil {
		appLog.Error("failed to configure logger", err)
	}
	defer appLog.Sync()

	appLog.Info("remindercal starting", "version", "0.1.0")
	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"week_start", conf.WeekStart,
		"refresh", conf.RefreshCron,
		"horizon_days", conf.HorizonDays,
		"capture", conf.Capture.Enabled,
		"once", flags.once,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	a, err := newApp(conf)
	if err != nil {
		appLog.Error("failed to initialize", err)
		os.Exit(1)
	}

	if err := a.run(ctx, flags); err != nil && !errors.Is(err, context.Canceled) {
		appLog.Error("remindercal failed", err)
		appLog.Sync()
		os.Exit(1)
	}
	appLog.Info("remindercal exiting")
}

func newApp(cfg *config.Config) (*app, error) {
	client, err := api.New(api.Config{
		BaseURL:       cfg.Backend.BaseURL,
		Timeout:       cfg.Backend.Timeout,
		SessionCookie: cfg.Backend.SessionCookie,
		SessionValue:  cfg.Backend.SessionValue,
		LoginPath:     cfg.Backend.LoginPath,
	}, api.WithUnauthorizedHook(func(loginURL string) {
		appLog.Warn("backend session is no longer valid; log in again", "login_url", loginURL)
	}))
	if err != nil {
		return nil, fmt.Errorf("backend client: %w", err)
	}

	m := metrics.New()
	cal := session.NewCalendar(client,
		session.WithMetrics(m),
		session.WithFallbackLocation(cfg.Location()),
	)
	server := web.NewServer(cfg, web.Deps{
		Calendar: cal,
		Settings: session.NewSettings(client, m),
		Users:    session.NewUsers(client, m),
		Login:    client,
		Metrics:  m,
	})
	return &app{cfg: cfg, client: client, metrics: m, calendar: cal, server: server}, nil
}

func (a *app) run(ctx context.Context, flags flagConfig) error {
	if _, err := session.RequireLogin(ctx, a.client, "/"); err != nil {
		appLog.Warn("backend session not logged in; mutations will fail until a session cookie is configured")
	}
	if err := a.calendar.Reload(ctx); err != nil {
		appLog.Error("initial schedule load failed", err)
		if flags.exportPath != "" || flags.importSrc != "" {
			return err
		}
	}

	switch {
	case flags.exportPath != "":
		return a.export(flags.exportPath)
	case flags.importSrc != "":
		return a.importSlots(ctx, flags.importSrc)
	case flags.once:
		return a.runOnce(ctx)
	}
	return a.serve(ctx)
}

// serve runs the web server plus the cron-driven refresh until ctx ends.
func (a *app) serve(ctx context.Context) error {
	c := cron.New(
		cron.WithLocation(a.cfg.Location()),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	if _, err := c.AddFunc(a.cfg.RefreshCron, func() { a.refresh(ctx) }); err != nil {
		return fmt.Errorf("invalid refresh schedule %q: %w", a.cfg.RefreshCron, err)
	}
	c.Start()
	defer func() {
		<-c.Stop().Done()
	}()

	if a.cfg.Capture.Enabled {
		go func() {
			// Give the listener a moment before the first capture.
			select {
			case <-time.After(2 * time.Second):
				a.capture(ctx)
			case <-ctx.Done():
			}
		}()
	}
	return a.server.Run(ctx)
}

func (a *app) refresh(ctx context.Context) {
	if err := a.calendar.Reload(ctx); err != nil {
		appLog.Error("scheduled reload failed", err)
		return
	}
	if a.cfg.Capture.Enabled {
		a.capture(ctx)
	}
}

func (a *app) capture(ctx context.Context) {
	err := capture.CaptureCalendarPNG(ctx, capture.OptionsFrom(a.cfg))
	a.metrics.ObserveCapture(err)
	if err != nil {
		appLog.Error("preview capture failed", err)
	}
}

// runOnce serves just long enough to capture one preview.
func (a *app) runOnce(ctx context.Context) error {
	if !a.cfg.Capture.Enabled {
		appLog.Info("schedule loaded; capture disabled, nothing else to do")
		return nil
	}
	srvCtx, stop := context.WithCancel(ctx)
	errCh := make(chan error, 1)
	go func() { errCh <- a.server.Run(srvCtx) }()

	time.Sleep(500 * time.Millisecond)
	err := capture.CaptureCalendarPNG(ctx, capture.OptionsFrom(a.cfg))
	a.metrics.ObserveCapture(err)

	stop()
	if serr := <-errCh; serr != nil && err == nil {
		err = serr
	}
	return err
}

func (a *app) export(path string) error {
	snap := a.calendar.Snapshot()
	body := ics.EncodeSlots(snap.Slots, snap.Location, "Reminders", time.Now())
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		return err
	}
	appLog.Info("schedule exported", "path", path, "slots", len(snap.Slots))
	return nil
}

// importSlots creates one slot per weekly event in src. Failures are logged
// per event; the import continues.
func (a *app) importSlots(ctx context.Context, src string) error {
	body, err := ics.NewFetcher(nil).Fetch(ctx, src)
	if err != nil {
		return err
	}
	drafts, err := ics.ParseSlots(body, a.calendar.Location())
	if err != nil {
		return err
	}

	created := 0
	for _, d := range drafts {
		if err := a.calendar.SaveSlot(ctx, d); err != nil {
			appLog.Error("import slot failed", err, "title", d.Title, "start", d.Start.Format(time.RFC3339))
			continue
		}
		created++
	}
	appLog.Info("import finished", "events", len(drafts), "created", created)
	if created < len(drafts) {
		return fmt.Errorf("imported %d of %d events", created, len(drafts))
	}
	return nil
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/remindercal/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Load the schedule, capture one preview and exit")
	flag.StringVar(&cfg.exportPath, "export", "", "Write the schedule as an iCalendar file and exit")
	flag.StringVar(&cfg.importSrc, "import", "", "Create slots from an iCalendar file or URL and exit")
	flag.BoolVar(&cfg.debug, "debug", false, "Enable debug logging")

	flag.Parse()

	return cfg
}
