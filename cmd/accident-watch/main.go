package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	promconfig "github.com/prometheus/common/config"
	"gopkg.in/yaml.v3"

	"github.com/mr1hm/go-accident-alerts/internal/config"
	"github.com/mr1hm/go-accident-alerts/internal/escalation"
	"github.com/mr1hm/go-accident-alerts/internal/logging"
	"github.com/mr1hm/go-accident-alerts/internal/view"
	"github.com/mr1hm/go-accident-alerts/internal/watcher"
)

var (
	app = kingpin.New("accident-watch", "Watches an accident ledger and escalates newly arrived High severity alerts.")

	configFile     = app.Flag("config.file", "YAML configuration file.").Envar("CONFIG_FILE").String()
	httpConfigFile = app.Flag("http.config.file", "HTTP client configuration (auth, TLS, proxy) for reaching the ledger.").String()
	ledgerURL      = app.Flag("ledger.url", "Base URL of the ledger.").String()
	pollInterval   = app.Flag("poll.interval", "Time between snapshot polls.").Duration()
	deltaPolicy    = app.Flag("delta.policy", "How new arrivals are detected: tail, count or sequence.").Enum("tail", "count", "sequence")
	filterFlag     = app.Flag("filter", "Severity filter for the alert list: All, High, Medium or Low.").Enum("All", "High", "Medium", "Low")
	playerCommand  = app.Flag("tone.player", "Command that plays a WAV file from stdin, e.g. \"aplay -q\".").String()
	listenAddress  = app.Flag("web.listen-address", "Address to expose /metrics on. Empty disables it.").String()
	noDashboard    = app.Flag("no-dashboard", "Do not render the dashboard to stdout.").Bool()
)

func main() {
	_ = godotenv.Load()
	kingpin.MustParse(app.Parse(os.Args[1:]))

	if *configFile != "" {
		os.Setenv("CONFIG_FILE", *configFile)
	}
	cfg, err := config.Load()
	if err != nil {
		logging.Fatalf("Fatal while loading config: %v", err)
	}
	applyFlags(&cfg.Watcher)
	if err := cfg.Validate(); err != nil {
		logging.Fatalf("Invalid flags: %v", err)
	}

	// The dashboard owns stdout.
	slog.SetDefault(logging.New(os.Stderr, cfg.Logging.Level))

	httpCfg := promconfig.DefaultHTTPClientConfig
	if *httpConfigFile != "" {
		loaded, err := loadHTTPConfig(*httpConfigFile)
		if err != nil {
			logging.Fatalf("Failed to load http config: %v", err)
		}
		httpCfg = *loaded
	}
	client, err := watcher.NewHTTPClient(httpCfg, cfg.Watcher.RequestTimeout)
	if err != nil {
		logging.Fatalf("Failed to create http client: %v", err)
	}

	policy, err := watcher.ParseDeltaPolicy(cfg.Watcher.DeltaPolicy)
	if err != nil {
		logging.Fatalf("Invalid delta policy: %v", err)
	}
	filter, err := view.ParseFilter(cfg.Watcher.Filter)
	if err != nil {
		logging.Fatalf("Invalid filter: %v", err)
	}

	tone := &escalation.ToneNotifier{
		Tone: escalation.Tone{Frequency: cfg.Tone.Frequency, Duration: cfg.Tone.Duration},
		Out:  os.Stdout,
	}
	if cfg.Watcher.PlayerCommand != "" {
		tone.Player = strings.Fields(cfg.Watcher.PlayerCommand)
	}
	notifiers := []escalation.Notifier{tone, escalation.LogNotifier{}}

	if cfg.NATS.Enabled {
		nc, err := escalation.ConnectNATS(cfg.NATS.URL, "accident-watch")
		if err != nil {
			logging.Fatalf("Failed to connect to NATS: %v", err)
		}
		defer nc.Close()
		notifiers = append(notifiers, escalation.NewNATSNotifier(nc, cfg.NATS.Subject))
		slog.Info("publishing escalations to NATS", "url", cfg.NATS.URL, "subject", cfg.NATS.Subject)
	}

	engine := watcher.New(
		watcher.NewHTTPFetcher(cfg.Watcher.BaseURL, client),
		escalation.New(notifiers...),
		watcher.Options{
			Interval: cfg.Watcher.PollInterval,
			Policy:   policy,
			Filter:   filter,
		},
	)

	if !*noDashboard {
		var mu sync.Mutex
		engine.OnUpdate(func(st view.State) {
			mu.Lock()
			defer mu.Unlock()
			fmt.Fprint(os.Stdout, "\033[H\033[2J")
			if err := view.Render(os.Stdout, st); err != nil {
				slog.Error("failed to render dashboard", "error", err)
			}
		})
	}

	var metricsSrv *http.Server
	if *listenAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsSrv = &http.Server{Addr: *listenAddress, Handler: mux}
		go func() {
			slog.Info("metrics listening", "addr", metricsSrv.Addr)
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logging.Fatalf("metrics server error: %v", err)
			}
		}()
	}

	slog.Info("watching ledger", "url", cfg.Watcher.BaseURL, "interval", cfg.Watcher.PollInterval,
		"policy", policy, "filter", filter)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := engine.Run(ctx); err != nil {
		slog.Error("watcher stopped", "error", err)
	}
	engine.Stop()
	tone.Wait()

	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics shutdown error", "error", err)
		}
	}

	slog.Info("shutdown complete")
}

func applyFlags(w *config.WatcherConfig) {
	if *ledgerURL != "" {
		w.BaseURL = *ledgerURL
	}
	if *pollInterval > 0 {
		w.PollInterval = *pollInterval
	}
	if *deltaPolicy != "" {
		w.DeltaPolicy = *deltaPolicy
	}
	if *filterFlag != "" {
		w.Filter = *filterFlag
	}
	if *playerCommand != "" {
		w.PlayerCommand = *playerCommand
	}
}

func loadHTTPConfig(path string) (*promconfig.HTTPClientConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading %s: %w", path, err)
	}
	cfg := promconfig.DefaultHTTPClientConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("error decoding %s: %w", path, err)
	}
	cfg.SetDirectory(filepath.Dir(path))
	return &cfg, nil
}
