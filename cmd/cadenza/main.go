// Command cadenza is an MCP server exposing Apple Music tools: catalog
// search backed by signed developer tokens, and local Music.app playback
// through AppleScript.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/cadenza/internal/applescript"
	"github.com/MrWong99/cadenza/internal/auth"
	"github.com/MrWong99/cadenza/internal/catalog"
	"github.com/MrWong99/cadenza/internal/config"
	"github.com/MrWong99/cadenza/internal/health"
	"github.com/MrWong99/cadenza/internal/observe"
	"github.com/MrWong99/cadenza/internal/server"
	"github.com/MrWong99/cadenza/internal/tools"
	"github.com/MrWong99/cadenza/internal/tools/healthcheck"
	"github.com/MrWong99/cadenza/internal/tools/library"
	"github.com/MrWong99/cadenza/internal/tools/player"
	"github.com/MrWong99/cadenza/internal/tools/playlist"
	"github.com/MrWong99/cadenza/internal/tools/queue"
	"github.com/MrWong99/cadenza/internal/tools/search"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "", "path to an optional YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cadenza: %v\n", err)
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	// Logs go to stderr: stdout belongs to the MCP stdio transport.
	slog.SetDefault(newLogger(cfg.Server.LogLevel))

	slog.Info("cadenza starting",
		"storefront", cfg.MusicKit.Storefront,
		"http_addr", cfg.Server.HTTPAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Observability ─────────────────────────────────────────────────────────
	shutdownOtel, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    server.Name,
		ServiceVersion: server.Version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := shutdownOtel(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// ── Core components ───────────────────────────────────────────────────────
	tokens := auth.NewCache(auth.NewMinter(), auth.WithCacheMetrics(metrics))

	var catalogOpts []catalog.Option
	catalogOpts = append(catalogOpts, catalog.WithMetrics(metrics))
	if cfg.Server.CatalogBaseURL != "" {
		catalogOpts = append(catalogOpts, catalog.WithBaseURL(cfg.Server.CatalogBaseURL))
	}
	client := catalog.New(tokens, catalogOpts...)

	// A missing interpreter is not fatal: catalog tools still work, and the
	// playback tools report applescript_unavailable per call.
	var runner applescript.Runner
	if osa, err := applescript.NewOsascript(applescript.WithBinary(cfg.Server.OsascriptPath)); err != nil {
		slog.Warn("applescript bridge unavailable", "err", err)
		runner = unavailableRunner{err: err}
	} else {
		runner = osa
	}

	// ── Tool set ──────────────────────────────────────────────────────────────
	playerTools := player.New(client, runner, cfg.MusicKit)
	libraryTools := library.New(client, runner, cfg.MusicKit)

	toolset := []tools.Tool{
		search.New(client, search.NewCache(), cfg.MusicKit, metrics).Definition(),
		playerTools.PlaySong(),
		playerTools.ControlPlayback(),
		queue.New(client, runner, cfg.MusicKit).Definition(),
		libraryTools.Add(),
		libraryTools.Remove(),
		playlist.New(client, runner, cfg.MusicKit).Definition(),
		healthcheck.New(client, runner, cfg.MusicKit).Definition(),
	}

	srv := server.New(toolset, server.WithMetrics(metrics))

	// ── Run ───────────────────────────────────────────────────────────────────
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(ctx)
	})
	if cfg.Server.HTTPAddr != "" {
		g.Go(func() error {
			return runHTTP(ctx, cfg, metrics, runner, client)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// loadConfig reads the optional YAML file and merges the environment. With
// no file the configuration is environment-only.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}

	cfg := &config.Config{}
	mk, err := config.FromEnv()
	if err != nil {
		return nil, err
	}
	cfg.MusicKit = *mk
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger builds a leveled text handler writing to stderr.
func newLogger(level config.LogLevel) *slog.Logger {
	var l slog.Level
	switch level {
	case config.LogDebug:
		l = slog.LevelDebug
	case config.LogWarn:
		l = slog.LevelWarn
	case config.LogError:
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}

// runHTTP serves the observability listener: liveness, readiness, and the
// Prometheus metrics bridge.
func runHTTP(ctx context.Context, cfg *config.Config, metrics *observe.Metrics, runner applescript.Runner, client *catalog.Client) error {
	mux := http.NewServeMux()
	health.New(
		health.ScriptBridge(runner),
		health.Catalog(client, cfg.MusicKit),
	).Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	httpSrv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: observe.Middleware(metrics)(mux),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	slog.Info("observability listener starting", "addr", cfg.Server.HTTPAddr)
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("observability listener: %w", err)
	}
	return nil
}

// unavailableRunner answers every script with the bridge-unavailable error
// captured at startup.
type unavailableRunner struct {
	err error
}

func (r unavailableRunner) Run(ctx context.Context, script string) (string, error) {
	return "", r.err
}
