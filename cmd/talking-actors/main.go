// Command talking-actors is the companion server for the Talking Actors
// host module: it parses chat commands, resolves speakers, drives speech
// synthesis, and posts messages back over the gateway socket.
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

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/acdevs/talking-actors/internal/actor"
	"github.com/acdevs/talking-actors/internal/config"
	"github.com/acdevs/talking-actors/internal/gateway"
	"github.com/acdevs/talking-actors/internal/observe"
	"github.com/acdevs/talking-actors/pkg/tts"
	"github.com/acdevs/talking-actors/pkg/tts/elevenlabs"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "talking-actors: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "talking-actors: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("talking-actors starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// ── Actor store ───────────────────────────────────────────────────────────
	registry, closeStore, err := buildStore(ctx, cfg.Store)
	if err != nil {
		slog.Error("failed to open actor store", "err", err)
		return 1
	}
	defer closeStore()

	// ── TTS connector ─────────────────────────────────────────────────────────
	connector, err := buildConnector(cfg.TTS)
	if err != nil {
		slog.Error("failed to create TTS connector", "err", err)
		return 1
	}

	// ── Gateway + metrics servers ─────────────────────────────────────────────
	settings := config.NewSettings(cfg.Defaults)
	gw := gateway.New(connector, registry, settings, metrics)

	listenAddr := cfg.Server.ListenAddr
	if listenAddr == "" {
		listenAddr = ":8787"
	}

	mux := http.NewServeMux()
	mux.Handle("/ws", gw.Handler())
	gatewaySrv := &http.Server{Addr: listenAddr, Handler: mux}

	var metricsSrv *http.Server
	if cfg.Server.MetricsAddr != "" {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", promhttp.Handler())
		metricsSrv = &http.Server{Addr: cfg.Server.MetricsAddr, Handler: metricsMux}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("gateway listening", "addr", listenAddr)
		if err := gatewaySrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("gateway server: %w", err)
		}
		return nil
	})
	if metricsSrv != nil {
		g.Go(func() error {
			slog.Info("metrics listening", "addr", metricsSrv.Addr)
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		slog.Info("shutdown signal received, stopping…")
		var errs []error
		if err := gatewaySrv.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
		if metricsSrv != nil {
			if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})

	slog.Info("server ready — press Ctrl+C to shut down")

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// buildStore opens the configured actor store. The returned close function
// is a no-op for the in-memory store.
func buildStore(ctx context.Context, cfg config.StoreConfig) (actor.Registry, func(), error) {
	switch cfg.Driver {
	case config.StoreSQLite:
		store, err := actor.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite store: %w", err)
		}
		slog.Info("actor store ready", "driver", "sqlite", "path", cfg.SQLitePath)
		return store, func() {
			if err := store.Close(); err != nil {
				slog.Warn("sqlite close error", "err", err)
			}
		}, nil

	case config.StorePostgres:
		pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		store := actor.NewPostgresStore(pool)
		if err := store.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("migrate postgres store: %w", err)
		}
		slog.Info("actor store ready", "driver", "postgres")
		return store, pool.Close, nil

	default:
		slog.Info("actor store ready", "driver", "memory")
		return actor.NewMemStore(), func() {}, nil
	}
}

// buildConnector creates the configured TTS connector. With no provider
// configured, a no-op connector is used so chat commands still post
// messages, just without speech.
func buildConnector(cfg config.TTSConfig) (tts.Connector, error) {
	switch cfg.Name {
	case "elevenlabs":
		var opts []elevenlabs.Option
		if cfg.Model != "" {
			opts = append(opts, elevenlabs.WithModel(cfg.Model))
		}
		if cfg.OutputFormat != "" {
			opts = append(opts, elevenlabs.WithOutputFormat(cfg.OutputFormat))
		}
		if cfg.BaseURL != "" {
			opts = append(opts, elevenlabs.WithBaseURL(cfg.BaseURL))
		}
		c, err := elevenlabs.New(cfg.APIKey, opts...)
		if err != nil {
			return nil, err
		}
		slog.Info("TTS connector ready", "provider", "elevenlabs", "model", cfg.Model)
		return c, nil

	case "":
		slog.Warn("no TTS provider configured; running without speech")
		return noopConnector{}, nil

	default:
		return nil, fmt.Errorf("unknown TTS provider %q", cfg.Name)
	}
}

// noopConnector stands in when no TTS provider is configured: every voice
// lookup misses so the processor posts plain messages without speech.
type noopConnector struct{}

var _ tts.Connector = noopConnector{}

func (noopConnector) GetVoiceID(context.Context, string) (string, error) {
	return "", tts.ErrVoiceNotFound
}
func (noopConnector) GetVoiceIDFromActor(tts.Actor) string                      { return "" }
func (noopConnector) GetVoiceSettingsFromActor(tts.Actor) *tts.VoiceSettings    { return nil }
func (noopConnector) TextToSpeech(context.Context, string, tts.Actor, string, *tts.VoiceSettings) (string, error) {
	return "", errors.New("tts: no provider configured")
}
func (noopConnector) ReplaySpeech(context.Context, string) error {
	return errors.New("tts: no provider configured")
}
func (noopConnector) ListVoices(context.Context) ([]tts.VoiceProfile, error) { return nil, nil }

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
