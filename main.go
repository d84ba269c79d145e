// Command record-herald watches the Open Hexagon scoring server for new
// world records and announces them into subscribed Discord channels.
// It:
//   - Loads configuration and initializes structured logging.
//   - Opens the Discord gateway session and registers slash commands.
//   - Starts the poll job: score ingestion, merge-window publishing,
//     video-link enrichment, and atomic state persistence.
//   - Exposes a minimal HTTP server with /healthz, /status, and /metrics.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/joho/godotenv"

	"github.com/onnwee/record-herald/catalog"
	"github.com/onnwee/record-herald/config"
	"github.com/onnwee/record-herald/discord"
	"github.com/onnwee/record-herald/hexapi"
	"github.com/onnwee/record-herald/pipeline"
	"github.com/onnwee/record-herald/server"
	"github.com/onnwee/record-herald/state"
	"github.com/onnwee/record-herald/telemetry"
)

func main() {
	// Load .env file if present (local dev convenience only; production relies on real env)
	_ = godotenv.Load(".env")

	// Configure logging (level + format). Defaults: level=info, format=text.
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
		// keep default
	default:
		tmp := slog.New(slog.NewTextHandler(os.Stdout, nil))
		tmp.Warn("unknown LOG_LEVEL, using info", slog.String("value", os.Getenv("LOG_LEVEL")))
	}
	format := strings.ToLower(os.Getenv("LOG_FORMAT")) // text | json
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	default:
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))
	slog.Info("logger initialized", slog.String("level", lvl.String()))

	// Config
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}
	if err := cfg.ValidateDiscordReady(); err != nil {
		slog.Error("discord credentials missing", slog.Any("err", err))
		os.Exit(1)
	}

	// Metrics / telemetry init
	telemetry.Init()

	// Initialize OpenTelemetry tracing (optional; requires OTEL_EXPORTER_OTLP_ENDPOINT)
	shutdownTracing, err := telemetry.InitTracing("record-herald", "1.0.0")
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdownTracing()

	// Persisted state store
	store, err := state.NewStore(cfg.StatePath)
	if err != nil {
		slog.Error("state store init failed", slog.Any("err", err))
		os.Exit(1)
	}

	// Discord session. Guild intent only: announcements and slash
	// commands need no message-content access.
	dg, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		slog.Error("discord session create failed", slog.Any("err", err))
		os.Exit(1)
	}
	dg.Identify.Intents = discordgo.IntentsGuilds
	if err := dg.Open(); err != nil {
		slog.Error("discord gateway open failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer func() {
		if err := dg.Close(); err != nil {
			slog.Warn("discord session close", slog.Any("err", err))
		}
	}()
	slog.Info("discord session open", slog.String("user", dg.State.User.Username))

	// Pipeline wiring
	scoring := &hexapi.Client{BaseURL: cfg.ScoringBaseURL, HTTPClient: &http.Client{Timeout: 30 * time.Second}}
	pipe := &pipeline.Pipeline{
		Scoring:      scoring,
		Catalog:      catalog.New(scoring),
		Chat:         &discord.Fanout{Session: dg},
		Store:        store,
		Publisher:    pipeline.Publisher{Window: cfg.MergeWindow},
		Interval:     cfg.PollInterval,
		MinStandings: cfg.MinStandings,
		Lookback:     cfg.RecentLookback,
	}

	// Slash commands
	cmds := &discord.Commands{Store: store, Recent: pipe.Recent}
	if err := cmds.Register(dg); err != nil {
		slog.Error("command registration failed", slog.Any("err", err))
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go pipe.Start(ctx)

	// HTTP server (health, status, metrics)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.NewMux(store),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		slog.Info("http server listening", slog.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("http server failed", slog.Any("err", err))
			cancel()
		}
	}()

	// Graceful shutdown on SIGINT/SIGTERM
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case s := <-sig:
		slog.Info("shutting down", slog.String("signal", s.String()))
	case <-ctx.Done():
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("http server shutdown", slog.Any("err", err))
	}
}
