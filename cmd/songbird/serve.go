package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/DrTrintignant/Songbird/internal/config"
	"github.com/DrTrintignant/Songbird/internal/discord"
	"github.com/DrTrintignant/Songbird/internal/discord/commands"
	"github.com/DrTrintignant/Songbird/internal/health"
	"github.com/DrTrintignant/Songbird/internal/mcp"
	"github.com/DrTrintignant/Songbird/internal/observe"
)

// shutdownTimeout bounds the graceful shutdown of the HTTP listener and
// telemetry.
const shutdownTimeout = 10 * time.Second

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the operations to MCP hosts and, when configured, Discord",
		Long: `Serve runs until interrupted. Depending on the configuration it
  - serves MCP over stdio or streamable HTTP,
  - runs the Discord bot with the /songbird command,
  - exposes /healthz, /readyz and /metrics on server.listen_addr.

When a config file is given it is watched; log level changes apply live and
other changes are reported as needing a restart.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, opts.configPath)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, configPath string) error {
	level, closeLog := setupLogging(cfg)
	defer closeLog()

	slog.Info("songbird starting",
		"version", cfg.Server.Version,
		"config", configPath,
		"mcp_transport", cfg.MCP.Transport,
		"listen_addr", cfg.Server.ListenAddr,
		"sounds_dir", cfg.Paths.SoundsDir,
		"discord", cfg.Discord.Token != "",
	)

	// ── Telemetry ─────────────────────────────────────────────────────────────
	tel, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "songbird",
		ServiceVersion: cfg.Server.Version,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// ── Service ───────────────────────────────────────────────────────────────
	a, err := newApp(cfg, metrics)
	if err != nil {
		return fmt.Errorf("build service: %w", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			slog.Warn("audio close error", "err", err)
		}
	}()

	// ── Config watcher ────────────────────────────────────────────────────────
	if configPath != "" {
		w, err := config.NewWatcher(configPath, func(old, new *config.Config) {
			applyReload(config.Diff(old, new), level)
		})
		if err != nil {
			slog.Warn("config watcher disabled", "err", err)
		} else {
			defer w.Stop()
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	// ── HTTP listener ─────────────────────────────────────────────────────────
	var mux *http.ServeMux
	if cfg.Server.ListenAddr != "" {
		mux = http.NewServeMux()
		health.New(
			health.CacheDir(cfg.Paths.SoundsDir),
			health.Bindings(a.store),
			health.Credential(a.creds),
			health.Breaker(a.aggregator.Breaker()),
		).Register(mux)
		mux.Handle("/metrics", tel.MetricsHandler)
	}

	// ── MCP ───────────────────────────────────────────────────────────────────
	mcpServer := mcp.NewServer(a.svc, cfg.Server.Name, cfg.Server.Version)
	switch cfg.MCP.Transport {
	case mcp.TransportStdio:
		g.Go(func() error {
			err := mcp.Serve(gctx, mcpServer, mcp.TransportStdio, nil, "")
			// The host closing stdin ends the whole process.
			slog.Info("mcp: host disconnected")
			cancel()
			return err
		})
	default:
		if err := mcp.Serve(gctx, mcpServer, cfg.MCP.Transport, mux, cfg.MCP.Path); err != nil {
			return err
		}
	}

	if mux != nil {
		srv := &http.Server{
			Addr:              cfg.Server.ListenAddr,
			Handler:           observe.Middleware(metrics)(mux),
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Go(func() error {
			slog.Info("http listener started", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http listener: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	// ── Discord bot (optional) ────────────────────────────────────────────────
	if cfg.Discord.Token != "" {
		bot, err := discord.New(ctx, discord.Config{
			Token:            cfg.Discord.Token,
			GuildID:          cfg.Discord.GuildID,
			ControllerRoleID: cfg.Discord.ControllerRoleID,
		})
		if err != nil {
			return err
		}
		defer func() {
			if err := bot.Close(); err != nil {
				slog.Warn("discord bot close error", "err", err)
			}
		}()
		commands.NewSongbirdCommands(bot.Permissions(), a.svc, a.store, a.cache).Register(bot.Router())
		slog.Info("discord bot connected", "guild_id", cfg.Discord.GuildID)

		g.Go(func() error {
			if err := bot.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	slog.Info("songbird ready")
	err = g.Wait()
	slog.Info("songbird stopped")
	return err
}

// applyReload applies the hot-reloadable part of a config change.
func applyReload(d config.ConfigDiff, level *slog.LevelVar) {
	if d.LogLevelChanged {
		level.Set(slogLevel(d.NewLogLevel))
		slog.Info("log level changed", "level", d.NewLogLevel)
	}
	if len(d.RestartRequired) > 0 {
		slog.Warn("configuration changed; restart to apply", "keys", d.RestartRequired)
	}
}
