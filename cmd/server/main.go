package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gyaneshwarpardhi/hookrelay/internal/api"
	"github.com/gyaneshwarpardhi/hookrelay/internal/config"
	"github.com/gyaneshwarpardhi/hookrelay/internal/metrics"
	"github.com/gyaneshwarpardhi/hookrelay/internal/policy"
	"github.com/gyaneshwarpardhi/hookrelay/internal/relay"
	"github.com/gyaneshwarpardhi/hookrelay/internal/throttle"
	"github.com/gyaneshwarpardhi/hookrelay/internal/whatsapp"
)

func main() {
	cfgPath := flag.String("config", "hookrelay.yaml", "Path to YAML config (optional; env vars override)")
	addr := flag.String("addr", "", "HTTP listen address (default :$PORT)")
	flag.Parse()

	// ── Load config ──────────────────────────────────────────────────────────
	loader, err := config.NewLoader(*cfgPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	cfg := loader.Config()
	if err := config.Validate(cfg); err != nil {
		slog.Error("config validation failed", "err", err)
		os.Exit(1)
	}
	slog.SetDefault(newLogger(cfg.Log))
	for _, w := range config.Warnings(cfg) {
		slog.Warn(w)
	}

	// ── Reply policy ─────────────────────────────────────────────────────────
	// The store outlives reloads so cooldown history survives a policy swap.
	store := throttle.NewMemory(cfg.Reply.Cooldown, cfg.Reply.MaxTracked)
	reg := policy.FromConfig(cfg.Reply, store)
	p, err := reg.Get(cfg.Reply.Policy)
	if err != nil {
		slog.Error("failed to select reply policy", "err", err, "available", reg.Names())
		os.Exit(1)
	}

	// ── Relay ────────────────────────────────────────────────────────────────
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := whatsapp.New(whatsapp.Options{
		BaseURL:       cfg.WhatsApp.BaseURL,
		APIVersion:    cfg.WhatsApp.APIVersion,
		PhoneNumberID: cfg.WhatsApp.PhoneNumberID,
		AccessToken:   cfg.WhatsApp.AccessToken,
		Timeout:       time.Duration(cfg.WhatsApp.TimeoutMs) * time.Millisecond,
		RatePerSec:    cfg.WhatsApp.RatePerSec,
		Burst:         cfg.WhatsApp.Burst,
	})
	rl := relay.New(ctx, p, client, cfg.Relay, slog.Default())
	slog.Info("relay ready", "policy", p.Name(), "available", reg.Names(), "endpoint", client.Endpoint(), "cooldown", store.Cooldown())

	// ── Hot-reload watcher ───────────────────────────────────────────────────
	// The loader only installs configs that pass Validate. Reply policy, webhook
	// and server settings apply live; the client, cooldown store and pool do not.
	loader.OnChange(func(newCfg *config.Config) {
		nreg := policy.FromConfig(newCfg.Reply, store)
		np, err := nreg.Get(newCfg.Reply.Policy)
		if err != nil {
			slog.Warn("hot-reload skipped: policy unavailable", "err", err, "available", nreg.Names())
			return
		}
		rl.SwapPolicy(np)
		metrics.PolicyReloads.Inc()
		slog.Info("reply policy reloaded", "policy", np.Name())
	})
	if loader.Path() != "" {
		stopWatch, err := loader.Watch()
		if err != nil {
			slog.Warn("config watcher unavailable (hot-reload disabled)", "err", err)
		} else {
			defer stopWatch()
		}
	}

	// ── HTTP server ──────────────────────────────────────────────────────────
	listen := *addr
	if listen == "" {
		listen = fmt.Sprintf(":%d", cfg.Server.Port)
	}
	srv := &http.Server{
		Addr:              listen,
		Handler:           api.New(rl, loader),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", listen)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// ── Graceful shutdown ────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down")

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutCancel()
	_ = srv.Shutdown(shutCtx)
	cancel()
	rl.Shutdown()
	slog.Info("goodbye")
}

func newLogger(conf config.LogConf) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(conf.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(conf.Format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
