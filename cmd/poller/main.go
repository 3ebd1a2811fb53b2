package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"matchpoller/internal/client"
	"matchpoller/internal/config"
	"matchpoller/internal/control"
	"matchpoller/internal/notify"
	"matchpoller/internal/poller"
	"matchpoller/internal/storage"
)

func main() {
	_ = godotenv.Load(".env")

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	log := newLogger(cfg.LogLevel)

	if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			log.Error("create data directory", "path", dir, "error", err)
			os.Exit(1)
		}
	}

	store, err := storage.NewSQLite(cfg.DatabasePath)
	if err != nil {
		log.Error("open database", "path", cfg.DatabasePath, "error", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	notifier, err := newNotifier(cfg, log)
	if err != nil {
		log.Error("create notifier", "error", err)
		os.Exit(1)
	}

	cl := client.New(http.DefaultClient, log)
	p := poller.New(store, cl, notifier, log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := p.Restore(ctx); err != nil {
		log.Error("restore session", "error", err)
		os.Exit(1)
	}

	go p.Run(ctx)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           control.New(p, log).Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("control API listening", "addr", cfg.ListenAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("serve", "error", err)
		os.Exit(1)
	}

	log.Info("poller stopped")
}

func newNotifier(cfg *config.Config, log *slog.Logger) (notify.Notifier, error) {
	if cfg.TelegramBotToken == "" {
		log.Info("no telegram token configured, logging notifications")
		return notify.NewLog(log), nil
	}
	return notify.NewTelegram(cfg.TelegramBotToken, cfg.TelegramChatID)
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
