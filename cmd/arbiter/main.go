package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/park285/cheese-board/internal/chessbuilder"
	"github.com/park285/cheese-board/internal/config"
	"github.com/park285/cheese-board/internal/obslog"
	"github.com/park285/cheese-board/internal/server"
)

func main() {
	if err := obslog.InitFromEnv("logs/arbiter.log"); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	logger := obslog.L()
	defer func() { _ = logger.Sync() }()

	cfg, err := config.LoadServer()
	if err != nil {
		logger.Fatal("config error", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	initCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	deps, err := chessbuilder.New(initCtx, cfg, logger)
	cancel()
	if err != nil {
		logger.Fatal("arbiter init error", zap.Error(err))
	}
	defer func() { _ = deps.Close() }()

	srv := server.New(deps.Service, logger.Named("http"))
	defer srv.Close()

	httpSrv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("arbiter_listening",
			zap.String("addr", cfg.Addr),
			zap.Bool("stockfish", cfg.StockfishPath != ""),
			zap.Bool("redis", cfg.RedisURL != ""),
			zap.Bool("postgres", cfg.DatabaseURL != ""),
		)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server stopped", zap.Error(err))
			os.Exit(1)
		}
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	logger.Info("arbiter_stopped")
}
