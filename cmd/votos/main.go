// Package main запускает HTTP-сервер сервиса учёта обетов.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/votos-system/internal/auth"
	"github.com/mmeshcher/votos-system/internal/config"
	"github.com/mmeshcher/votos-system/internal/handler"
	"github.com/mmeshcher/votos-system/internal/metrics"
	"github.com/mmeshcher/votos-system/internal/middleware"
	"github.com/mmeshcher/votos-system/internal/repository"
	"github.com/mmeshcher/votos-system/internal/service"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, err := repository.NewPostgresRepository(ctx, cfg.DatabaseURI)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}

	m := metrics.New()
	svc := service.NewService(repo, auth.NewProvider(repo, 0), logger, m)
	defer svc.Close()
	svc.SetLocation(cfg.Location())

	if cfg.AdminMemberID != uuid.Nil {
		if err := svc.BootstrapAdmin(ctx, cfg.AdminMemberID); err != nil {
			sugar.Fatalw("administrator bootstrap error", "member_id", cfg.AdminMemberID.String(), "error", err.Error())
		}
	}

	if cfg.SessionHashKey == "" {
		sugar.Warn("SESSION_HASH_KEY is not set, sessions will not survive a restart")
	}
	sessions, err := middleware.NewSessionManager(cfg.SessionHashKey, cfg.SessionBlockKey, cfg.SessionTTL, cfg.SecureCookies)
	if err != nil {
		sugar.Fatalw("session configuration error", "error", err.Error())
	}

	h := handler.NewHandler(svc, logger, sessions, m)

	server := &http.Server{
		Addr:              cfg.RunAddress,
		Handler:           h.SetupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	// Запуск HTTP-сервера
	g.Go(func() error {
		sugar.Infow("starting votos server", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}
