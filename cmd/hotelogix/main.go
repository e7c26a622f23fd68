// Package main запускает HTTP-сервер платформы бронирования отеля.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/janabsyco4-wq/hotelogix-management-system-sub000/internal/config"
	"github.com/janabsyco4-wq/hotelogix-management-system-sub000/internal/handler"
	"github.com/janabsyco4-wq/hotelogix-management-system-sub000/internal/middleware"
	"github.com/janabsyco4-wq/hotelogix-management-system-sub000/internal/payment"
	"github.com/janabsyco4-wq/hotelogix-management-system-sub000/internal/queue"
	"github.com/janabsyco4-wq/hotelogix-management-system-sub000/internal/repository"
	"github.com/janabsyco4-wq/hotelogix-management-system-sub000/internal/service"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	repo, err := repository.NewPostgresRepository(cfg.DatabaseURI)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}
	defer repo.Close()

	gateway := payment.NewClient(cfg.PaymentGatewayAddress, cfg.PaymentGatewayKey)
	payments := service.NewPaymentCoordinator(gateway, repo, logger)

	var publisher service.EventPublisher
	if cfg.AMQPURL != "" {
		publisher = queue.NewPublisher(cfg.AMQPURL)
	}
	notifier := service.NewNotificationDispatcher(repo, publisher, logger)

	svc := service.NewService(repo, payments, notifier, logger, cfg.PendingBookingTTL, cfg.SweepInterval)
	defer svc.Close()

	authMiddleware := middleware.NewAuthMiddleware(cfg.AuthSecret)
	h := handler.NewHandler(svc, svc.Notifications(), logger, authMiddleware)

	r := h.SetupRouter()

	server := &http.Server{
		Addr:    cfg.RunAddress,
		Handler: r,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Запуск фоновой зачистки брошенных бронирований
	g.Go(func() error {
		svc.StartExpirySweep(ctx)
		return nil
	})

	// Запуск HTTP-сервера
	g.Go(func() error {
		sugar.Infow("starting booking server", "addr", cfg.RunAddress)
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
