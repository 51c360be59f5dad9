// Package main starts the dispensary loyalty service HTTP server.
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

	"github.com/theofficialwebsiteguys/Dispensary-API/internal/config"
	"github.com/theofficialwebsiteguys/Dispensary-API/internal/handler"
	"github.com/theofficialwebsiteguys/Dispensary-API/internal/middleware"
	"github.com/theofficialwebsiteguys/Dispensary-API/internal/notify"
	"github.com/theofficialwebsiteguys/Dispensary-API/internal/pos"
	"github.com/theofficialwebsiteguys/Dispensary-API/internal/repository"
	"github.com/theofficialwebsiteguys/Dispensary-API/internal/service"
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
	defer repo.Close()

	posClient := pos.NewClient(cfg.PosAddress, cfg.PosUsername, cfg.PosPassword)
	providers := service.NewProviderRegistry(posClient)

	// Push and mail are optional integrations: the service runs without
	// them, skipping those side effects.
	var push service.PushSender
	if cfg.GoogleCredentials != "" {
		sender, err := notify.NewPushSender(ctx, cfg.GoogleCredentials)
		if err != nil {
			sugar.Warnw("push sender disabled", "error", err.Error())
		} else {
			push = sender
		}
	}

	var mailer service.MailSender
	if cfg.EmailSender != "" {
		m, err := notify.NewMailer(ctx, cfg.EmailRegion, cfg.AWSAccessKey, cfg.AWSSecretKey, cfg.EmailSender)
		if err != nil {
			sugar.Warnw("mailer disabled", "error", err.Error())
		} else {
			mailer = m
		}
	}

	svc := service.NewService(repo, providers, push, mailer, logger, service.Options{
		SessionSecret:  cfg.SessionSecret,
		PublicBaseURL:  cfg.PublicBaseURL,
		DeepLinkScheme: cfg.AppDeepLinkScheme,
	})

	authMiddleware := middleware.NewAuthMiddleware(repo)
	h := handler.NewHandler(svc, logger, authMiddleware)

	server := &http.Server{
		Addr:    cfg.RunAddress,
		Handler: h.SetupRouter(),
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		svc.StartReconcileUpdates(ctx, cfg.ReconcileInterval)
		return nil
	})

	g.Go(func() error {
		sugar.Infow("starting dispensary server", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

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
