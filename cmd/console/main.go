package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/support-console/internal/api/http"
	"github.com/spec-kit/support-console/internal/api/http/handlers"
	"github.com/spec-kit/support-console/internal/channel"
	"github.com/spec-kit/support-console/internal/config"
	"github.com/spec-kit/support-console/internal/events"
	"github.com/spec-kit/support-console/internal/observability"
	"github.com/spec-kit/support-console/internal/persistence"
	"github.com/spec-kit/support-console/internal/service"
	"github.com/spec-kit/support-console/internal/ticketapi"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	metrics := observability.NewMetrics()

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	gateway := ticketapi.NewClient(cfg.TicketAPI)

	manager := service.NewManager(service.ManagerDeps{
		Gateway: gateway,
		Sources: func(handler events.Handler) service.EventSource {
			return channel.NewSubscriber(redis.Client, cfg.Redis, handler, logger, metrics)
		},
		Logger:  logger,
		Metrics: metrics,
	})

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	healthHandler := handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, redis, gateway)
	sessionsHandler := handlers.NewSessionsHandler(manager)

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:   healthHandler,
		Sessions: sessionsHandler,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	manager.CloseAll()
	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
