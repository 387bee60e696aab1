package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/NewsFlash/cmd/server/factory"
	"github.com/NewsFlash/internal/app"
	"github.com/NewsFlash/internal/events"
	"github.com/NewsFlash/internal/infra/queue"
	"github.com/NewsFlash/internal/infra/tracing"
	transport "github.com/NewsFlash/internal/transport/http"
	"github.com/NewsFlash/pkg/config"
	"go.uber.org/fx"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	fx.New(
		fx.Provide(
			// Config
			config.Load,

			// Infrastructure
			factory.NewMongoClient,
			factory.NewMongoRepository,
			factory.NewEventBus,
			factory.NewKafkaProducer,
			factory.NewKafkaConsumer,

			// Feeds
			factory.NewFetcherFactory,
			factory.NewPreferencePublisher,
			factory.NewSessionManager,
			factory.NewReadinessWaiter,

			// HTTP Server
			transport.NewHTTPServer,
		),
		fx.Invoke(
			SetupTracer,
			WaitForReady, // Block until dependencies are ready
			RegisterHooks,
			StartServer,
		),
	).Run()
}

// --- Invokers ---

func RegisterHooks(
	lc fx.Lifecycle,
	sessions *app.SessionManager,
	bus *events.Bus,
	consumer *queue.KafkaConsumer,
) {
	ctx, cancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			if consumer != nil {
				go consumer.Start(ctx, app.ForwardToBus(bus))
			}
			return nil
		},
		OnStop: func(_ context.Context) error {
			cancel()
			sessions.CloseAll()
			return nil
		},
	})
}

func SetupTracer(lc fx.Lifecycle, cfg *config.Config) error {
	if !cfg.TracingEnabled {
		tracing.Disable()
		return nil
	}

	ctx := context.Background()
	shutdown, err := tracing.InitTracer(ctx, "newsflash", cfg.OTLPEndpoint)
	if err != nil {
		slog.Error("Failed to initialize tracer", "error", err)
		return err
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			slog.Info("Shutting down tracer provider")
			return shutdown(ctx)
		},
	})
	return nil
}

// WaitForReady blocks until all dependencies are ready.
func WaitForReady(waiter *app.ReadinessWaiter) error {
	return waiter.WaitForDependencies(context.Background())
}

func StartServer(lc fx.Lifecycle, server *http.Server) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			go func() {
				slog.Info("Starting feed server", "address", server.Addr)
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					slog.Error("HTTP server failed", "error", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return server.Shutdown(ctx)
		},
	})
}
