package bootstrap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/konnexhq/identity-service/internal/adapters/middleware"
	"github.com/konnexhq/identity-service/pkg/safego"
)

// NOTE: The App struct and NewApp live in providers.go for Wire. This file
// only holds App methods.

// Run registers routes, starts the identity provider, serves HTTP, and
// handles graceful shutdown.
func (a *App) Run(ctx context.Context) error {
	version := "unknown"
	serviceName := "konnex-identity-service"
	if a.configProvider != nil && a.configProvider.Get() != nil {
		configApp := a.configProvider.Get().App
		if configApp.Version != "" {
			version = configApp.Version
		}
		if configApp.ServiceName != "" {
			serviceName = configApp.ServiceName
		}
	}
	a.logger.Info(ctx, "Starting application", "service_name", serviceName, "version", version)

	healthHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, `{"status":"OK"}`)
	})
	a.httpServeMux.Handle("GET /health", middleware.RequestIDMiddleware(healthHandler))

	readyHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		ready := true
		dependenciesStatus := make(map[string]string)

		if a.authStream != nil && a.authStream.Connected() {
			dependenciesStatus["nats"] = "connected"
		} else {
			dependenciesStatus["nats"] = "disconnected"
			ready = false
			a.logger.Warn(r.Context(), "Readiness check failed: auth stream disconnected")
		}

		if a.pgPool != nil {
			if err := a.pgPool.Ping(r.Context()); err == nil {
				dependenciesStatus["postgres"] = "connected"
			} else {
				dependenciesStatus["postgres"] = "disconnected"
				ready = false
				a.logger.Warn(r.Context(), "Readiness check failed: Postgres ping failed", "error", err.Error())
			}
		} else {
			dependenciesStatus["postgres"] = "not_configured"
			ready = false
		}

		response := struct {
			Status       string            `json:"status"`
			Dependencies map[string]string `json:"dependencies"`
		}{
			Dependencies: dependenciesStatus,
		}

		if ready {
			response.Status = "READY"
			w.WriteHeader(http.StatusOK)
		} else {
			response.Status = "NOT_READY"
			w.WriteHeader(http.StatusServiceUnavailable)
		}

		if err := json.NewEncoder(w).Encode(response); err != nil {
			a.logger.Error(r.Context(), "Failed to encode readiness response", "error", err)
		}
	})
	a.httpServeMux.Handle("GET /ready", middleware.RequestIDMiddleware(readyHandler))

	a.httpServeMux.Handle("GET /metrics", middleware.RequestIDMiddleware(promhttp.Handler()))
	a.logger.Info(ctx, "Prometheus metrics endpoint registered at /metrics")

	if a.wsRouter != nil {
		a.wsRouter.RegisterRoutes(ctx, a.httpServeMux)
	} else {
		a.logger.Warn(ctx, "WebSocket router is not initialized; snapshot stream will not be available")
	}

	a.httpServeMux.Handle("GET /identity",
		middleware.RequestIDMiddleware(http.HandlerFunc(a.snapshotHandler)))
	a.httpServeMux.Handle("PATCH /profile/{role}/{uid}",
		middleware.RequestIDMiddleware(a.adminAPIKeyMw(http.HandlerFunc(a.updateProfileHandler))))
	a.httpServeMux.Handle("DELETE /account/{uid}",
		middleware.RequestIDMiddleware(a.adminAPIKeyMw(http.HandlerFunc(a.deleteAccountHandler))))
	a.logger.Info(ctx, "Identity and profile endpoints registered")

	// The provider must be listening before any auth event can arrive.
	if err := a.identityProvider.Start(ctx); err != nil {
		a.logger.Error(ctx, "Failed to start identity provider", "error", err.Error())
		return fmt.Errorf("failed to start identity provider: %w", err)
	}

	safego.Execute(ctx, a.logger, "SignalListenerAndGracefulShutdown", func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		select {
		case sig := <-quit:
			a.logger.Info(context.Background(), "Shutdown signal received, initiating graceful shutdown", "signal", sig.String())
		case <-ctx.Done():
			a.logger.Info(context.Background(), "Application context cancelled, initiating graceful shutdown")
		}

		shutdownTimeout := 30 * time.Second
		if a.configProvider != nil && a.configProvider.Get() != nil {
			configApp := a.configProvider.Get().App
			if configApp.ShutdownTimeoutSeconds > 0 {
				shutdownTimeout = time.Duration(configApp.ShutdownTimeoutSeconds) * time.Second
			}
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		a.identityProvider.Stop()

		if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
			a.logger.Error(context.Background(), "HTTP server graceful shutdown failed", "error", err.Error())
		}
		a.logger.Info(context.Background(), "HTTP server shut down")
	})

	a.logger.Info(ctx, fmt.Sprintf("HTTP server listening on port %d", a.configProvider.Get().Server.HTTPPort))
	if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		a.logger.Error(ctx, "HTTP server ListenAndServe error", "error", err.Error())
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	a.logger.Info(ctx, "Application shut down gracefully or server closed")
	return nil
}
