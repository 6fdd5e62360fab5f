package websocket

import (
	"context"
	"net/http"

	"github.com/konnexhq/identity-service/internal/adapters/config"
	"github.com/konnexhq/identity-service/internal/adapters/middleware"
	"github.com/konnexhq/identity-service/internal/domain"
)

// Router wires the snapshot WebSocket endpoint into the HTTP mux.
type Router struct {
	logger         domain.Logger
	configProvider config.Provider
	wsHandler      http.Handler
}

// NewRouter creates a new WebSocket router.
func NewRouter(logger domain.Logger, cfgProvider config.Provider, wsHandler *Handler) *Router {
	return &Router{
		logger:         logger,
		configProvider: cfgProvider,
		wsHandler:      wsHandler,
	}
}

// RegisterRoutes sets up the snapshot stream endpoint. The stream is
// read-only published state, so it only needs request-id tagging, not the
// admin API key guarding the mutating endpoints.
func (r *Router) RegisterRoutes(ctx context.Context, mux *http.ServeMux) {
	mux.Handle("GET /ws/identity", middleware.RequestIDMiddleware(r.wsHandler))
	r.logger.Info(ctx, "WebSocket endpoint registered", "pattern", "GET /ws/identity")
}
