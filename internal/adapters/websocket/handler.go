package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"github.com/konnexhq/identity-service/internal/adapters/config"
	"github.com/konnexhq/identity-service/internal/adapters/metrics"
	"github.com/konnexhq/identity-service/internal/application"
	"github.com/konnexhq/identity-service/internal/domain"
	"github.com/konnexhq/identity-service/pkg/safego"
)

// Handler upgrades HTTP requests to WebSocket connections and streams
// identity snapshots: the current one on connect, then every subsequent
// publish. The provider's listeners must not block, so each connection gets
// a buffered channel with a drop-oldest policy: a slow consumer only ever
// misses intermediate snapshots, never the latest one.
type Handler struct {
	logger         domain.Logger
	configProvider config.Provider
	provider       *application.IdentityProvider
}

// NewHandler creates a new snapshot fan-out handler.
func NewHandler(logger domain.Logger, cfgProvider config.Provider, provider *application.IdentityProvider) *Handler {
	return &Handler{
		logger:         logger,
		configProvider: cfgProvider,
		provider:       provider,
	}
}

func (h *Handler) bufferSize() int {
	if cfg := h.configProvider.Get(); cfg != nil && cfg.App.SnapshotBufferPerConsumer > 0 {
		return cfg.App.SnapshotBufferPerConsumer
	}
	return 16
}

func (h *Handler) writeTimeout() time.Duration {
	if cfg := h.configProvider.Get(); cfg != nil && cfg.App.WriteTimeoutSeconds > 0 {
		return time.Duration(cfg.App.WriteTimeoutSeconds) * time.Second
	}
	return 10 * time.Second
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	wsConn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// The Konnex front end is served from a different origin in
		// development; origin policy is enforced upstream.
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.logger.Warn(r.Context(), "WebSocket upgrade failed", "error", err.Error(), "remote_addr", r.RemoteAddr)
		return
	}

	connCtx, cancel := context.WithCancel(r.Context())
	defer cancel()

	metrics.IncrementSnapshotSubscribers()
	defer metrics.DecrementSnapshotSubscribers()
	h.logger.Info(connCtx, "Snapshot consumer connected", "remote_addr", r.RemoteAddr)

	updates := make(chan domain.IdentitySnapshot, h.bufferSize())
	unsubscribe := h.provider.SubscribeSnapshots(func(snap domain.IdentitySnapshot) {
		for {
			select {
			case updates <- snap:
				return
			default:
				// Buffer full: drop the oldest queued snapshot.
				// Only the latest state matters to a consumer.
				select {
				case <-updates:
				default:
				}
			}
		}
	})
	defer unsubscribe()

	// Reads are drained only to surface client-side closes.
	safego.Execute(connCtx, h.logger, "SnapshotConsumerReadLoop", func() {
		defer cancel()
		for {
			if _, _, err := wsConn.Read(connCtx); err != nil {
				return
			}
		}
	})

	if !h.send(connCtx, wsConn, h.provider.Snapshot()) {
		wsConn.Close(websocket.StatusInternalError, "failed to send initial snapshot")
		return
	}

	for {
		select {
		case <-connCtx.Done():
			wsConn.Close(websocket.StatusGoingAway, "server closing connection")
			h.logger.Info(context.Background(), "Snapshot consumer disconnected", "remote_addr", r.RemoteAddr)
			return
		case snap := <-updates:
			if !h.send(connCtx, wsConn, snap) {
				wsConn.Close(websocket.StatusInternalError, "failed to push snapshot")
				return
			}
		}
	}
}

// send writes one snapshot frame with the configured write timeout.
func (h *Handler) send(ctx context.Context, wsConn *websocket.Conn, snap domain.IdentitySnapshot) bool {
	payload, err := json.Marshal(snap)
	if err != nil {
		h.logger.Error(ctx, "Failed to marshal identity snapshot", "error", err.Error())
		return false
	}

	writeCtx, cancel := context.WithTimeout(ctx, h.writeTimeout())
	defer cancel()
	if err := wsConn.Write(writeCtx, websocket.MessageText, payload); err != nil {
		h.logger.Debug(ctx, "Snapshot write failed", "error", err.Error())
		return false
	}
	return true
}
