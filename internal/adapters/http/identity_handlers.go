package http

import (
	"encoding/json"
	"net/http"

	"github.com/konnexhq/identity-service/internal/application"
	"github.com/konnexhq/identity-service/internal/domain"
)

// SnapshotHandler serves the currently published identity state. Consumers
// must treat is_user_loading=true as "role/profile not yet trustworthy".
func SnapshotHandler(provider *application.IdentityProvider, logger domain.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := provider.Snapshot()
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(snap); err != nil {
			logger.Error(r.Context(), "Failed to encode identity snapshot", "error", err.Error())
		}
	}
}
