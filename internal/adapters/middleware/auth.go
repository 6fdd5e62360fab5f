package middleware

import (
	"net/http"

	"github.com/konnexhq/identity-service/internal/adapters/config"
	"github.com/konnexhq/identity-service/internal/domain"
)

const (
	apiKeyHeaderName = "X-API-Key"
	apiKeyQueryParam = "x-api-key"
)

// AdminAPIKeyMiddleware guards the mutating endpoints (profile merge,
// account deletion). The key is read from the X-API-Key header or the
// x-api-key query parameter and compared against auth.admin_api_key.
func AdminAPIKeyMiddleware(cfgProvider config.Provider, logger domain.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apiKey := r.Header.Get(apiKeyHeaderName)
			if apiKey == "" {
				apiKey = r.URL.Query().Get(apiKeyQueryParam)
			}

			cfg := cfgProvider.Get()
			if cfg == nil || cfg.Auth.AdminAPIKey == "" {
				logger.Error(r.Context(), "API key authentication failed: admin_api_key not configured", "path", r.URL.Path)
				domain.NewErrorResponse(domain.ErrInternal, "Server configuration error", "API authentication cannot be performed.").
					WriteJSON(w, http.StatusInternalServerError)
				return
			}

			if apiKey == "" {
				logger.Warn(r.Context(), "API key authentication failed: key missing", "path", r.URL.Path)
				domain.NewErrorResponse(domain.ErrInvalidAPIKey, "API key is required", "Provide API key in X-API-Key header or x-api-key query parameter.").
					WriteJSON(w, http.StatusUnauthorized)
				return
			}

			if apiKey != cfg.Auth.AdminAPIKey {
				logger.Warn(r.Context(), "API key authentication failed: invalid key", "path", r.URL.Path)
				domain.NewErrorResponse(domain.ErrInvalidAPIKey, "Invalid API key", "The provided API key is not valid.").
					WriteJSON(w, http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
