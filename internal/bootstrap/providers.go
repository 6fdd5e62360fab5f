package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/google/wire"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/konnexhq/identity-service/internal/adapters/config"
	apphttp "github.com/konnexhq/identity-service/internal/adapters/http"
	"github.com/konnexhq/identity-service/internal/adapters/logger"
	"github.com/konnexhq/identity-service/internal/adapters/memstore"
	"github.com/konnexhq/identity-service/internal/adapters/middleware"
	appnats "github.com/konnexhq/identity-service/internal/adapters/nats"
	"github.com/konnexhq/identity-service/internal/adapters/postgres"
	appredis "github.com/konnexhq/identity-service/internal/adapters/redis"
	wsadapter "github.com/konnexhq/identity-service/internal/adapters/websocket"
	"github.com/konnexhq/identity-service/internal/application"
	"github.com/konnexhq/identity-service/internal/domain"
)

// Distinct handler/middleware types so Wire can tell them apart.
type SnapshotHandler http.HandlerFunc
type UpdateProfileHandler http.HandlerFunc
type DeleteAccountHandler http.HandlerFunc
type AdminAPIKeyMiddleware func(http.Handler) http.Handler

// InitialZapLoggerProvider provides a basic *zap.Logger for config loading,
// before the full domain logger exists.
func InitialZapLoggerProvider() (*zap.Logger, func(), error) {
	zapLogger, err := zap.NewProduction()
	if err != nil {
		zapLogger, err = zap.NewDevelopment()
		if err != nil {
			zapLogger = zap.NewExample()
			fmt.Fprintf(os.Stderr, "Failed to create initial zap logger, falling back to example: %v\n", err)
		}
	}

	cleanup := func() {
		if syncErr := zapLogger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "Failed to sync initial zap logger: %v\n", syncErr)
		}
	}
	return zapLogger, cleanup, nil
}

// App aggregates everything Run needs.
type App struct {
	configProvider   config.Provider
	logger           domain.Logger
	httpServeMux     *http.ServeMux
	httpServer       *http.Server
	identityProvider *application.IdentityProvider
	authStream       *appnats.AuthStreamAdapter
	pgPool           *pgxpool.Pool
	wsRouter         *wsadapter.Router

	snapshotHandler      SnapshotHandler
	updateProfileHandler UpdateProfileHandler
	deleteAccountHandler DeleteAccountHandler
	adminAPIKeyMw        AdminAPIKeyMiddleware
}

// NewApp is the constructor Wire uses to assemble the application.
func NewApp(
	cfgProvider config.Provider,
	appLogger domain.Logger,
	mux *http.ServeMux,
	server *http.Server,
	identityProvider *application.IdentityProvider,
	authStream *appnats.AuthStreamAdapter,
	pgPool *pgxpool.Pool,
	wsRouter *wsadapter.Router,
	snapshotHandler SnapshotHandler,
	updateProfileHandler UpdateProfileHandler,
	deleteAccountHandler DeleteAccountHandler,
	adminAPIKeyMw AdminAPIKeyMiddleware,
) (*App, func(), error) {
	app := &App{
		configProvider:       cfgProvider,
		logger:               appLogger,
		httpServeMux:         mux,
		httpServer:           server,
		identityProvider:     identityProvider,
		authStream:           authStream,
		pgPool:               pgPool,
		wsRouter:             wsRouter,
		snapshotHandler:      snapshotHandler,
		updateProfileHandler: updateProfileHandler,
		deleteAccountHandler: deleteAccountHandler,
		adminAPIKeyMw:        adminAPIKeyMw,
	}

	cleanup := func() {
		app.logger.Info(context.Background(), "Running app cleanup")
		app.identityProvider.Stop()
	}
	return app, cleanup, nil
}

// ConfigProvider provides the application configuration.
func ConfigProvider(appCtx context.Context, zapLogger *zap.Logger) (config.Provider, error) {
	return config.NewViperProvider(appCtx, zapLogger)
}

// LoggerProvider provides the application logger.
func LoggerProvider(cfgProvider config.Provider) (domain.Logger, error) {
	appCfg := cfgProvider.Get()
	return logger.NewZapAdapter(cfgProvider, appCfg.App.ServiceName)
}

// HTTPServeMuxProvider provides the main HTTP multiplexer.
func HTTPServeMuxProvider() *http.ServeMux {
	return http.NewServeMux()
}

// HTTPGracefulServerProvider provides the HTTP server configured for
// graceful shutdown.
func HTTPGracefulServerProvider(cfgProvider config.Provider, mux *http.ServeMux) *http.Server {
	appCfg := cfgProvider.Get()

	writeTimeout := 10 * time.Second
	if appCfg.App.WriteTimeoutSeconds > 0 {
		writeTimeout = time.Duration(appCfg.App.WriteTimeoutSeconds) * time.Second
	}

	return &http.Server{
		Addr:         fmt.Sprintf(":%d", appCfg.Server.HTTPPort),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: writeTimeout,
		IdleTimeout:  60 * time.Second,
	}
}

// CacheStoreProvider provides the identity cache. Redis when configured and
// reachable; otherwise the service degrades to an in-process cache so
// identity resolution keeps working without persistence across restarts.
func CacheStoreProvider(cfgProvider config.Provider, appLogger domain.Logger) (domain.IdentityCacheStore, func(), error) {
	cfg := cfgProvider.Get()

	ttl := domain.DefaultEntryTTL
	if cfg.Cache.EntryTTLHours > 0 {
		ttl = time.Duration(cfg.Cache.EntryTTLHours) * time.Hour
	}

	if cfg.Redis.Address == "" {
		appLogger.Warn(context.Background(), "redis.address not configured; using in-memory identity cache")
		return memstore.NewMemoryCacheAdapter(ttl), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if _, err := client.Ping(context.Background()).Result(); err != nil {
		// Cache availability is never a correctness requirement; fall
		// back rather than refusing to start.
		appLogger.Warn(context.Background(), "Redis unreachable; using in-memory identity cache",
			"address", cfg.Redis.Address, "error", err.Error())
		client.Close()
		return memstore.NewMemoryCacheAdapter(ttl), func() {}, nil
	}

	appLogger.Info(context.Background(), "Successfully connected to Redis", "address", cfg.Redis.Address)
	cleanup := func() {
		client.Close()
		appLogger.Info(context.Background(), "Redis connection closed")
	}
	return appredis.NewIdentityCacheAdapter(client, appLogger, ttl), cleanup, nil
}

// PgxPoolProvider provides the Postgres pool backing the profile document
// store.
func PgxPoolProvider(appCtx context.Context, cfgProvider config.Provider, appLogger domain.Logger) (*pgxpool.Pool, func(), error) {
	return postgres.NewPool(appCtx, cfgProvider, appLogger)
}

// ProfileStoreProvider provides the profile document store.
func ProfileStoreProvider(pool *pgxpool.Pool, appLogger domain.Logger) domain.ProfileDocumentStore {
	return postgres.NewProfileStoreAdapter(pool, appLogger)
}

// AuthStreamProvider provides the NATS-backed auth event stream.
func AuthStreamProvider(appCtx context.Context, cfgProvider config.Provider, appLogger domain.Logger) (*appnats.AuthStreamAdapter, func(), error) {
	return appnats.NewAuthStreamAdapter(appCtx, cfgProvider, appLogger)
}

// IdentityProviderProvider provides the identity resolution provider.
func IdentityProviderProvider(
	appLogger domain.Logger,
	cfgProvider config.Provider,
	cache domain.IdentityCacheStore,
	docs domain.ProfileDocumentStore,
	stream domain.AuthStream,
) *application.IdentityProvider {
	return application.NewIdentityProvider(appLogger, cfgProvider, cache, docs, stream)
}

// ProfileServiceProvider provides the profile editing service.
func ProfileServiceProvider(
	appLogger domain.Logger,
	cache domain.IdentityCacheStore,
	docs domain.ProfileDocumentStore,
	identityProvider *application.IdentityProvider,
) *application.ProfileService {
	return application.NewProfileService(appLogger, cache, docs, identityProvider)
}

// WebsocketHandlerProvider provides the snapshot fan-out handler.
func WebsocketHandlerProvider(appLogger domain.Logger, cfgProvider config.Provider, identityProvider *application.IdentityProvider) *wsadapter.Handler {
	return wsadapter.NewHandler(appLogger, cfgProvider, identityProvider)
}

// WebsocketRouterProvider provides the websocket router.
func WebsocketRouterProvider(appLogger domain.Logger, cfgProvider config.Provider, wsHandler *wsadapter.Handler) *wsadapter.Router {
	return wsadapter.NewRouter(appLogger, cfgProvider, wsHandler)
}

// SnapshotHandlerProvider provides the GET /identity handler.
func SnapshotHandlerProvider(identityProvider *application.IdentityProvider, appLogger domain.Logger) SnapshotHandler {
	return SnapshotHandler(apphttp.SnapshotHandler(identityProvider, appLogger))
}

// UpdateProfileHandlerProvider provides the PATCH /profile handler.
func UpdateProfileHandlerProvider(profiles *application.ProfileService, appLogger domain.Logger) UpdateProfileHandler {
	return UpdateProfileHandler(apphttp.UpdateProfileHandler(profiles, appLogger))
}

// DeleteAccountHandlerProvider provides the DELETE /account handler.
func DeleteAccountHandlerProvider(profiles *application.ProfileService, appLogger domain.Logger) DeleteAccountHandler {
	return DeleteAccountHandler(apphttp.DeleteAccountHandler(profiles, appLogger))
}

// AdminAPIKeyMiddlewareProvider provides the API key guard for mutating
// endpoints.
func AdminAPIKeyMiddlewareProvider(cfgProvider config.Provider, appLogger domain.Logger) AdminAPIKeyMiddleware {
	return middleware.AdminAPIKeyMiddleware(cfgProvider, appLogger)
}

// ProviderSet is the Wire provider set for the entire application.
var ProviderSet = wire.NewSet(
	InitialZapLoggerProvider,
	ConfigProvider,
	LoggerProvider,
	HTTPServeMuxProvider,
	HTTPGracefulServerProvider,

	// Infrastructure adapters
	CacheStoreProvider,
	PgxPoolProvider,
	ProfileStoreProvider,
	AuthStreamProvider,
	wire.Bind(new(domain.AuthStream), new(*appnats.AuthStreamAdapter)),

	// Application services
	IdentityProviderProvider,
	ProfileServiceProvider,

	// Delivery
	WebsocketHandlerProvider,
	WebsocketRouterProvider,
	SnapshotHandlerProvider,
	UpdateProfileHandlerProvider,
	DeleteAccountHandlerProvider,
	AdminAPIKeyMiddlewareProvider,

	NewApp,
)
