package application

import (
	"context"
	"sync"
	"time"

	"github.com/konnexhq/identity-service/internal/adapters/config"
	"github.com/konnexhq/identity-service/internal/adapters/metrics"
	"github.com/konnexhq/identity-service/internal/domain"
)

// IdentityProvider is the single process-wide authority for "who is signed
// in, what role do they have, and what is their profile". It subscribes to
// the authentication stream, resolves role and profile through the identity
// cache and the profile document store, and publishes IdentitySnapshots to
// registered listeners.
//
// Only the provider writes the published snapshot. Every other component
// observes it through Snapshot() or a registered listener.
type IdentityProvider struct {
	logger         domain.Logger
	configProvider config.Provider
	cache          domain.IdentityCacheStore
	docs           domain.ProfileDocumentStore
	stream         domain.AuthStream

	mu         sync.Mutex
	snapshot   domain.IdentitySnapshot
	generation uint64
	listeners  map[int]domain.SnapshotListener
	nextListID int

	unsubscribe func()
}

// NewIdentityProvider creates a new IdentityProvider.
func NewIdentityProvider(
	logger domain.Logger,
	configProvider config.Provider,
	cache domain.IdentityCacheStore,
	docs domain.ProfileDocumentStore,
	stream domain.AuthStream,
) *IdentityProvider {
	if logger == nil {
		panic("logger is nil in NewIdentityProvider")
	}
	if cache == nil {
		panic("cache store is nil in NewIdentityProvider")
	}
	if docs == nil {
		panic("profile document store is nil in NewIdentityProvider")
	}
	return &IdentityProvider{
		logger:         logger,
		configProvider: configProvider,
		cache:          cache,
		docs:           docs,
		stream:         stream,
		listeners:      make(map[int]domain.SnapshotListener),
		snapshot: domain.IdentitySnapshot{
			// Until the first auth event arrives nothing is trustworthy.
			IsUserLoading: true,
		},
	}
}

// Start subscribes the provider to the authentication stream. It must be
// called once before any events can be observed.
func (p *IdentityProvider) Start(ctx context.Context) error {
	unsubscribe, err := p.stream.Subscribe(ctx, p.HandleAuthEvent)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.unsubscribe = unsubscribe
	p.mu.Unlock()
	p.logger.Info(ctx, "Identity provider subscribed to auth stream")
	return nil
}

// Stop unsubscribes from the authentication stream.
func (p *IdentityProvider) Stop() {
	p.mu.Lock()
	unsubscribe := p.unsubscribe
	p.unsubscribe = nil
	p.mu.Unlock()
	if unsubscribe != nil {
		unsubscribe()
	}
}

// Snapshot returns a copy of the currently published identity state.
func (p *IdentityProvider) Snapshot() domain.IdentitySnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshot
}

// SubscribeSnapshots registers a listener invoked on every publish and
// returns a function removing it. Listeners run synchronously on the publish
// path and must not block.
func (p *IdentityProvider) SubscribeSnapshots(listener domain.SnapshotListener) func() {
	p.mu.Lock()
	id := p.nextListID
	p.nextListID++
	p.listeners[id] = listener
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.listeners, id)
		p.mu.Unlock()
	}
}

// resolutionTimeout returns the configured cap on authoritative backend
// reads; zero means none.
func (p *IdentityProvider) resolutionTimeout() time.Duration {
	if p.configProvider == nil {
		return 0
	}
	cfg := p.configProvider.Get()
	if cfg == nil || cfg.App.ResolutionTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(cfg.App.ResolutionTimeoutSeconds) * time.Second
}

// nextGeneration advances the sign-in generation. Every auth stream event
// gets a fresh generation; resolution results carrying an older one are
// discarded on publish.
func (p *IdentityProvider) nextGeneration() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.generation++
	return p.generation
}

// publishIfCurrent installs snap as the published state if generation still
// identifies the latest sign-in event, and prevents a loading regression
// within one generation. Returns whether the publish happened.
func (p *IdentityProvider) publishIfCurrent(ctx context.Context, generation uint64, snap domain.IdentitySnapshot) bool {
	p.mu.Lock()
	if generation != p.generation {
		current := p.generation
		p.mu.Unlock()
		metrics.IncrementStaleResolutionDiscarded()
		p.logger.Debug(ctx, "Discarding stale resolution result",
			"result_generation", generation, "current_generation", current)
		return false
	}
	if p.snapshot.Generation == generation && !p.snapshot.IsUserLoading && snap.IsUserLoading {
		// A publish for this sign-in event already showed loading=false;
		// never flip it back.
		p.mu.Unlock()
		return false
	}
	snap.Generation = generation
	p.snapshot = snap
	listeners := make([]domain.SnapshotListener, 0, len(p.listeners))
	for _, l := range p.listeners {
		listeners = append(listeners, l)
	}
	p.mu.Unlock()

	for _, l := range listeners {
		l(snap)
	}
	return true
}

// RefreshProfile re-publishes the current snapshot with an updated profile
// after a profile edit, provided uid is the currently signed-in user and
// resolution has settled. The provider stays the sole writer of the
// published slot; the profile service funnels its write-through here.
func (p *IdentityProvider) RefreshProfile(ctx context.Context, uid string, profile *domain.Profile) {
	p.mu.Lock()
	if p.snapshot.User == nil || p.snapshot.User.UID != uid || p.snapshot.IsUserLoading {
		p.mu.Unlock()
		return
	}
	snap := p.snapshot
	snap.Profile = profile
	p.snapshot = snap
	listeners := make([]domain.SnapshotListener, 0, len(p.listeners))
	for _, l := range p.listeners {
		listeners = append(listeners, l)
	}
	p.mu.Unlock()

	p.logger.Debug(ctx, "Published refreshed profile", "user_id", uid)
	for _, l := range listeners {
		l(snap)
	}
}
