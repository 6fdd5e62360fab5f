package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/konnexhq/identity-service/internal/domain"
	"github.com/konnexhq/identity-service/pkg/cachekeys"
)

func newTestProvider(cache domain.IdentityCacheStore, docs domain.ProfileDocumentStore) (*IdentityProvider, *stubAuthStream, chan domain.IdentitySnapshot) {
	stream := &stubAuthStream{}
	provider := NewIdentityProvider(nopLogger{}, nil, cache, docs, stream)

	published := make(chan domain.IdentitySnapshot, 32)
	provider.SubscribeSnapshots(func(snap domain.IdentitySnapshot) {
		published <- snap
	})
	return provider, stream, published
}

func waitSnapshot(t *testing.T, ch chan domain.IdentitySnapshot) domain.IdentitySnapshot {
	t.Helper()
	select {
	case snap := <-ch:
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a published snapshot")
		return domain.IdentitySnapshot{}
	}
}

func assertNoSnapshot(t *testing.T, ch chan domain.IdentitySnapshot) {
	t.Helper()
	select {
	case snap := <-ch:
		t.Fatalf("unexpected snapshot published: %+v", snap)
	case <-time.After(150 * time.Millisecond):
	}
}

func signIn(uid string) domain.AuthEvent {
	return domain.AuthEvent{
		Type: domain.AuthEventSignedIn,
		User: &domain.UserIdentity{UID: uid, Email: uid + "@konnex.test"},
	}
}

func TestSignOutClearsStateAndCache(t *testing.T) {
	ctx := context.Background()
	cache := newMockCacheStore()
	docs := newMockDocStore()
	provider, stream, published := newTestProvider(cache, docs)
	if err := provider.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer provider.Stop()

	cache.Set(ctx, cachekeys.RoleKey("user-a"), string(domain.RoleEmployer))

	stream.emit(ctx, domain.AuthEvent{Type: domain.AuthEventSignedOut})

	snap := waitSnapshot(t, published)
	if snap.User != nil || snap.Role != domain.RoleNone || snap.Profile != nil {
		t.Fatalf("signed-out snapshot should be empty, got %+v", snap)
	}
	if snap.IsUserLoading {
		t.Fatal("signed-out snapshot must not be loading")
	}
	if cache.len() != 0 {
		t.Fatalf("cache should be cleared on sign-out, %d entries remain", cache.len())
	}
}

func TestCacheMissPublishesLoadingThenAuthoritative(t *testing.T) {
	ctx := context.Background()
	cache := newMockCacheStore()
	docs := newMockDocStore()
	docs.put(domain.CollectionJobSeekerProfiles, "user-a", `{"full_name":"Ada","headline":"Gopher"}`)
	provider, _, published := newTestProvider(cache, docs)

	provider.HandleAuthEvent(ctx, signIn("user-a"))

	first := waitSnapshot(t, published)
	if !first.IsUserLoading {
		t.Fatalf("cache miss must publish a loading state first, got %+v", first)
	}
	if first.User == nil || first.User.UID != "user-a" {
		t.Fatalf("loading snapshot should carry the user, got %+v", first.User)
	}

	second := waitSnapshot(t, published)
	if second.IsUserLoading {
		t.Fatal("authoritative snapshot must end loading")
	}
	if second.Role != domain.RoleJobSeeker {
		t.Fatalf("role = %q, want %q", second.Role, domain.RoleJobSeeker)
	}
	if second.Profile == nil || second.Profile.JobSeeker == nil || second.Profile.JobSeeker.FullName != "Ada" {
		t.Fatalf("profile not resolved: %+v", second.Profile)
	}

	// Write-back happened under the namespaced keys.
	if !cache.has(cachekeys.RoleKey("user-a")) || !cache.has(cachekeys.ProfileKey("user-a")) {
		t.Fatal("resolved role and profile must be written back to the cache")
	}
}

func TestStaleThenFreshConvergence(t *testing.T) {
	// Cached role says job-seeker, but the backend has since moved the
	// user to employer: the optimistic publish shows the stale role, the
	// authoritative publish settles on the fresh one.
	ctx := context.Background()
	cache := newMockCacheStore()
	cache.Set(ctx, cachekeys.RoleKey("user-a"), string(domain.RoleJobSeeker))
	cache.Set(ctx, cachekeys.ProfileKey("user-a"),
		&domain.Profile{Role: domain.RoleJobSeeker, JobSeeker: &domain.JobSeekerProfile{FullName: "Ada"}})

	docs := newMockDocStore()
	docs.put(domain.CollectionEmployerProfiles, "user-a", `{"company_name":"Acme"}`)
	provider, _, published := newTestProvider(cache, docs)

	provider.HandleAuthEvent(ctx, signIn("user-a"))

	optimistic := waitSnapshot(t, published)
	if optimistic.IsUserLoading {
		t.Fatal("a cached role must end loading optimistically")
	}
	if optimistic.Role != domain.RoleJobSeeker {
		t.Fatalf("optimistic role = %q, want cached %q", optimistic.Role, domain.RoleJobSeeker)
	}

	authoritative := waitSnapshot(t, published)
	if authoritative.Role != domain.RoleEmployer {
		t.Fatalf("authoritative role = %q, want %q", authoritative.Role, domain.RoleEmployer)
	}
	if authoritative.Profile == nil || authoritative.Profile.Employer == nil || authoritative.Profile.Employer.CompanyName != "Acme" {
		t.Fatalf("authoritative profile not settled: %+v", authoritative.Profile)
	}
	if authoritative.IsUserLoading {
		t.Fatal("loading must never come back within the same sign-in event")
	}
	assertNoSnapshot(t, published)
}

func TestNoRoleIsNotCached(t *testing.T) {
	ctx := context.Background()
	cache := newMockCacheStore()
	docs := newMockDocStore() // no documents anywhere
	provider, _, published := newTestProvider(cache, docs)

	provider.HandleAuthEvent(ctx, signIn("user-new"))

	_ = waitSnapshot(t, published) // loading
	settled := waitSnapshot(t, published)
	if settled.Role != domain.RoleNone || settled.Profile != nil {
		t.Fatalf("new user should settle roleless, got %+v", settled)
	}
	if settled.IsUserLoading {
		t.Fatal("loading must end for roleless users")
	}
	if cache.has(cachekeys.RoleKey("user-new")) {
		t.Fatal("a null role must not be cached; the user is re-checked next session")
	}
}

func TestCrossUserIsolation(t *testing.T) {
	// Cache holds user A's role; signing in as B must not leak it.
	ctx := context.Background()
	cache := newMockCacheStore()
	cache.Set(ctx, cachekeys.RoleKey("user-a"), string(domain.RoleEmployer))

	docs := newMockDocStore()
	provider, _, published := newTestProvider(cache, docs)

	provider.HandleAuthEvent(ctx, signIn("user-b"))

	first := waitSnapshot(t, published)
	if first.Role != domain.RoleNone {
		t.Fatalf("user B's cache miss must publish no role, got %q", first.Role)
	}
	if !first.IsUserLoading {
		t.Fatal("user B must be loading until authoritative resolution")
	}
}

func TestStorageUnavailableDegradation(t *testing.T) {
	ctx := context.Background()
	cache := newMockCacheStore()
	cache.failAll = true

	docs := newMockDocStore()
	docs.put(domain.CollectionEmployerProfiles, "user-a", `{"company_name":"Acme"}`)
	provider, _, published := newTestProvider(cache, docs)

	provider.HandleAuthEvent(ctx, signIn("user-a"))

	first := waitSnapshot(t, published)
	if !first.IsUserLoading {
		t.Fatal("a failing cache behaves as a miss: loading first")
	}
	settled := waitSnapshot(t, published)
	if settled.Role != domain.RoleEmployer || settled.IsUserLoading {
		t.Fatalf("resolution must settle via backend alone, got %+v", settled)
	}
	if settled.UserError != "" {
		t.Fatalf("cache failures must never surface as user errors, got %q", settled.UserError)
	}
}

func TestBackendErrorRetainsLastPublishedIdentity(t *testing.T) {
	ctx := context.Background()
	cache := newMockCacheStore()
	docs := newMockDocStore()
	docs.put(domain.CollectionJobSeekerProfiles, "user-a", `{"full_name":"Ada"}`)
	provider, _, published := newTestProvider(cache, docs)

	provider.HandleAuthEvent(ctx, signIn("user-a"))
	_ = waitSnapshot(t, published)
	good := waitSnapshot(t, published)
	if good.Role != domain.RoleJobSeeker {
		t.Fatalf("precondition: first resolution should find job-seeker, got %q", good.Role)
	}

	// Revalidation for the same user now hits a failing backend.
	docs.mu.Lock()
	docs.readErr = errors.New("backend unreachable")
	docs.mu.Unlock()

	provider.HandleAuthEvent(ctx, signIn("user-a"))
	optimistic := waitSnapshot(t, published)
	if optimistic.Role != domain.RoleJobSeeker {
		t.Fatalf("cached role should hydrate optimistically, got %q", optimistic.Role)
	}
	failed := waitSnapshot(t, published)
	if failed.UserError == "" {
		t.Fatal("backend failure must surface via UserError")
	}
	if failed.IsUserLoading {
		t.Fatal("an error path must never strand the UI in loading")
	}
	if failed.Role != domain.RoleJobSeeker || failed.User == nil || failed.User.UID != "user-a" {
		t.Fatalf("prior role and user must be retained on backend error, got %+v", failed)
	}
}

func TestAuthStreamErrorClearsUser(t *testing.T) {
	ctx := context.Background()
	provider, _, published := newTestProvider(newMockCacheStore(), newMockDocStore())

	provider.HandleAuthEvent(ctx, domain.AuthEvent{Err: errors.New("malformed session")})

	snap := waitSnapshot(t, published)
	if snap.User != nil {
		t.Fatal("auth stream errors must clear the user")
	}
	if snap.UserError == "" || snap.IsUserLoading {
		t.Fatalf("auth error must surface and end loading, got %+v", snap)
	}
}

func TestStaleResolutionIsDiscarded(t *testing.T) {
	ctx := context.Background()
	cache := newMockCacheStore()
	docs := newMockDocStore()
	docs.put(domain.CollectionJobSeekerProfiles, "user-a", `{"full_name":"Ada"}`)
	docs.put(domain.CollectionEmployerProfiles, "user-b", `{"company_name":"Acme"}`)
	gate := docs.gate("user-a")

	provider, _, published := newTestProvider(cache, docs)

	// User A signs in; their authoritative resolution is held in flight.
	provider.HandleAuthEvent(ctx, signIn("user-a"))
	loadingA := waitSnapshot(t, published)
	if loadingA.User.UID != "user-a" {
		t.Fatalf("expected user-a loading publish, got %+v", loadingA)
	}

	// User B signs in before A's resolution completes.
	provider.HandleAuthEvent(ctx, signIn("user-b"))
	loadingB := waitSnapshot(t, published)
	if loadingB.User.UID != "user-b" {
		t.Fatalf("expected user-b loading publish, got %+v", loadingB)
	}
	settledB := waitSnapshot(t, published)
	if settledB.User.UID != "user-b" || settledB.Role != domain.RoleEmployer {
		t.Fatalf("expected user-b to settle as employer, got %+v", settledB)
	}

	// Release A's slow resolution; its result must be discarded.
	close(gate)
	assertNoSnapshot(t, published)

	final := provider.Snapshot()
	if final.User == nil || final.User.UID != "user-b" || final.Role != domain.RoleEmployer {
		t.Fatalf("a stale resolution overwrote newer state: %+v", final)
	}
}

func TestSnapshotListenersUnsubscribe(t *testing.T) {
	ctx := context.Background()
	provider, _, _ := newTestProvider(newMockCacheStore(), newMockDocStore())

	calls := 0
	remove := provider.SubscribeSnapshots(func(domain.IdentitySnapshot) { calls++ })
	provider.HandleAuthEvent(ctx, domain.AuthEvent{Type: domain.AuthEventSignedOut})
	if calls != 1 {
		t.Fatalf("listener should have seen 1 publish, saw %d", calls)
	}

	remove()
	provider.HandleAuthEvent(ctx, domain.AuthEvent{Type: domain.AuthEventSignedOut})
	if calls != 1 {
		t.Fatalf("removed listener should see no further publishes, saw %d", calls)
	}
}
