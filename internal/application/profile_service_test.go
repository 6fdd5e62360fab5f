package application

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/konnexhq/identity-service/internal/domain"
	"github.com/konnexhq/identity-service/pkg/cachekeys"
)

func TestUpdateProfileMergesAndWritesThrough(t *testing.T) {
	ctx := context.Background()
	cache := newMockCacheStore()
	docs := newMockDocStore()
	docs.put(domain.CollectionJobSeekerProfiles, "user-a", `{"full_name":"Ada","headline":"Gopher"}`)
	provider, _, published := newTestProvider(cache, docs)
	service := NewProfileService(nopLogger{}, cache, docs, provider)

	// Settle a signed-in snapshot first so the update has someone to refresh.
	provider.HandleAuthEvent(ctx, signIn("user-a"))
	_ = waitSnapshot(t, published) // loading
	_ = waitSnapshot(t, published) // authoritative

	profile, err := service.UpdateProfile(ctx, domain.RoleJobSeeker, "user-a", json.RawMessage(`{"headline":"Staff Gopher"}`))
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if profile.JobSeeker == nil {
		t.Fatalf("profile union missing job seeker data: %+v", profile)
	}
	if profile.JobSeeker.Headline != "Staff Gopher" {
		t.Fatalf("headline = %q, want patched value", profile.JobSeeker.Headline)
	}
	if profile.JobSeeker.FullName != "Ada" {
		t.Fatalf("full_name = %q, fields absent from the patch must survive", profile.JobSeeker.FullName)
	}

	// The cache now holds the merged result under the resolution key.
	raw, err := cache.Get(ctx, cachekeys.ProfileKey("user-a"))
	if err != nil {
		t.Fatalf("cache Get after update: %v", err)
	}
	var cached domain.Profile
	if err := json.Unmarshal(raw, &cached); err != nil {
		t.Fatalf("unmarshal cached profile: %v", err)
	}
	if cached.JobSeeker == nil || cached.JobSeeker.Headline != "Staff Gopher" {
		t.Fatalf("cached profile not written through: %+v", cached)
	}

	// The signed-in snapshot is republished with the fresh profile.
	refreshed := waitSnapshot(t, published)
	if refreshed.Profile == nil || refreshed.Profile.JobSeeker == nil || refreshed.Profile.JobSeeker.Headline != "Staff Gopher" {
		t.Fatalf("snapshot not refreshed after update: %+v", refreshed.Profile)
	}
	if refreshed.Role != domain.RoleJobSeeker {
		t.Fatalf("refresh must not change the role, got %q", refreshed.Role)
	}
}

func TestUpdateProfileForOtherUserDoesNotRepublish(t *testing.T) {
	ctx := context.Background()
	cache := newMockCacheStore()
	docs := newMockDocStore()
	docs.put(domain.CollectionJobSeekerProfiles, "user-a", `{"full_name":"Ada"}`)
	provider, _, published := newTestProvider(cache, docs)
	service := NewProfileService(nopLogger{}, cache, docs, provider)

	provider.HandleAuthEvent(ctx, signIn("user-a"))
	_ = waitSnapshot(t, published)
	_ = waitSnapshot(t, published)

	if _, err := service.UpdateProfile(ctx, domain.RoleEmployer, "user-b", json.RawMessage(`{"company_name":"Acme"}`)); err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}

	// user-b's write lands in the store and cache but user-a's snapshot
	// stays untouched.
	if !cache.has(cachekeys.ProfileKey("user-b")) {
		t.Fatal("other user's profile should still be cached")
	}
	assertNoSnapshot(t, published)
}

func TestUpdateProfileRejectsInvalidInput(t *testing.T) {
	ctx := context.Background()
	cache := newMockCacheStore()
	docs := newMockDocStore()
	provider, _, _ := newTestProvider(cache, docs)
	service := NewProfileService(nopLogger{}, cache, docs, provider)

	if _, err := service.UpdateProfile(ctx, domain.Role("admin"), "user-a", json.RawMessage(`{}`)); err == nil {
		t.Fatal("unknown role must be rejected")
	}
	if _, err := service.UpdateProfile(ctx, domain.RoleJobSeeker, "", json.RawMessage(`{}`)); err == nil {
		t.Fatal("empty uid must be rejected")
	}
	if cache.setCalls != 0 {
		t.Fatal("rejected updates must not touch the cache")
	}
}

func TestUpdateProfileSurvivesCacheFailure(t *testing.T) {
	ctx := context.Background()
	cache := newMockCacheStore()
	cache.failAll = true
	docs := newMockDocStore()
	provider, _, _ := newTestProvider(cache, docs)
	service := NewProfileService(nopLogger{}, cache, docs, provider)

	profile, err := service.UpdateProfile(ctx, domain.RoleEmployer, "user-a", json.RawMessage(`{"company_name":"Acme"}`))
	if err != nil {
		t.Fatalf("UpdateProfile must not fail on cache errors: %v", err)
	}
	if profile.Employer == nil || profile.Employer.CompanyName != "Acme" {
		t.Fatalf("merged profile not returned: %+v", profile)
	}
}

func TestDeleteAccountRemovesDocumentsAndClearsCache(t *testing.T) {
	ctx := context.Background()
	cache := newMockCacheStore()
	docs := newMockDocStore()
	docs.put(domain.CollectionJobSeekerProfiles, "user-a", `{"full_name":"Ada"}`)
	docs.put(domain.CollectionEmployerProfiles, "user-a", `{"company_name":"Acme"}`)
	cache.Set(ctx, cachekeys.RoleKey("user-a"), string(domain.RoleJobSeeker))
	provider, _, _ := newTestProvider(cache, docs)
	service := NewProfileService(nopLogger{}, cache, docs, provider)

	if err := service.DeleteAccount(ctx, "user-a"); err != nil {
		t.Fatalf("DeleteAccount: %v", err)
	}

	for _, collection := range []string{domain.CollectionJobSeekerProfiles, domain.CollectionEmployerProfiles} {
		doc, err := docs.GetDocument(ctx, collection, "user-a")
		if err != nil {
			t.Fatalf("GetDocument(%s): %v", collection, err)
		}
		if doc.Exists {
			t.Fatalf("document in %s should be deleted", collection)
		}
	}
	if cache.clearCalls != 1 {
		t.Fatalf("cache Clear calls = %d, want 1", cache.clearCalls)
	}
	if cache.len() != 0 {
		t.Fatal("cache should be empty after account deletion")
	}
}
