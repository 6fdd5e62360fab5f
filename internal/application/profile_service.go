package application

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/konnexhq/identity-service/internal/domain"
	"github.com/konnexhq/identity-service/pkg/cachekeys"
)

// ProfileService carries the profile-editing flows: merge-writes against the
// profile document store that write through the identity cache under the
// same key convention the resolution path reads, plus account deletion.
type ProfileService struct {
	logger   domain.Logger
	cache    domain.IdentityCacheStore
	docs     domain.ProfileDocumentStore
	provider *IdentityProvider
}

// NewProfileService creates a new ProfileService.
func NewProfileService(
	logger domain.Logger,
	cache domain.IdentityCacheStore,
	docs domain.ProfileDocumentStore,
	provider *IdentityProvider,
) *ProfileService {
	return &ProfileService{
		logger:   logger,
		cache:    cache,
		docs:     docs,
		provider: provider,
	}
}

// UpdateProfile merge-writes a partial profile update for uid in the
// collection belonging to role, writes the merged result through the cache,
// and re-publishes the snapshot when uid is the currently signed-in user.
// Fields absent from patch are never clobbered.
func (s *ProfileService) UpdateProfile(ctx context.Context, role domain.Role, uid string, patch json.RawMessage) (*domain.Profile, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("cannot update profile for role %q", role)
	}
	if uid == "" {
		return nil, fmt.Errorf("uid is required")
	}

	doc, err := s.docs.MergeDocument(ctx, role.Collection(), uid, patch)
	if err != nil {
		return nil, err
	}

	profile, err := domain.NewProfile(role, doc.Data)
	if err != nil {
		return nil, err
	}

	// Write-through under the same key the next sign-in hydrates from.
	// Cache failure is non-fatal: the document store already holds the
	// authoritative result.
	if cacheErr := s.cache.Set(ctx, cachekeys.ProfileKey(uid), profile); cacheErr != nil {
		s.logger.Warn(ctx, "Profile write-through to cache failed", "uid", uid, "error", cacheErr.Error())
	}

	s.provider.RefreshProfile(ctx, uid, profile)
	s.logger.Info(ctx, "Profile updated", "uid", uid, "role", string(role))
	return profile, nil
}

// DeleteAccount removes both potential profile documents for uid and clears
// the identity cache so no trace of the account survives on this host. The
// managed auth service emits the sign-out event that settles the published
// state.
func (s *ProfileService) DeleteAccount(ctx context.Context, uid string) error {
	if uid == "" {
		return fmt.Errorf("uid is required")
	}

	if err := s.docs.DeleteDocument(ctx, domain.CollectionJobSeekerProfiles, uid); err != nil {
		return err
	}
	if err := s.docs.DeleteDocument(ctx, domain.CollectionEmployerProfiles, uid); err != nil {
		return err
	}

	if err := s.cache.Clear(ctx); err != nil {
		s.logger.Warn(ctx, "Cache clear on account deletion failed", "uid", uid, "error", err.Error())
	}

	s.logger.Info(ctx, "Account deleted", "uid", uid)
	return nil
}
