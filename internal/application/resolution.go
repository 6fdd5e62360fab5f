package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/konnexhq/identity-service/internal/adapters/metrics"
	"github.com/konnexhq/identity-service/internal/domain"
	"github.com/konnexhq/identity-service/pkg/cachekeys"
	"github.com/konnexhq/identity-service/pkg/contextkeys"
	"github.com/konnexhq/identity-service/pkg/safego"
)

// HandleAuthEvent processes one authentication state transition. Exported so
// the auth stream adapter can be wired to it directly and so tests can drive
// the provider without a live stream.
func (p *IdentityProvider) HandleAuthEvent(ctx context.Context, event domain.AuthEvent) {
	generation := p.nextGeneration()

	switch {
	case event.Err != nil:
		// Auth-stream failure: the session is not trustworthy, so the
		// user is cleared and the error surfaced. Loading must end or
		// the UI would be stranded.
		metrics.IncrementAuthEvent("error")
		p.logger.Warn(ctx, "Auth stream delivered an error", "error", event.Err.Error())
		p.publishIfCurrent(ctx, generation, domain.IdentitySnapshot{
			UserError: event.Err.Error(),
		})

	case event.User == nil:
		metrics.IncrementAuthEvent("signed-out")
		p.logger.Info(ctx, "User signed out")
		p.publishIfCurrent(ctx, generation, domain.IdentitySnapshot{})
		// Full clear so a shared host never leaks the previous user's
		// cached identity after logout. Cache failure is non-fatal.
		if err := p.cache.Clear(ctx); err != nil {
			p.logger.Warn(ctx, "Cache clear on sign-out failed", "error", err.Error())
		}

	default:
		metrics.IncrementAuthEvent("signed-in")
		user := *event.User
		rctx := context.WithValue(ctx, contextkeys.UserIDKey, user.UID)
		rctx = context.WithValue(rctx, contextkeys.ResolutionIDKey, uuid.NewString())
		p.logger.Info(rctx, "User signed in, starting identity resolution")
		safego.Execute(rctx, p.logger, "IdentityResolution", func() {
			p.resolve(rctx, generation, user)
		})
	}
}

// resolve runs the full cache-then-revalidate sequence for one sign-in
// event: optimistic publish from cache when possible, then authoritative
// resolution against the profile collections, write-back, and the settling
// publish. Every publish is tagged with the sign-in generation so a slow
// resolution for a superseded user can never overwrite newer state.
func (p *IdentityProvider) resolve(ctx context.Context, generation uint64, user domain.UserIdentity) {
	cachedRole, cachedProfile := p.hydrateFromCache(ctx, user.UID)
	if cachedRole.Valid() {
		// Optimistic, possibly-stale publish: unblocks the UI without
		// waiting on the network. The authoritative publish below
		// always follows it.
		p.publishIfCurrent(ctx, generation, domain.IdentitySnapshot{
			User:    &user,
			Role:    cachedRole,
			Profile: cachedProfile,
		})
	} else {
		p.publishIfCurrent(ctx, generation, domain.IdentitySnapshot{
			User:          &user,
			IsUserLoading: true,
		})
	}

	rctx := ctx
	if timeout := p.resolutionTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		rctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	started := time.Now()
	role, profile, err := p.resolveAuthoritative(rctx, user.UID)
	if err != nil {
		metrics.ObserveResolution("error", time.Since(started).Seconds())
		p.logger.Error(ctx, "Authoritative identity resolution failed", "error", err.Error())
		p.publishError(ctx, generation, user, err)
		return
	}

	if role.Valid() {
		metrics.ObserveResolution("resolved", time.Since(started).Seconds())
		// Write-back so the next session hydrates instantly. Cache
		// failures are already logged by the store and never fail a
		// resolution.
		_ = p.cache.Set(ctx, cachekeys.RoleKey(user.UID), string(role))
		if profile != nil {
			_ = p.cache.Set(ctx, cachekeys.ProfileKey(user.UID), profile)
		}
	} else {
		metrics.ObserveResolution("no_role", time.Since(started).Seconds())
		// A null role is deliberately not cached: a user who has not
		// picked a role yet must be re-checked on every session
		// instead of being remembered as roleless for a day.
		p.logger.Info(ctx, "User has no role yet")
	}

	p.publishIfCurrent(ctx, generation, domain.IdentitySnapshot{
		User:    &user,
		Role:    role,
		Profile: profile,
	})
}

// hydrateFromCache performs the two independent cache lookups concurrently.
// Either lookup failing (miss or storage error) simply yields a zero result;
// the cache is never load-bearing.
func (p *IdentityProvider) hydrateFromCache(ctx context.Context, uid string) (domain.Role, *domain.Profile) {
	var (
		role    domain.Role
		profile *domain.Profile
		wg      sync.WaitGroup
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		raw, err := p.cache.Get(ctx, cachekeys.RoleKey(uid))
		switch {
		case err == nil:
			var s string
			if jerr := json.Unmarshal(raw, &s); jerr != nil {
				metrics.ObserveCacheLookup("role", "error")
				p.logger.Warn(ctx, "Cached role is malformed", "error", jerr.Error())
				return
			}
			if r := domain.Role(s); r.Valid() {
				role = r
				metrics.ObserveCacheLookup("role", "hit")
			} else {
				metrics.ObserveCacheLookup("role", "error")
				p.logger.Warn(ctx, "Cached role has unknown value", "role", s)
			}
		case errors.Is(err, domain.ErrCacheMiss):
			metrics.ObserveCacheLookup("role", "miss")
		default:
			metrics.ObserveCacheLookup("role", "error")
		}
	}()
	go func() {
		defer wg.Done()
		raw, err := p.cache.Get(ctx, cachekeys.ProfileKey(uid))
		switch {
		case err == nil:
			var prof domain.Profile
			if jerr := json.Unmarshal(raw, &prof); jerr != nil {
				metrics.ObserveCacheLookup("profile", "error")
				p.logger.Warn(ctx, "Cached profile is malformed", "error", jerr.Error())
				return
			}
			profile = &prof
			metrics.ObserveCacheLookup("profile", "hit")
		case errors.Is(err, domain.ErrCacheMiss):
			metrics.ObserveCacheLookup("profile", "miss")
		default:
			metrics.ObserveCacheLookup("profile", "error")
		}
	}()
	wg.Wait()

	return role, profile
}

type probeResult struct {
	doc domain.Document
	err error
}

// resolveAuthoritative probes both profile collections concurrently and
// derives the role from which one holds a document for uid. A job-seeker
// document wins over an employer one; the data model guarantees at most one
// exists.
func (p *IdentityProvider) resolveAuthoritative(ctx context.Context, uid string) (domain.Role, *domain.Profile, error) {
	seekCh := make(chan probeResult, 1)
	empCh := make(chan probeResult, 1)

	go func() {
		doc, err := p.docs.GetDocument(ctx, domain.CollectionJobSeekerProfiles, uid)
		seekCh <- probeResult{doc: doc, err: err}
	}()
	go func() {
		doc, err := p.docs.GetDocument(ctx, domain.CollectionEmployerProfiles, uid)
		empCh <- probeResult{doc: doc, err: err}
	}()

	seek, emp := <-seekCh, <-empCh
	if seek.err != nil {
		return domain.RoleNone, nil, fmt.Errorf("job-seeker profile probe: %w", seek.err)
	}
	if emp.err != nil {
		return domain.RoleNone, nil, fmt.Errorf("employer profile probe: %w", emp.err)
	}

	switch {
	case seek.doc.Exists:
		profile, err := domain.NewProfile(domain.RoleJobSeeker, seek.doc.Data)
		if err != nil {
			return domain.RoleNone, nil, err
		}
		return domain.RoleJobSeeker, profile, nil
	case emp.doc.Exists:
		profile, err := domain.NewProfile(domain.RoleEmployer, emp.doc.Data)
		if err != nil {
			return domain.RoleNone, nil, err
		}
		return domain.RoleEmployer, profile, nil
	default:
		return domain.RoleNone, nil, nil
	}
}

// publishError surfaces a backend-read failure. The last published role and
// profile for this user are retained so the UI can keep operating in a
// possibly-stale mode instead of bouncing to a logged-out state.
func (p *IdentityProvider) publishError(ctx context.Context, generation uint64, user domain.UserIdentity, err error) {
	snap := domain.IdentitySnapshot{
		User:      &user,
		UserError: err.Error(),
	}
	p.mu.Lock()
	if p.snapshot.User != nil && p.snapshot.User.UID == user.UID {
		snap.Role = p.snapshot.Role
		snap.Profile = p.snapshot.Profile
	}
	p.mu.Unlock()
	p.publishIfCurrent(ctx, generation, snap)
}
