package domain

import (
	"encoding/json"
	"testing"
	"time"
)

func TestRoleValid(t *testing.T) {
	if !RoleJobSeeker.Valid() || !RoleEmployer.Valid() {
		t.Fatal("the two assignable roles must be valid")
	}
	if RoleNone.Valid() {
		t.Fatal("the empty role is not assignable")
	}
	if Role("admin").Valid() {
		t.Fatal("unknown role strings are not assignable")
	}
}

func TestRoleCollection(t *testing.T) {
	if got := RoleJobSeeker.Collection(); got != CollectionJobSeekerProfiles {
		t.Fatalf("job-seeker collection = %q", got)
	}
	if got := RoleEmployer.Collection(); got != CollectionEmployerProfiles {
		t.Fatalf("employer collection = %q", got)
	}
	if got := RoleNone.Collection(); got != "" {
		t.Fatalf("roleless collection = %q, want empty", got)
	}
}

func TestProfileJSONRoundTrip(t *testing.T) {
	original := Profile{
		Role: RoleJobSeeker,
		JobSeeker: &JobSeekerProfile{
			FullName: "Ada Lovelace",
			Headline: "Gopher",
			Skills:   []string{"go", "sql"},
		},
	}

	raw, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded Profile
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Role != RoleJobSeeker {
		t.Fatalf("role = %q after round trip", decoded.Role)
	}
	if decoded.Employer != nil {
		t.Fatal("wrong union variant populated")
	}
	if decoded.JobSeeker == nil || decoded.JobSeeker.FullName != "Ada Lovelace" || len(decoded.JobSeeker.Skills) != 2 {
		t.Fatalf("job seeker data lost in round trip: %+v", decoded.JobSeeker)
	}
}

func TestProfileUnmarshalRolelessEnvelope(t *testing.T) {
	var p Profile
	if err := json.Unmarshal([]byte(`{"role":"","data":null}`), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if p.Role != RoleNone || p.JobSeeker != nil || p.Employer != nil {
		t.Fatalf("roleless envelope must decode to an empty profile, got %+v", p)
	}
}

func TestNewProfileRejectsRoleNone(t *testing.T) {
	if _, err := NewProfile(RoleNone, json.RawMessage(`{}`)); err == nil {
		t.Fatal("NewProfile must reject the empty role")
	}
}

func TestCacheEntryExpired(t *testing.T) {
	written := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	entry := CacheEntry{Timestamp: written.UnixMilli()}

	if entry.Expired(written.Add(DefaultEntryTTL), DefaultEntryTTL) {
		t.Fatal("an entry exactly at the TTL boundary is still valid")
	}
	if !entry.Expired(written.Add(DefaultEntryTTL+time.Millisecond), DefaultEntryTTL) {
		t.Fatal("an entry past the TTL boundary is expired")
	}
}
