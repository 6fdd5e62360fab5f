package cachekeys

import "testing"

func TestKeys(t *testing.T) {
	if got := RoleKey("abc123"); got != "konnex:identity:role_abc123" {
		t.Fatalf("RoleKey = %q", got)
	}
	if got := ProfileKey("abc123"); got != "konnex:identity:profile_abc123" {
		t.Fatalf("ProfileKey = %q", got)
	}
}

func TestCrossUserKeysNeverCollide(t *testing.T) {
	if RoleKey("user-a") == RoleKey("user-b") {
		t.Fatal("role keys must be distinct per user")
	}
	if RoleKey("user-a") == ProfileKey("user-a") {
		t.Fatal("role and profile keys must be distinct for one user")
	}
}

func TestInNamespace(t *testing.T) {
	if !InNamespace(RoleKey("user-a")) {
		t.Fatal("generated keys belong to the namespace")
	}
	if InNamespace("session:user-a") {
		t.Fatal("foreign keys are outside the namespace")
	}
}
