// Package cachekeys centralizes the identity cache key conventions. Keys are
// namespaced by user id so that two users of a shared host can never observe
// each other's cached role or profile.
package cachekeys

import (
	"fmt"
	"strings"
)

// Namespace prefixes every key the service writes into the cache backend, so
// Clear can drop the whole identity namespace without touching unrelated data
// living in the same Redis database.
const Namespace = "konnex:identity:"

// RoleKey returns the cache key holding the resolved role for a user.
func RoleKey(uid string) string {
	return fmt.Sprintf("%srole_%s", Namespace, uid)
}

// ProfileKey returns the cache key holding the resolved profile document for
// a user. Profile edits write through this same key.
func ProfileKey(uid string) string {
	return fmt.Sprintf("%sprofile_%s", Namespace, uid)
}

// InNamespace reports whether key belongs to the identity cache namespace.
func InNamespace(key string) bool {
	return strings.HasPrefix(key, Namespace)
}

// ScanPattern is the match pattern covering every key in the namespace.
func ScanPattern() string {
	return Namespace + "*"
}
