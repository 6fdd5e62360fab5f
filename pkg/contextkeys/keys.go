package contextkeys

// contextKey is an unexported type for context keys to avoid collisions.
type contextKey string

const (
	// RequestIDKey is the context key for storing and retrieving a request ID.
	RequestIDKey contextKey = "request_id"

	// UserIDKey is the context key for the user id a resolution targets.
	UserIDKey contextKey = "user_id"

	// ResolutionIDKey is the context key for the id assigned to one
	// identity resolution attempt.
	ResolutionIDKey contextKey = "resolution_id"
)

// String makes contextKey satisfy fmt.Stringer to help with debugging/logging of keys themselves.
func (c contextKey) String() string {
	return string(c)
}
