package domain

import "context"

// AuthEventType discriminates authentication stream events.
type AuthEventType string

const (
	AuthEventSignedIn  AuthEventType = "signed-in"
	AuthEventSignedOut AuthEventType = "signed-out"
)

// AuthEvent is one transition on the authentication stream. For signed-in
// events User carries the verified identity; for signed-out events it is nil.
// Err is set when the stream itself failed to deliver or verify an event
// (e.g. a sign-in token that does not pass signature validation); the
// identity resolution provider surfaces such failures as UserError.
type AuthEvent struct {
	Type AuthEventType
	User *UserIdentity
	Err  error
}

// AuthEventHandler is invoked for every authentication state transition.
type AuthEventHandler func(ctx context.Context, event AuthEvent)

// AuthStream is the boundary to the managed authentication service. The
// Konnex front end signs users in and out against that service; this stream
// delivers the resulting state transitions to the identity resolution
// provider.
type AuthStream interface {
	// Subscribe registers handler for all subsequent auth events and
	// returns an unsubscribe function. The handler is invoked from the
	// stream's own goroutine; the provider is responsible for any
	// serialization it needs.
	Subscribe(ctx context.Context, handler AuthEventHandler) (func(), error)
}
