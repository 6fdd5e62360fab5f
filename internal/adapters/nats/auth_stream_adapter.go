package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/nats-io/nats.go"

	"github.com/konnexhq/identity-service/internal/adapters/config"
	"github.com/konnexhq/identity-service/internal/domain"
)

var (
	ErrTokenInvalid = errors.New("auth event token is invalid")
	ErrEventInvalid = errors.New("auth event payload is invalid")
)

// authStateMessage is the wire form of an auth state transition published by
// the managed authentication front end.
type authStateMessage struct {
	Event string `json:"event"` // "signed-in" | "signed-out"
	Token string `json:"token,omitempty"`
}

// identityClaims are the JWT claims carried by a sign-in token.
type identityClaims struct {
	DisplayName string `json:"name,omitempty"`
	PhotoURL    string `json:"picture,omitempty"`
	Email       string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// AuthStreamAdapter implements domain.AuthStream over a NATS subject. Every
// sign-in event carries an HS256-signed token minted by the auth service;
// the signature is verified before the identity is trusted, and verification
// failures are delivered to the handler as stream errors rather than
// silently dropped.
type AuthStreamAdapter struct {
	nc      *nats.Conn
	logger  domain.Logger
	subject string
	secret  []byte
}

// NewAuthStreamAdapter connects to NATS and returns the adapter plus a
// cleanup function that drains the connection.
func NewAuthStreamAdapter(ctx context.Context, cfgProvider config.Provider, appLogger domain.Logger) (*AuthStreamAdapter, func(), error) {
	cfg := cfgProvider.Get()
	natsCfg := cfg.NATS

	appLogger.Info(ctx, "Connecting to NATS for auth events", "url", natsCfg.URL, "subject", natsCfg.AuthSubject)

	nc, err := nats.Connect(natsCfg.URL,
		nats.Name(fmt.Sprintf("%s-auth-stream", cfg.App.ServiceName)),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(5*time.Second),
		nats.ErrorHandler(func(c *nats.Conn, s *nats.Subscription, err error) {
			subject := ""
			if s != nil {
				subject = s.Subject
			}
			appLogger.Error(ctx, "NATS error", "subject", subject, "error", err.Error())
		}),
		nats.ClosedHandler(func(c *nats.Conn) {
			appLogger.Info(ctx, "NATS connection closed")
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			appLogger.Info(ctx, "NATS reconnected", "url", c.ConnectedUrl())
		}),
		nats.DisconnectErrHandler(func(c *nats.Conn, err error) {
			appLogger.Warn(ctx, "NATS disconnected", "error", err)
		}),
	)
	if err != nil {
		appLogger.Error(ctx, "Failed to connect to NATS", "url", natsCfg.URL, "error", err.Error())
		return nil, nil, fmt.Errorf("failed to connect to NATS at %s: %w", natsCfg.URL, err)
	}

	adapter := &AuthStreamAdapter{
		nc:      nc,
		logger:  appLogger,
		subject: natsCfg.AuthSubject,
		secret:  []byte(cfg.Auth.TokenHMACSecret),
	}

	cleanup := func() {
		appLogger.Info(context.Background(), "Draining NATS auth stream connection")
		if err := nc.Drain(); err != nil {
			appLogger.Error(context.Background(), "Error draining NATS connection", "error", err.Error())
		}
	}
	return adapter, cleanup, nil
}

// Subscribe registers handler for auth state transitions and returns an
// unsubscribe function.
func (a *AuthStreamAdapter) Subscribe(ctx context.Context, handler domain.AuthEventHandler) (func(), error) {
	sub, err := a.nc.Subscribe(a.subject, func(msg *nats.Msg) {
		handler(ctx, a.decode(ctx, msg.Data))
	})
	if err != nil {
		a.logger.Error(ctx, "Failed to subscribe to auth subject", "subject", a.subject, "error", err.Error())
		return nil, fmt.Errorf("subscribe to %q: %w", a.subject, err)
	}
	a.logger.Info(ctx, "Subscribed to auth event stream", "subject", a.subject)

	return func() {
		if err := sub.Unsubscribe(); err != nil {
			a.logger.Warn(ctx, "Failed to unsubscribe from auth subject", "subject", a.subject, "error", err.Error())
		}
	}, nil
}

// Connected reports whether the underlying NATS connection is up. Used by
// the readiness endpoint.
func (a *AuthStreamAdapter) Connected() bool {
	return a.nc != nil && a.nc.IsConnected()
}

// decode turns a raw NATS payload into an AuthEvent, verifying the sign-in
// token when present.
func (a *AuthStreamAdapter) decode(ctx context.Context, payload []byte) domain.AuthEvent {
	var msg authStateMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		a.logger.Warn(ctx, "Malformed auth event payload", "error", err.Error())
		return domain.AuthEvent{Err: fmt.Errorf("%w: %v", ErrEventInvalid, err)}
	}

	switch domain.AuthEventType(msg.Event) {
	case domain.AuthEventSignedOut:
		return domain.AuthEvent{Type: domain.AuthEventSignedOut}
	case domain.AuthEventSignedIn:
		user, err := a.verifyToken(msg.Token)
		if err != nil {
			a.logger.Warn(ctx, "Sign-in token rejected", "error", err.Error())
			return domain.AuthEvent{Type: domain.AuthEventSignedIn, Err: err}
		}
		return domain.AuthEvent{Type: domain.AuthEventSignedIn, User: user}
	default:
		a.logger.Warn(ctx, "Unknown auth event type", "event", msg.Event)
		return domain.AuthEvent{Err: fmt.Errorf("%w: unknown event %q", ErrEventInvalid, msg.Event)}
	}
}

// verifyToken validates the HS256 signature and expiry on a sign-in token
// and extracts the identity handle from its claims.
func (a *AuthStreamAdapter) verifyToken(tokenString string) (*domain.UserIdentity, error) {
	if tokenString == "" {
		return nil, fmt.Errorf("%w: signed-in event without token", ErrTokenInvalid)
	}
	if len(a.secret) == 0 {
		return nil, errors.New("auth.token_hmac_secret is not configured")
	}

	claims := &identityClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}

	return &domain.UserIdentity{
		UID:         claims.Subject,
		DisplayName: claims.DisplayName,
		Email:       claims.Email,
		PhotoURL:    claims.PhotoURL,
	}, nil
}
