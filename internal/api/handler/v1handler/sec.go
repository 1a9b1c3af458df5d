package v1handler

import (
	"context"
	"crypto/rsa"
	"fmt"
	"net/http"
	"qrshield/internal/config"
	"qrshield/pkg/serrors"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ctxKey is the type of context keys set by this package.
type ctxKey string

// UserIDKey is the context key under which the authenticated subject is stored.
const UserIDKey ctxKey = "UserID"

// BearerAuth carries the token of an Authorization: Bearer header.
type BearerAuth struct {
	Token string
}

// SecHandlerOptions configures bearer authentication.
type SecHandlerOptions struct {
	// PublicKey is the PEM encoded RSA public key. Empty disables authentication.
	PublicKey string
}

// NewSecHandlerOptions constructs SecHandlerOptions from the application config.
func NewSecHandlerOptions(cfg *config.Config) *SecHandlerOptions {
	if !cfg.JWT.Enabled {
		return &SecHandlerOptions{}
	}

	return &SecHandlerOptions{PublicKey: cfg.JWT.PublicKey}
}

// SecHandler verifies RS256 bearer tokens whose subject is a user UUID.
type SecHandler struct {
	key *rsa.PublicKey
}

// NewSecHandler parses the configured public key. Nil options or an empty key
// produce a handler that lets every request through anonymously.
func NewSecHandler(opts *SecHandlerOptions) (*SecHandler, error) {
	if opts == nil || opts.PublicKey == "" {
		return &SecHandler{}, nil
	}

	key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(opts.PublicKey))
	if err != nil {
		return nil, fmt.Errorf("could not parse RSA public key: %w", err)
	}

	return &SecHandler{key: key}, nil
}

// Enabled reports whether requests must carry a valid token.
func (s *SecHandler) Enabled() bool {
	return s != nil && s.key != nil
}

// HandleBearerAuth validates t and stores the subject under UserIDKey.
func (s *SecHandler) HandleBearerAuth(ctx context.Context, _ string, t BearerAuth) (context.Context, error) {
	if !s.Enabled() {
		return ctx, nil
	}

	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(t.Token, &claims, func(*jwt.Token) (any, error) {
		return s.key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return ctx, serrors.Wrap(serrors.ErrUnauthorized, err, "invalid token")
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return ctx, serrors.Wrap(serrors.ErrUnauthorized, err, "invalid token subject")
	}

	return context.WithValue(ctx, UserIDKey, userID), nil
}

// authenticate extracts the bearer token of r and validates it.
func (s *SecHandler) authenticate(r *http.Request) (context.Context, error) {
	ctx := r.Context()
	if !s.Enabled() {
		return ctx, nil
	}

	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return ctx, serrors.With(serrors.ErrUnauthorized, "missing bearer token")
	}

	return s.HandleBearerAuth(ctx, r.URL.Path, BearerAuth{Token: strings.TrimSpace(token)})
}

// GetUserIDFromContext returns the authenticated subject, if any.
func GetUserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(UserIDKey).(uuid.UUID)

	return id, ok
}
