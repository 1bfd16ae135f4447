// Package identity verifies the ID tokens the browser obtains from Firebase
// Authentication and carries the resulting Identity through request contexts.
package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Identity is the verified caller.
type Identity struct {
	UID           string `json:"uid"`
	Email         string `json:"email,omitempty"`
	EmailVerified bool   `json:"emailVerified"`
	Name          string `json:"name,omitempty"`
	Picture       string `json:"picture,omitempty"`
}

// ErrNoToken is returned when a request carries no bearer token.
var ErrNoToken = errors.New("missing bearer token")

// KeySource resolves the verification key for a token.
type KeySource interface {
	// Methods lists the accepted signing algorithms.
	Methods() []string
	// Key returns the key for token, usually selected by its kid header.
	Key(ctx context.Context, token *jwt.Token) (any, error)
}

// Verifier checks ID tokens issued for one Firebase project.
type Verifier struct {
	projectID string
	keys      KeySource
	now       func() time.Time
}

// NewVerifier returns a Verifier that accepts tokens with issuer
// https://securetoken.google.com/<projectID> and audience projectID.
func NewVerifier(projectID string, keys KeySource) *Verifier {
	return &Verifier{projectID: projectID, keys: keys, now: time.Now}
}

// Issuer returns the expected iss claim.
func (v *Verifier) Issuer() string {
	return "https://securetoken.google.com/" + v.projectID
}

type firebaseClaims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
	jwt.RegisteredClaims
}

// Verify validates the signature, issuer, audience and time claims of
// tokenString and returns the identity it asserts.
func (v *Verifier) Verify(ctx context.Context, tokenString string) (Identity, error) {
	if strings.TrimSpace(tokenString) == "" {
		return Identity{}, ErrNoToken
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods(v.keys.Methods()),
		jwt.WithIssuer(v.Issuer()),
		jwt.WithAudience(v.projectID),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(30*time.Second),
		jwt.WithTimeFunc(v.now),
	)

	var claims firebaseClaims
	_, err := parser.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		return v.keys.Key(ctx, t)
	})
	if err != nil {
		return Identity{}, fmt.Errorf("invalid id token: %w", err)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return Identity{}, errors.New("invalid id token: missing sub")
	}

	return Identity{
		UID:           claims.Subject,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
		Name:          claims.Name,
		Picture:       claims.Picture,
	}, nil
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) (string, error) {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if h == "" {
		return "", ErrNoToken
	}
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", ErrNoToken
	}
	return strings.TrimSpace(token), nil
}

type ctxKey struct{}

// WithIdentity returns a context carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the identity stored by WithIdentity.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}
