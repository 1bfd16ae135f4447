package identity

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
)

// GoogleCertsURL publishes the X.509 certificates that sign Firebase ID tokens.
const GoogleCertsURL = "https://www.googleapis.com/robot/v1/metadata/x509/securetoken@system.gserviceaccount.com"

const defaultCertTTL = time.Hour

// GoogleCertSource fetches the signing certificates and caches them by kid
// for as long as the response's Cache-Control max-age allows.
type GoogleCertSource struct {
	url    string
	client *http.Client
	now    func() time.Time

	mu      sync.RWMutex
	keys    map[string]*rsa.PublicKey
	expires time.Time
}

var _ KeySource = (*GoogleCertSource)(nil)

// NewGoogleCertSource returns a source reading url (GoogleCertsURL when empty).
func NewGoogleCertSource(client *http.Client, url string) *GoogleCertSource {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if url == "" {
		url = GoogleCertsURL
	}
	return &GoogleCertSource{url: url, client: client, now: time.Now}
}

func (s *GoogleCertSource) Methods() []string { return []string{"RS256"} }

func (s *GoogleCertSource) Key(ctx context.Context, t *jwt.Token) (any, error) {
	kid, _ := t.Header["kid"].(string)
	if strings.TrimSpace(kid) == "" {
		return nil, errors.New("missing kid")
	}

	s.mu.RLock()
	key, ok := s.keys[kid]
	fresh := s.now().Before(s.expires)
	s.mu.RUnlock()
	if ok && fresh {
		return key, nil
	}

	if err := s.refresh(ctx); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if key, ok := s.keys[kid]; ok {
		return key, nil
	}
	return nil, fmt.Errorf("unknown kid %q", kid)
}

func (s *GoogleCertSource) refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return err
	}
	res, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch signing certificates: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return fmt.Errorf("fetch signing certificates: %s", res.Status)
	}

	var certs map[string]string
	if err := json.NewDecoder(res.Body).Decode(&certs); err != nil {
		return fmt.Errorf("decode signing certificates: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(certs))
	for kid, pemText := range certs {
		pub, err := jwt.ParseRSAPublicKeyFromPEM([]byte(pemText))
		if err != nil {
			log.Warn().Err(err).Str("kid", kid).Msg("Skipping unparseable signing certificate")
			continue
		}
		keys[kid] = pub
	}
	if len(keys) == 0 {
		return errors.New("no usable signing certificates")
	}

	ttl := maxAge(res.Header.Get("Cache-Control"))
	s.mu.Lock()
	s.keys = keys
	s.expires = s.now().Add(ttl)
	s.mu.Unlock()

	log.Debug().Int("keys", len(keys)).Dur("ttl", ttl).Msg("Signing certificates refreshed")
	return nil
}

// maxAge parses max-age from a Cache-Control header, defaulting to an hour.
func maxAge(header string) time.Duration {
	for _, directive := range strings.Split(header, ",") {
		name, value, ok := strings.Cut(strings.TrimSpace(directive), "=")
		if !ok || !strings.EqualFold(name, "max-age") {
			continue
		}
		if secs, err := strconv.Atoi(strings.Trim(value, `"`)); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultCertTTL
}

// HMACSource verifies HS256 tokens with a shared secret. It stands in for
// the Google certificates during local development and tests.
type HMACSource struct {
	Secret []byte
}

var _ KeySource = HMACSource{}

func (h HMACSource) Methods() []string { return []string{"HS256"} }

func (h HMACSource) Key(context.Context, *jwt.Token) (any, error) {
	if len(h.Secret) == 0 {
		return nil, errors.New("hmac secret not configured")
	}
	return h.Secret, nil
}

// SignHMAC issues an HS256 token for id, valid for ttl. It is meant for local
// development tooling and tests.
func SignHMAC(secret []byte, projectID string, id Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := firebaseClaims{
		Email:         id.Email,
		EmailVerified: id.EmailVerified,
		Name:          id.Name,
		Picture:       id.Picture,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "https://securetoken.google.com/" + projectID,
			Audience:  jwt.ClaimStrings{projectID},
			Subject:   id.UID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}
