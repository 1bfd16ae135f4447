package identity

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"encoding/pem"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testProject = "caption-wizard-test"

func newCertServer(t *testing.T, kid string, key *rsa.PrivateKey, fetches *atomic.Int32) *httptest.Server {
	t.Helper()
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "securetoken"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("CreateCertificate() error: %v", err)
	}
	certPEM := string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches.Add(1)
		w.Header().Set("Cache-Control", "public, max-age=19000, must-revalidate, no-transform")
		json.NewEncoder(w).Encode(map[string]string{kid: certPEM})
	}))
	t.Cleanup(server.Close)
	return server
}

func signRS256(t *testing.T, key *rsa.PrivateKey, kid string, claims jwt.Claims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = kid
	s, err := tok.SignedString(key)
	if err != nil {
		t.Fatalf("SignedString() error: %v", err)
	}
	return s
}

func validClaims(sub string) firebaseClaims {
	now := time.Now()
	return firebaseClaims{
		Email: "ada@example.com",
		Name:  "Ada",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "https://securetoken.google.com/" + testProject,
			Audience:  jwt.ClaimStrings{testProject},
			Subject:   sub,
			IssuedAt:  jwt.NewNumericDate(now.Add(-time.Minute)),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}
}

func TestVerifier_GoogleCertificates(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("GenerateKey() error: %v", err)
	}
	var fetches atomic.Int32
	server := newCertServer(t, "kid-1", key, &fetches)
	v := NewVerifier(testProject, NewGoogleCertSource(server.Client(), server.URL))

	token := signRS256(t, key, "kid-1", validClaims("user-123"))
	for i := 0; i < 3; i++ {
		got, err := v.Verify(context.Background(), token)
		if err != nil {
			t.Fatalf("Verify() error: %v", err)
		}
		if got.UID != "user-123" || got.Email != "ada@example.com" || got.Name != "Ada" {
			t.Errorf("Verify() = %+v", got)
		}
	}
	if n := fetches.Load(); n != 1 {
		t.Errorf("certificate fetches = %d, want 1", n)
	}

	// An unknown kid forces one refresh and still fails.
	if _, err := v.Verify(context.Background(), signRS256(t, key, "kid-2", validClaims("user-123"))); err == nil {
		t.Error("Verify() with unknown kid succeeded")
	}
	if n := fetches.Load(); n != 2 {
		t.Errorf("certificate fetches = %d, want 2", n)
	}
}

func TestVerifier_RejectsBadClaims(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("GenerateKey() error: %v", err)
	}
	var fetches atomic.Int32
	server := newCertServer(t, "kid-1", key, &fetches)
	v := NewVerifier(testProject, NewGoogleCertSource(server.Client(), server.URL))

	tests := []struct {
		name   string
		mutate func(c *firebaseClaims)
	}{
		{"wrong audience", func(c *firebaseClaims) { c.Audience = jwt.ClaimStrings{"other-project"} }},
		{"wrong issuer", func(c *firebaseClaims) { c.Issuer = "https://accounts.example.com" }},
		{"expired", func(c *firebaseClaims) { c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour)) }},
		{"no expiry", func(c *firebaseClaims) { c.ExpiresAt = nil }},
		{"empty subject", func(c *firebaseClaims) { c.Subject = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims := validClaims("user-123")
			tt.mutate(&claims)
			if _, err := v.Verify(context.Background(), signRS256(t, key, "kid-1", claims)); err == nil {
				t.Error("Verify() error = nil, want rejection")
			}
		})
	}
}

func TestVerifier_RejectsOtherAlgorithms(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("GenerateKey() error: %v", err)
	}
	var fetches atomic.Int32
	server := newCertServer(t, "kid-1", key, &fetches)
	v := NewVerifier(testProject, NewGoogleCertSource(server.Client(), server.URL))

	token, err := SignHMAC([]byte("secret"), testProject, Identity{UID: "user-1"}, time.Hour)
	if err != nil {
		t.Fatalf("SignHMAC() error: %v", err)
	}
	if _, err := v.Verify(context.Background(), token); err == nil {
		t.Error("Verify() accepted an HS256 token against the RS256 source")
	}
}

func TestVerifier_HMAC(t *testing.T) {
	secret := []byte("local-dev-secret")
	v := NewVerifier(testProject, HMACSource{Secret: secret})

	token, err := SignHMAC(secret, testProject, Identity{UID: "dev-user", Email: "dev@example.com", EmailVerified: true}, time.Hour)
	if err != nil {
		t.Fatalf("SignHMAC() error: %v", err)
	}
	got, err := v.Verify(context.Background(), token)
	if err != nil {
		t.Fatalf("Verify() error: %v", err)
	}
	want := Identity{UID: "dev-user", Email: "dev@example.com", EmailVerified: true}
	if got != want {
		t.Errorf("Verify() = %+v, want %+v", got, want)
	}

	if _, err := NewVerifier(testProject, HMACSource{Secret: []byte("other")}).Verify(context.Background(), token); err == nil {
		t.Error("Verify() with wrong secret succeeded")
	}
	if _, err := v.Verify(context.Background(), ""); !errors.Is(err, ErrNoToken) {
		t.Errorf("Verify(\"\") error = %v, want ErrNoToken", err)
	}
}

func TestVerifier_TimeFunc(t *testing.T) {
	secret := []byte("s")
	token, err := SignHMAC(secret, testProject, Identity{UID: "u"}, time.Hour)
	if err != nil {
		t.Fatalf("SignHMAC() error: %v", err)
	}
	v := NewVerifier(testProject, HMACSource{Secret: secret})
	v.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, err := v.Verify(context.Background(), token); err == nil {
		t.Error("Verify() accepted a token after expiry")
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header  string
		want    string
		wantErr bool
	}{
		{"Bearer abc.def.ghi", "abc.def.ghi", false},
		{"bearer   tok  ", "tok", false},
		{"", "", true},
		{"Basic dXNlcg==", "", true},
		{"Bearer ", "", true},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if tt.header != "" {
			r.Header.Set("Authorization", tt.header)
		}
		got, err := BearerToken(r)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("BearerToken(%q) = %q, %v", tt.header, got, err)
		}
	}
}

func TestMaxAge(t *testing.T) {
	tests := []struct {
		header string
		want   time.Duration
	}{
		{"public, max-age=19000, must-revalidate", 19000 * time.Second},
		{"max-age=60", time.Minute},
		{"no-cache", defaultCertTTL},
		{"max-age=abc", defaultCertTTL},
		{"", defaultCertTTL},
	}
	for _, tt := range tests {
		if got := maxAge(tt.header); got != tt.want {
			t.Errorf("maxAge(%q) = %v, want %v", tt.header, got, tt.want)
		}
	}
}

func TestContext(t *testing.T) {
	if _, ok := FromContext(context.Background()); ok {
		t.Error("FromContext() on empty context reported ok")
	}
	ctx := WithIdentity(context.Background(), Identity{UID: "u1"})
	if got, ok := FromContext(ctx); !ok || got.UID != "u1" {
		t.Errorf("FromContext() = %+v, %v", got, ok)
	}
}
