package oidc

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type testProvider struct {
	key     *rsa.PrivateKey
	kid     string
	server  *httptest.Server
	fetches int32
}

func newTestProvider(t *testing.T) *testProvider {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("GenerateKey() error = %v", err)
	}
	p := &testProvider{key: key, kid: "k1"}
	p.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&p.fetches, 1)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"keys": []map[string]string{{
				"kid": p.kid,
				"kty": "RSA",
				"n":   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
			}},
		})
	}))
	t.Cleanup(p.server.Close)
	return p
}

func (p *testProvider) sign(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = p.kid
	s, err := tok.SignedString(p.key)
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}
	return s
}

func (p *testProvider) verifier() *Verifier {
	return New(Options{
		JWKSURL:  p.server.URL,
		Issuers:  []string{"https://accounts.google.com"},
		Audience: "client-123",
	})
}

func TestVerifier_Verify(t *testing.T) {
	p := newTestProvider(t)
	v := p.verifier()

	raw := p.sign(t, jwt.MapClaims{
		"iss":            "https://accounts.google.com",
		"aud":            "client-123",
		"sub":            "google-sub-1",
		"email":          "dr@example.com",
		"email_verified": true,
		"name":           "Dr Who",
		"exp":            time.Now().Add(time.Hour).Unix(),
	})

	id, err := v.Verify(context.Background(), raw)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if id.Subject != "google-sub-1" || id.Email != "dr@example.com" || !id.EmailVerified || id.Name != "Dr Who" {
		t.Errorf("Verify() identity = %+v", id)
	}

	// 第二次校验命中缓存，不再拉取 JWKS
	if _, err := v.Verify(context.Background(), raw); err != nil {
		t.Fatalf("Verify() second call error = %v", err)
	}
	if got := atomic.LoadInt32(&p.fetches); got != 1 {
		t.Errorf("jwks fetches = %d, want 1", got)
	}
}

func TestVerifier_Rejects(t *testing.T) {
	p := newTestProvider(t)
	base := func() jwt.MapClaims {
		return jwt.MapClaims{
			"iss": "https://accounts.google.com",
			"aud": "client-123",
			"sub": "s",
			"exp": time.Now().Add(time.Hour).Unix(),
		}
	}

	tests := []struct {
		name   string
		mutate func(jwt.MapClaims)
		want   error
	}{
		{name: "wrong audience", mutate: func(c jwt.MapClaims) { c["aud"] = "other" }},
		{name: "expired", mutate: func(c jwt.MapClaims) { c["exp"] = time.Now().Add(-time.Hour).Unix() }},
		{name: "missing exp", mutate: func(c jwt.MapClaims) { delete(c, "exp") }},
		{name: "wrong issuer", mutate: func(c jwt.MapClaims) { c["iss"] = "https://evil.example" }, want: ErrInvalidIssuer},
		{name: "no subject", mutate: func(c jwt.MapClaims) { delete(c, "sub") }, want: ErrMissingSubject},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims := base()
			tt.mutate(claims)
			_, err := p.verifier().Verify(context.Background(), p.sign(t, claims))
			if err == nil {
				t.Fatal("Verify() error = nil, want error")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("Verify() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func (p *testProvider) signWithKid(t *testing.T, kid string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"iss": "https://accounts.google.com", "aud": "client-123", "sub": "s",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	tok.Header["kid"] = kid
	raw, err := tok.SignedString(p.key)
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}
	return raw
}

func TestVerifier_UnknownKey(t *testing.T) {
	p := newTestProvider(t)
	v := p.verifier()

	if _, err := v.Verify(context.Background(), p.signWithKid(t, "missing")); !errors.Is(err, ErrUnknownKey) {
		t.Errorf("Verify() error = %v, want ErrUnknownKey", err)
	}
}

func TestVerifier_UnknownKeyRefetchIsThrottled(t *testing.T) {
	p := newTestProvider(t)
	v := p.verifier()
	now := time.Now()
	v.now = func() time.Time { return now }

	if _, err := v.Verify(context.Background(), p.signWithKid(t, p.kid)); err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	unknown := p.signWithKid(t, "rotated")
	for i := 0; i < 5; i++ {
		if _, err := v.Verify(context.Background(), unknown); !errors.Is(err, ErrUnknownKey) {
			t.Fatalf("Verify() error = %v, want ErrUnknownKey", err)
		}
	}
	if got := atomic.LoadInt32(&p.fetches); got != 1 {
		t.Errorf("jwks fetches within interval = %d, want 1", got)
	}

	now = now.Add(time.Minute + time.Second)
	for i := 0; i < 3; i++ {
		if _, err := v.Verify(context.Background(), unknown); !errors.Is(err, ErrUnknownKey) {
			t.Fatalf("Verify() error = %v, want ErrUnknownKey", err)
		}
	}
	if got := atomic.LoadInt32(&p.fetches); got != 2 {
		t.Errorf("jwks fetches after interval = %d, want 2", got)
	}

	// 已知 kid 始终命中缓存
	if _, err := v.Verify(context.Background(), p.signWithKid(t, p.kid)); err != nil {
		t.Fatalf("Verify() known key error = %v", err)
	}
	if got := atomic.LoadInt32(&p.fetches); got != 2 {
		t.Errorf("jwks fetches = %d, want 2", got)
	}
}

func TestTruthy(t *testing.T) {
	tests := []struct {
		in   interface{}
		want bool
	}{
		{true, true},
		{false, false},
		{"true", true},
		{"false", false},
		{nil, false},
	}
	for _, tt := range tests {
		if got := truthy(tt.in); got != tt.want {
			t.Errorf("truthy(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
