package auth

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/cadenza/internal/auth/signer"
	"github.com/MrWong99/cadenza/internal/config"
	"github.com/MrWong99/cadenza/internal/toolerr"
)

// writeTestKey writes a fresh PEM-encoded P-256 key into dir and returns
// its path.
func writeTestKey(t *testing.T, dir string) string {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	der, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		t.Fatalf("marshal key: %v", err)
	}
	path := filepath.Join(dir, "AuthKey_TEST.p8")
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der})
	if err := os.WriteFile(path, pemBytes, 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func testConfig(t *testing.T) config.MusicKitConfig {
	t.Helper()
	return config.MusicKitConfig{
		TeamID:         "TEAM1234",
		KeyID:          "KEY1234",
		PrivateKeyPath: writeTestKey(t, t.TempDir()),
		Storefront:     "us",
	}
}

// decodeSegment base64url-decodes one token segment into a JSON map.
func decodeSegment(t *testing.T, segment string) map[string]any {
	t.Helper()
	raw, err := base64.RawURLEncoding.DecodeString(segment)
	if err != nil {
		t.Fatalf("decode segment: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("unmarshal segment: %v", err)
	}
	return m
}

func TestMint_ClaimsAndShape(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	issued := time.Date(2026, 3, 14, 9, 26, 53, 589793238, time.UTC)
	m := NewMinter(WithClock(func() time.Time { return issued }))

	ttls := []time.Duration{time.Second, 10 * time.Minute, MaxTTL}
	for _, ttl := range ttls {
		t.Run(ttl.String(), func(t *testing.T) {
			token, expiresAt, err := m.Mint(cfg, ttl)
			if err != nil {
				t.Fatalf("Mint() unexpected error: %v", err)
			}

			parts := strings.Split(token, ".")
			if len(parts) != 3 {
				t.Fatalf("token has %d segments, want 3", len(parts))
			}

			header := decodeSegment(t, parts[0])
			if header["alg"] != "ES256" || header["kid"] != "KEY1234" {
				t.Errorf("header = %v", header)
			}

			claims := decodeSegment(t, parts[1])
			if claims["iss"] != "TEAM1234" {
				t.Errorf("iss = %v, want TEAM1234", claims["iss"])
			}
			if claims["aud"] != "https://music.apple.com" {
				t.Errorf("aud = %v", claims["aud"])
			}

			iat, exp := int64(claims["iat"].(float64)), int64(claims["exp"].(float64))
			if exp-iat != int64(ttl.Seconds()) {
				t.Errorf("exp-iat = %d, want %d", exp-iat, int64(ttl.Seconds()))
			}
			if iat != issued.Truncate(time.Second).Unix() {
				t.Errorf("iat = %d, want %d", iat, issued.Truncate(time.Second).Unix())
			}
			if expiresAt.Unix() != exp {
				t.Errorf("expiresAt = %d, claims exp = %d", expiresAt.Unix(), exp)
			}

			if _, err := base64.RawURLEncoding.DecodeString(parts[2]); err != nil {
				t.Errorf("signature segment not base64url: %v", err)
			}
		})
	}
}

func TestMint_TTLBounds(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	m := NewMinter()

	tests := []struct {
		name     string
		ttl      time.Duration
		wantCode string
	}{
		{"zero", 0, toolerr.CodeInvalidTokenTTL},
		{"negative", -time.Minute, toolerr.CodeInvalidTokenTTL},
		{"one second past the ceiling", MaxTTL + time.Second, toolerr.CodeTokenTTLTooLong},
		{"181 days", 181 * 24 * time.Hour, toolerr.CodeTokenTTLTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := m.Mint(cfg, tt.ttl)
			if err == nil {
				t.Fatal("Mint() expected error")
			}
			te, ok := toolerr.As(err)
			if !ok || te.Code != tt.wantCode {
				t.Errorf("error = %v, want code %s", err, tt.wantCode)
			}
		})
	}
}

func TestMint_KeyFileErrors(t *testing.T) {
	t.Parallel()

	m := NewMinter()

	t.Run("missing", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.PrivateKeyPath = filepath.Join(t.TempDir(), "nope.p8")
		_, _, err := m.Mint(cfg, time.Minute)
		te, ok := toolerr.As(err)
		if !ok || te.Code != toolerr.CodePrivateKeyMissing {
			t.Errorf("error = %v, want code %s", err, toolerr.CodePrivateKeyMissing)
		}
	})

	t.Run("unreadable", func(t *testing.T) {
		cfg := testConfig(t)
		// A directory fails the read with something other than not-exist.
		cfg.PrivateKeyPath = t.TempDir()
		_, _, err := m.Mint(cfg, time.Minute)
		te, ok := toolerr.As(err)
		if !ok || te.Code != toolerr.CodePrivateKeyUnreadable {
			t.Errorf("error = %v, want code %s", err, toolerr.CodePrivateKeyUnreadable)
		}
	})
}

// failingBackend always fails with a classified signing error.
type failingBackend struct{}

func (failingBackend) Sign([]byte) ([]byte, error) {
	return nil, toolerr.New(toolerr.CodeSignatureFailed, "The external signing tool exited with an error.", "")
}

func TestMint_ClassifiedSigningErrorPropagates(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	m := NewMinter(WithBackendSelector(func([]byte) (signer.Backend, error) {
		return failingBackend{}, nil
	}))

	_, _, err := m.Mint(cfg, time.Minute)
	te, ok := toolerr.As(err)
	if !ok {
		t.Fatalf("error %v is not classified", err)
	}
	if te.Code != toolerr.CodeSignatureFailed {
		t.Errorf("code = %s, want %s (classified errors must pass through unchanged)",
			te.Code, toolerr.CodeSignatureFailed)
	}
}
