// Package auth mints and caches Apple Music developer tokens.
//
// A developer token is a compact three-segment credential
// (header.claims.signature, each segment base64url without padding) signed
// with the configured MusicKit private key. [Minter] builds tokens;
// [Cache] hands them out with expiry-aware reuse so that concurrent
// catalog requests almost never pay the signing cost.
package auth

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/MrWong99/cadenza/internal/auth/signer"
	"github.com/MrWong99/cadenza/internal/config"
	"github.com/MrWong99/cadenza/internal/toolerr"
)

// tokenAudience is the catalog-service URI every developer token is scoped
// to. Apple validates this claim verbatim.
const tokenAudience = "https://music.apple.com"

// MaxTTL is the longest token lifetime the issuing service accepts.
// Requests beyond it fail loudly instead of being clamped, so that callers
// notice the policy violation.
const MaxTTL = 180 * 24 * time.Hour

// Minter builds signed, time-bounded developer tokens.
type Minter struct {
	// now is the clock, injectable for tests.
	now func() time.Time

	// selectBackend chooses the signing backend for the key material,
	// injectable for tests.
	selectBackend func(keyPEM []byte) (signer.Backend, error)
}

// MinterOption is a functional option for configuring a [Minter].
type MinterOption func(*Minter)

// WithClock replaces the minter's clock. Intended for tests.
func WithClock(now func() time.Time) MinterOption {
	return func(m *Minter) {
		m.now = now
	}
}

// WithBackendSelector replaces the signing-backend factory. Intended for
// tests and for pinning an explicit openssl path.
func WithBackendSelector(sel func(keyPEM []byte) (signer.Backend, error)) MinterOption {
	return func(m *Minter) {
		m.selectBackend = sel
	}
}

// NewMinter returns a Minter using the wall clock and [signer.Select].
func NewMinter(opts ...MinterOption) *Minter {
	m := &Minter{
		now: time.Now,
		selectBackend: func(keyPEM []byte) (signer.Backend, error) {
			return signer.Select(keyPEM)
		},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Mint builds a developer token valid for ttl and returns it together with
// its expiry timestamp.
//
// The TTL must satisfy 0 < ttl <= [MaxTTL]; violations fail with the
// invalid_token_ttl / token_ttl_too_long classifications. Key material is
// read from cfg.PrivateKeyPath on every call — a missing file yields
// private_key_missing, any other read failure private_key_unreadable.
// Classified errors from the signing backend propagate unchanged; anything
// unexpected is wrapped as token_generation_failed.
func (m *Minter) Mint(cfg config.MusicKitConfig, ttl time.Duration) (string, time.Time, error) {
	if ttl <= 0 {
		return "", time.Time{}, toolerr.New(
			toolerr.CodeInvalidTokenTTL,
			"Token TTL must be a positive duration.",
			fmt.Sprintf("Requested TTL was %s.", ttl),
		)
	}
	if ttl > MaxTTL {
		return "", time.Time{}, toolerr.New(
			toolerr.CodeTokenTTLTooLong,
			"Token TTL exceeds the 180-day maximum enforced by Apple.",
			fmt.Sprintf("Requested TTL was %s.", ttl),
		)
	}

	keyPEM, err := os.ReadFile(cfg.PrivateKeyPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", time.Time{}, toolerr.New(
				toolerr.CodePrivateKeyMissing,
				"The MusicKit private key file does not exist.",
				"Check PRIVATE_KEY_PATH: "+cfg.PrivateKeyPath,
			).Wrap(err)
		}
		return "", time.Time{}, toolerr.New(
			toolerr.CodePrivateKeyUnreadable,
			"The MusicKit private key file could not be read.",
			"",
		).Wrap(err)
	}

	backend, err := m.selectBackend(keyPEM)
	if err != nil {
		return "", time.Time{}, toolerr.Classify(err,
			toolerr.CodeTokenGenerationFailed,
			"No signing backend could be initialised for the private key.")
	}

	issuedAt := m.now().UTC().Truncate(time.Second)
	expiresAt := issuedAt.Add(ttl)

	// Maps serialise with sorted keys under encoding/json, giving the
	// canonical compact form the signature covers.
	header := map[string]any{
		"alg": "ES256",
		"kid": cfg.KeyID,
	}
	claims := map[string]any{
		"iss": cfg.TeamID,
		"iat": issuedAt.Unix(),
		"exp": expiresAt.Unix(),
		"aud": tokenAudience,
	}

	signingInput, err := encodeSegments(header, claims)
	if err != nil {
		return "", time.Time{}, toolerr.New(
			toolerr.CodeTokenGenerationFailed,
			"Token header or claims could not be serialised.",
			"",
		).Wrap(err)
	}

	sig, err := backend.Sign([]byte(signingInput))
	if err != nil {
		return "", time.Time{}, toolerr.Classify(err,
			toolerr.CodeTokenGenerationFailed,
			"Signing the developer token failed.")
	}

	token := signingInput + "." + base64.RawURLEncoding.EncodeToString(sig)
	return token, expiresAt, nil
}

// encodeSegments returns "b64url(header).b64url(claims)", the exact byte
// string the signature is computed over.
func encodeSegments(header, claims map[string]any) (string, error) {
	h, err := json.Marshal(header)
	if err != nil {
		return "", fmt.Errorf("auth: marshal header: %w", err)
	}
	c, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("auth: marshal claims: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(h) + "." + base64.RawURLEncoding.EncodeToString(c), nil
}
