// Package signer produces raw ECDSA P-256/SHA-256 signatures for developer
// token minting.
//
// Two interchangeable backends exist: an in-process signer built on
// golang-jwt's ES256 signing method, and a fallback that shells out to the
// openssl command-line tool for key formats the in-process parser cannot
// handle. [Select] probes the key material and picks the right one, keeping
// the selection logic out of the minting code.
//
// All backends return the fixed 64-byte raw signature form (32-byte R
// followed by 32-byte S, each left-zero-padded big-endian, no DER
// wrapping) expected inside a compact token.
package signer

import (
	"crypto/elliptic"

	"github.com/golang-jwt/jwt/v5"
)

// Backend produces a cryptographic signature over a byte string.
type Backend interface {
	// Sign returns the raw 64-byte (R ‖ S) ECDSA P-256/SHA-256 signature
	// over data.
	Sign(data []byte) ([]byte, error)
}

// Option is a functional option for configuring backend selection.
type Option func(*options)

type options struct {
	opensslPath string
}

// WithOpenSSLPath pins the fallback signing tool to a specific binary
// instead of resolving "openssl" from PATH.
func WithOpenSSLPath(path string) Option {
	return func(o *options) {
		o.opensslPath = path
	}
}

// Select returns the preferred [Backend] for the given PEM-encoded private
// key: the in-process signer when the key parses to a P-256 ECDSA key, the
// openssl fallback otherwise.
//
// Returns a classified signing_tool_unavailable error when the fallback is
// needed but no signing tool can be found.
func Select(keyPEM []byte, opts ...Option) (Backend, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	key, err := jwt.ParseECPrivateKeyFromPEM(keyPEM)
	if err == nil && key.Curve == elliptic.P256() {
		return &ECDSA{key: key}, nil
	}

	return NewOpenSSL(keyPEM, opts...)
}
