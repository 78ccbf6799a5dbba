package signer

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/MrWong99/cadenza/internal/toolerr"
)

// ECDSA signs in-process using golang-jwt's ES256 method, which already
// emits the raw 64-byte (R ‖ S) form.
type ECDSA struct {
	key *ecdsa.PrivateKey
}

// Compile-time check: ECDSA must implement Backend.
var _ Backend = (*ECDSA)(nil)

// NewECDSA parses the PEM-encoded private key and returns an in-process
// signer. The key must be on the P-256 curve.
func NewECDSA(keyPEM []byte) (*ECDSA, error) {
	key, err := jwt.ParseECPrivateKeyFromPEM(keyPEM)
	if err != nil {
		return nil, fmt.Errorf("signer: parse EC private key: %w", err)
	}
	if key.Curve != elliptic.P256() {
		return nil, fmt.Errorf("signer: key curve %s is not P-256", key.Curve.Params().Name)
	}
	return &ECDSA{key: key}, nil
}

// Sign implements [Backend].
func (s *ECDSA) Sign(data []byte) ([]byte, error) {
	sig, err := jwt.SigningMethodES256.Sign(string(data), s.key)
	if err != nil {
		return nil, toolerr.New(
			toolerr.CodeSignatureFailed,
			"In-process ES256 signing failed.",
			"",
		).Wrap(err)
	}
	return sig, nil
}
