package signer

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/MrWong99/cadenza/internal/toolerr"
)

// rawComponentLen is the byte length of each signature integer (R and S)
// on the P-256 curve.
const rawComponentLen = 32

// OpenSSL signs by shelling out to the openssl command-line tool. It is
// the fallback for key material the in-process parser cannot handle.
//
// Each Sign call writes the key to an exclusive temporary file that is
// removed on every exit path, feeds the signing input on stdin, and
// converts the DER-encoded output to the raw 64-byte form.
type OpenSSL struct {
	keyPEM []byte
	bin    string
}

// Compile-time check: OpenSSL must implement Backend.
var _ Backend = (*OpenSSL)(nil)

// NewOpenSSL returns an openssl-backed signer for the given PEM key.
// Returns a classified signing_tool_unavailable error when the binary
// cannot be found.
func NewOpenSSL(keyPEM []byte, opts ...Option) (*OpenSSL, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	bin := o.opensslPath
	if bin == "" {
		found, err := exec.LookPath("openssl")
		if err != nil {
			return nil, toolerr.New(
				toolerr.CodeSigningToolUnavailable,
				"No signing tool is available for the configured private key.",
				"Install openssl or provide a PEM-encoded P-256 key usable by the in-process signer.",
			).Wrap(err)
		}
		bin = found
	}

	return &OpenSSL{keyPEM: keyPEM, bin: bin}, nil
}

// Sign implements [Backend].
func (s *OpenSSL) Sign(data []byte) ([]byte, error) {
	keyFile, err := os.CreateTemp("", "cadenza-signing-key-*.pem")
	if err != nil {
		return nil, toolerr.New(
			toolerr.CodeSignatureFailed,
			"Could not stage the private key for the external signing tool.",
			"",
		).Wrap(err)
	}
	defer os.Remove(keyFile.Name())

	if _, err := keyFile.Write(s.keyPEM); err != nil {
		keyFile.Close()
		return nil, toolerr.New(
			toolerr.CodeSignatureFailed,
			"Could not stage the private key for the external signing tool.",
			"",
		).Wrap(err)
	}
	if err := keyFile.Close(); err != nil {
		return nil, toolerr.New(
			toolerr.CodeSignatureFailed,
			"Could not stage the private key for the external signing tool.",
			"",
		).Wrap(err)
	}

	cmd := exec.Command(s.bin, "dgst", "-sha256", "-sign", keyFile.Name())
	cmd.Stdin = bytes.NewReader(data)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		hint := strings.TrimSpace(stderr.String())
		if hint == "" {
			hint = err.Error()
		}
		return nil, toolerr.New(
			toolerr.CodeSignatureFailed,
			"The external signing tool exited with an error.",
			hint,
		).Wrap(err)
	}

	return derToRaw(stdout.Bytes())
}

// derToRaw converts a DER-encoded ECDSA signature (ASN.1 SEQUENCE of two
// INTEGERs) into the raw 64-byte R ‖ S form: leading zero bytes are
// stripped from each integer, which is then left-padded back to 32 bytes.
func derToRaw(der []byte) ([]byte, error) {
	body, err := asn1Sequence(der)
	if err != nil {
		return nil, err
	}

	r, rest, err := asn1Integer(body)
	if err != nil {
		return nil, err
	}
	s, rest, err := asn1Integer(rest)
	if err != nil {
		return nil, err
	}
	if len(rest) != 0 {
		return nil, invalidDER("trailing bytes after the S integer")
	}

	raw := make([]byte, 2*rawComponentLen)
	if err := padComponent(raw[:rawComponentLen], r); err != nil {
		return nil, err
	}
	if err := padComponent(raw[rawComponentLen:], s); err != nil {
		return nil, err
	}
	return raw, nil
}

// asn1Sequence validates the outer SEQUENCE header and returns its body.
func asn1Sequence(der []byte) ([]byte, error) {
	if len(der) < 2 {
		return nil, invalidDER("signature shorter than a SEQUENCE header")
	}
	if der[0] != 0x30 {
		return nil, invalidDER(fmt.Sprintf("expected SEQUENCE tag 0x30, got 0x%02x", der[0]))
	}

	length, header := int(der[1]), 2
	if length == 0x81 {
		// Long-form length with a single length byte. P-256 signatures fit
		// in 72 bytes so anything longer is malformed anyway.
		if len(der) < 3 {
			return nil, invalidDER("truncated long-form SEQUENCE length")
		}
		length, header = int(der[2]), 3
	} else if length > 0x7f {
		return nil, invalidDER("unsupported multi-byte SEQUENCE length")
	}

	if len(der)-header != length {
		return nil, invalidDER("SEQUENCE length does not match the signature size")
	}
	return der[header:], nil
}

// asn1Integer consumes one INTEGER from b and returns its value bytes with
// leading zeros stripped, plus the unconsumed remainder.
func asn1Integer(b []byte) (value, rest []byte, err error) {
	if len(b) < 2 {
		return nil, nil, invalidDER("signature component shorter than an INTEGER header")
	}
	if b[0] != 0x02 {
		return nil, nil, invalidDER(fmt.Sprintf("expected INTEGER tag 0x02, got 0x%02x", b[0]))
	}

	length := int(b[1])
	if length == 0 || length > 0x7f {
		return nil, nil, invalidDER("invalid INTEGER length")
	}
	if len(b) < 2+length {
		return nil, nil, invalidDER("INTEGER length exceeds the remaining signature bytes")
	}

	value = b[2 : 2+length]
	for len(value) > 0 && value[0] == 0x00 {
		value = value[1:]
	}
	return value, b[2+length:], nil
}

// padComponent left-pads value into dst, which must be 32 bytes.
func padComponent(dst, value []byte) error {
	if len(value) > len(dst) {
		return invalidDER("signature integer longer than 32 bytes")
	}
	copy(dst[len(dst)-len(value):], value)
	return nil
}

func invalidDER(detail string) error {
	return toolerr.New(
		toolerr.CodeInvalidSignature,
		"The external signing tool produced a malformed DER signature.",
		detail,
	)
}
