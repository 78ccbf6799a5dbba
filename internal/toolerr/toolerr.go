// Package toolerr defines the classified error taxonomy shared by all
// Cadenza components. Every internal failure from a dependency (signing
// library, HTTP client, file I/O, subprocess) is caught at the boundary of
// its owning component and re-wrapped into an [Error]; no raw low-level
// error crosses a component boundary.
//
// The dispatcher converts any [Error] into a structured failure response
// with code/message/hint — it never crashes the process for a classified
// error.
package toolerr

import (
	"errors"
	"fmt"
)

// Machine-readable error codes. These form the stable contract with MCP
// clients and must not be renamed.
const (
	// Request and dispatch errors.
	CodeInvalidRequest   = "invalid_request"
	CodeInvalidArguments = "invalid_arguments"
	CodeUnknownTool      = "unknown_tool"
	CodeInternalError    = "internal_error"

	// Configuration errors.
	CodeMissingConfiguration = "missing_configuration"

	// Token errors.
	CodeInvalidTokenTTL        = "invalid_token_ttl"
	CodeTokenTTLTooLong        = "token_ttl_too_long"
	CodePrivateKeyMissing      = "private_key_missing"
	CodePrivateKeyUnreadable   = "private_key_unreadable"
	CodeSigningToolUnavailable = "signing_tool_unavailable"
	CodeSignatureFailed        = "signature_generation_failed"
	CodeInvalidSignature       = "invalid_signature_encoding"
	CodeTokenGenerationFailed  = "token_generation_failed"

	// Catalog API errors.
	CodeNetworkError       = "network_error"
	CodeServiceUnavailable = "musickit_unavailable"
	CodeCatalogError       = "musickit_error"
	CodeInvalidResponse    = "invalid_response"
	CodeTrackNotFound      = "track_not_found"

	// Local player bridge errors.
	CodeScriptBridgeUnavailable = "applescript_unavailable"
	CodeScriptFailed            = "applescript_error"
	CodePlaybackURLUnavailable  = "playback_url_unavailable"
	CodeUnsupportedOperation    = "unsupported_operation"
)

// Error is a classified tool error carrying a machine-readable code, a
// human-readable message, and an optional remediation hint. Status is the
// HTTP status observed from the catalog API, when one applies.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Hint    string `json:"hint,omitempty"`
	Status  int    `json:"status,omitempty"`

	// wrapped is the underlying cause, kept for errors.Is/As chains and
	// never serialized to clients.
	wrapped error
}

// New creates a classified error with the given code, message, and hint.
// An empty hint is omitted from serialized output.
func New(code, message, hint string) *Error {
	return &Error{Code: code, Message: message, Hint: hint}
}

// Newf creates a classified error with a formatted message and no hint.
func Newf(code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches cause to a copy of e so that errors.Is/errors.As keep
// working through the classification boundary. The cause also becomes the
// hint when no hint was set.
func (e *Error) Wrap(cause error) *Error {
	out := *e
	out.wrapped = cause
	if out.Hint == "" && cause != nil {
		out.Hint = cause.Error()
	}
	return &out
}

// WithStatus returns a copy of e carrying the given HTTP status.
func (e *Error) WithStatus(status int) *Error {
	out := *e
	out.Status = status
	return &out
}

// WithHint returns a copy of e with the hint replaced.
func (e *Error) WithHint(hint string) *Error {
	out := *e
	out.Hint = hint
	return &out
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Hint != "" {
		return e.Code + ": " + e.Message + " (" + e.Hint + ")"
	}
	return e.Code + ": " + e.Message
}

// Unwrap exposes the underlying cause, if any.
func (e *Error) Unwrap() error { return e.wrapped }

// As extracts a classified error from err's chain. Returns nil, false when
// err carries no classification.
func As(err error) (*Error, bool) {
	var te *Error
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}

// Classify returns err unchanged when it is already classified; otherwise
// it wraps err under the given fallback code and message. Used at component
// boundaries so that inner classifications propagate untouched.
func Classify(err error, code, message string) *Error {
	if te, ok := As(err); ok {
		return te
	}
	return New(code, message, "").Wrap(err)
}
