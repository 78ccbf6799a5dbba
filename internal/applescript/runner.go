// Package applescript drives the local Music.app through osascript.
//
// Scripts are generated by the builders in this package and piped to the
// interpreter on stdin. Failures are classified: a missing interpreter is
// applescript_unavailable, a non-zero exit is applescript_error with the
// interpreter's stderr as the hint.
package applescript

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"github.com/MrWong99/cadenza/internal/toolerr"
)

// DefaultBinary is the system AppleScript interpreter.
const DefaultBinary = "osascript"

// Runner executes an AppleScript and returns its trimmed stdout.
type Runner interface {
	Run(ctx context.Context, script string) (string, error)
}

// Osascript runs scripts through the local osascript binary.
type Osascript struct {
	bin string
}

var _ Runner = (*Osascript)(nil)

// Option configures an [Osascript].
type Option func(*Osascript)

// WithBinary overrides the interpreter path. An empty value keeps the
// default PATH lookup.
func WithBinary(path string) Option {
	return func(o *Osascript) {
		if path != "" {
			o.bin = path
		}
	}
}

// NewOsascript resolves the interpreter and returns a runner bound to it.
func NewOsascript(opts ...Option) (*Osascript, error) {
	o := &Osascript{bin: DefaultBinary}
	for _, opt := range opts {
		opt(o)
	}

	resolved, err := exec.LookPath(o.bin)
	if err != nil {
		return nil, toolerr.New(
			toolerr.CodeScriptBridgeUnavailable,
			"The osascript interpreter is not available on this system.",
			"Playback tools require macOS with the Music app installed.",
		).Wrap(err)
	}
	o.bin = resolved
	return o, nil
}

// Run pipes the script to the interpreter's stdin and returns its trimmed
// standard output.
func (o *Osascript) Run(ctx context.Context, script string) (string, error) {
	cmd := exec.CommandContext(ctx, o.bin, "-")
	cmd.Stdin = strings.NewReader(script)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		hint := strings.TrimSpace(stderr.String())
		return "", toolerr.New(
			toolerr.CodeScriptFailed,
			"The AppleScript command failed.",
			hint,
		).Wrap(err)
	}
	return strings.TrimSpace(stdout.String()), nil
}
