package applescript

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MrWong99/cadenza/internal/toolerr"
)

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

// writeFakeInterpreter drops an executable shell script standing in for
// osascript and returns its path.
func writeFakeInterpreter(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "osascript")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("writing fake interpreter: %v", err)
	}
	return path
}

// ─────────────────────────────────────────────────────────────────────────────
// Runner
// ─────────────────────────────────────────────────────────────────────────────

func TestNewOsascript_InterpreterMissing(t *testing.T) {
	t.Setenv("PATH", t.TempDir())

	_, err := NewOsascript()
	te, ok := toolerr.As(err)
	if !ok {
		t.Fatalf("expected classified error, got %v", err)
	}
	if te.Code != toolerr.CodeScriptBridgeUnavailable {
		t.Errorf("code = %q, want %q", te.Code, toolerr.CodeScriptBridgeUnavailable)
	}
}

func TestOsascript_RunPipesScriptOnStdin(t *testing.T) {
	t.Parallel()

	// Echoes stdin back so the test can verify the script made it through.
	bin := writeFakeInterpreter(t, "cat")
	runner, err := NewOsascript(WithBinary(bin))
	if err != nil {
		t.Fatalf("NewOsascript: %v", err)
	}

	out, err := runner.Run(context.Background(), Play())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out != Play() {
		t.Errorf("output = %q, want the script itself", out)
	}
}

func TestOsascript_RunTrimsOutput(t *testing.T) {
	t.Parallel()

	bin := writeFakeInterpreter(t, `printf 'playing\n\n'`)
	runner, err := NewOsascript(WithBinary(bin))
	if err != nil {
		t.Fatalf("NewOsascript: %v", err)
	}

	out, err := runner.Run(context.Background(), PlayerState())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out != "playing" {
		t.Errorf("output = %q, want %q", out, "playing")
	}
}

func TestOsascript_RunFailureCarriesStderrHint(t *testing.T) {
	t.Parallel()

	bin := writeFakeInterpreter(t, `echo 'execution error: Music got an error' >&2; exit 1`)
	runner, err := NewOsascript(WithBinary(bin))
	if err != nil {
		t.Fatalf("NewOsascript: %v", err)
	}

	_, err = runner.Run(context.Background(), Pause())
	te, ok := toolerr.As(err)
	if !ok {
		t.Fatalf("expected classified error, got %v", err)
	}
	if te.Code != toolerr.CodeScriptFailed {
		t.Errorf("code = %q, want %q", te.Code, toolerr.CodeScriptFailed)
	}
	if !strings.Contains(te.Hint, "Music got an error") {
		t.Errorf("hint = %q, want stderr content", te.Hint)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Script builders
// ─────────────────────────────────────────────────────────────────────────────

func TestEscape(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{`plain`, `plain`},
		{`say "hi"`, `say \"hi\"`},
		{`back\slash`, `back\\slash`},
		{`both \"`, `both \\\"`},
	}
	for _, tc := range tests {
		if got := Escape(tc.in); got != tc.want {
			t.Errorf("Escape(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestOpenLocation_EscapesURL(t *testing.T) {
	t.Parallel()

	script := OpenLocation(`https://music.apple.com/us/album/a"b`)
	want := "tell application \"Music\"\n\topen location \"https://music.apple.com/us/album/a\\\"b\"\nend tell"
	if script != want {
		t.Errorf("script = %q, want %q", script, want)
	}
}

func TestScriptBuilders(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		script string
		want   string
	}{
		{"play", Play(), "\tplay\n"},
		{"pause", Pause(), "\tpause\n"},
		{"next", NextTrack(), "\tnext track\n"},
		{"previous", PreviousTrack(), "\tprevious track\n"},
		{"stop", Stop(), "\tstop\n"},
		{"shuffle off", SetShuffleMode("off"), "set shuffle enabled to false"},
		{"shuffle songs", SetShuffleMode("songs"), "set shuffle mode to songs"},
		{"repeat one", SetRepeatMode("one"), "set song repeat to one"},
		{"player state", PlayerState(), "get player state as text"},
		{"add to library", AddCurrentTrackToLibrary(), `duplicate current track to source "Library"`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			if !strings.Contains(tc.script, tc.want) {
				t.Errorf("script %q missing %q", tc.script, tc.want)
			}
			if !strings.HasPrefix(tc.script, `tell application "Music"`) || !strings.HasSuffix(tc.script, "end tell") {
				t.Errorf("script %q not wrapped in a Music tell block", tc.script)
			}
		})
	}
}

func TestCreatePlaylist(t *testing.T) {
	t.Parallel()

	with := CreatePlaylist("Road Trip", `Summer "hits"`)
	if !strings.Contains(with, `{name:"Road Trip", description:"Summer \"hits\""}`) {
		t.Errorf("script = %q", with)
	}

	without := CreatePlaylist("Road Trip", "")
	if !strings.Contains(without, `{name:"Road Trip"}`) {
		t.Errorf("script = %q", without)
	}
}
