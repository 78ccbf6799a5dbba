package queue

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/MrWong99/cadenza/internal/catalog"
	"github.com/MrWong99/cadenza/internal/config"
	"github.com/MrWong99/cadenza/internal/toolerr"
)

type fakeCatalog struct {
	song catalog.Song
	err  error
}

func (f *fakeCatalog) GetSong(ctx context.Context, cfg config.MusicKitConfig, songID string) (catalog.Song, error) {
	return f.song, f.err
}

// scriptedRunner records scripts and answers each with the next canned
// output.
type scriptedRunner struct {
	scripts []string
	outputs []string
	err     error
}

func (r *scriptedRunner) Run(ctx context.Context, script string) (string, error) {
	r.scripts = append(r.scripts, script)
	if r.err != nil {
		return "", r.err
	}
	if len(r.outputs) == 0 {
		return "", nil
	}
	out := r.outputs[0]
	r.outputs = r.outputs[1:]
	return out, nil
}

func call(t *testing.T, tool *Tool, args string) (map[string]any, error) {
	t.Helper()
	out, err := tool.Definition().Handle(context.Background(), json.RawMessage(args))
	if err != nil {
		return nil, err
	}
	return out.(map[string]any), nil
}

func TestManageQueue_AddPlayNext(t *testing.T) {
	t.Parallel()

	cat := &fakeCatalog{song: catalog.Song{ID: "42", URL: "https://music.apple.com/t/42"}}
	rec := &scriptedRunner{}
	tool := New(cat, rec, config.MusicKitConfig{})

	result, err := call(t, tool, `{"action":"add","track_id":"42","play_next":true}`)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if result["status"] != "playing" {
		t.Errorf("status = %v", result["status"])
	}
	if len(rec.scripts) != 1 || !strings.Contains(rec.scripts[0], "open location") {
		t.Errorf("scripts = %q", rec.scripts)
	}
}

func TestManageQueue_AddWithoutPlayNextUnsupported(t *testing.T) {
	t.Parallel()

	tool := New(&fakeCatalog{}, &scriptedRunner{}, config.MusicKitConfig{})
	_, err := call(t, tool, `{"action":"add","track_id":"42"}`)
	te, ok := toolerr.As(err)
	if !ok || te.Code != toolerr.CodeUnsupportedOperation {
		t.Errorf("err = %v, want unsupported_operation", err)
	}
}

func TestManageQueue_AddRequiresTrackID(t *testing.T) {
	t.Parallel()

	tool := New(&fakeCatalog{}, &scriptedRunner{}, config.MusicKitConfig{})
	_, err := call(t, tool, `{"action":"add","play_next":true}`)
	te, ok := toolerr.As(err)
	if !ok || te.Code != toolerr.CodeInvalidArguments {
		t.Errorf("err = %v, want invalid_arguments", err)
	}
}

func TestManageQueue_ViewReportsCurrentTrack(t *testing.T) {
	t.Parallel()

	rec := &scriptedRunner{outputs: []string{"playing", "Harvest Moon | Neil Young | Harvest Moon"}}
	tool := New(&fakeCatalog{}, rec, config.MusicKitConfig{})

	result, err := call(t, tool, `{"action":"view"}`)
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if result["player_state"] != "playing" {
		t.Errorf("player_state = %v", result["player_state"])
	}
	track := result["current_track"].(map[string]any)
	if track["name"] != "Harvest Moon" || track["artist"] != "Neil Young" {
		t.Errorf("current_track = %v", track)
	}
}

func TestManageQueue_ViewWithNothingLoaded(t *testing.T) {
	t.Parallel()

	rec := &scriptedRunner{outputs: []string{"stopped", ""}}
	tool := New(&fakeCatalog{}, rec, config.MusicKitConfig{})

	result, err := call(t, tool, `{"action":"view"}`)
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if _, present := result["current_track"]; present {
		t.Errorf("current_track present with stopped player: %v", result)
	}
}

func TestManageQueue_ClearStopsPlayer(t *testing.T) {
	t.Parallel()

	rec := &scriptedRunner{}
	tool := New(&fakeCatalog{}, rec, config.MusicKitConfig{})

	result, err := call(t, tool, `{"action":"clear"}`)
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	if result["status"] != "cleared" {
		t.Errorf("status = %v", result["status"])
	}
	if len(rec.scripts) != 1 || !strings.Contains(rec.scripts[0], "stop") {
		t.Errorf("scripts = %q", rec.scripts)
	}
}

func TestManageQueue_UnknownAction(t *testing.T) {
	t.Parallel()

	tool := New(&fakeCatalog{}, &scriptedRunner{}, config.MusicKitConfig{})
	for _, args := range []string{`{}`, `{"action":"shuffle"}`} {
		_, err := call(t, tool, args)
		te, ok := toolerr.As(err)
		if !ok || te.Code != toolerr.CodeInvalidArguments {
			t.Errorf("args %s: err = %v, want invalid_arguments", args, err)
		}
	}
}
