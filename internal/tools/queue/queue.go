// Package queue implements the manage_queue tool over the AppleScript
// bridge. Music.app exposes no scriptable up-next queue, so "add" starts
// catalog playback of the track, "view" reports the current track, and
// "clear" stops the player.
package queue

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/MrWong99/cadenza/internal/applescript"
	"github.com/MrWong99/cadenza/internal/catalog"
	"github.com/MrWong99/cadenza/internal/config"
	"github.com/MrWong99/cadenza/internal/toolerr"
	"github.com/MrWong99/cadenza/internal/tools"
)

// Catalog is the slice of the catalog client the queue tool needs.
type Catalog interface {
	GetSong(ctx context.Context, cfg config.MusicKitConfig, songID string) (catalog.Song, error)
}

// Tool serves manage_queue calls.
type Tool struct {
	catalog Catalog
	runner  applescript.Runner
	cfg     config.MusicKitConfig
}

// New builds the queue tool.
func New(cat Catalog, runner applescript.Runner, cfg config.MusicKitConfig) *Tool {
	return &Tool{catalog: cat, runner: runner, cfg: cfg}
}

// Definition returns the MCP tool descriptor.
func (t *Tool) Definition() tools.Tool {
	return tools.Tool{
		Name:        "manage_queue",
		Description: "Manage playback: add a track, view what is playing, or clear playback.",
		InputSchema: tools.Obj(map[string]any{
			"action":    tools.StrEnum("Queue action to perform.", "add", "view", "clear"),
			"track_id":  tools.Str("Catalog track id, required for add."),
			"play_next": tools.Bool("For add: true to interrupt the current track."),
		}, "action"),
		Handle: t.handle,
	}
}

type queueArgs struct {
	Action   string `json:"action"`
	TrackID  string `json:"track_id"`
	PlayNext bool   `json:"play_next"`
}

func (t *Tool) handle(ctx context.Context, raw json.RawMessage) (any, error) {
	var args queueArgs
	if err := tools.DecodeArgs(raw, &args); err != nil {
		return nil, err
	}

	switch args.Action {
	case "add":
		return t.add(ctx, args)
	case "view":
		return t.view(ctx)
	case "clear":
		if _, err := t.runner.Run(ctx, applescript.Stop()); err != nil {
			return nil, err
		}
		return map[string]any{"status": "cleared"}, nil
	case "":
		return nil, toolerr.New(toolerr.CodeInvalidArguments, "An action is required.", "")
	default:
		return nil, toolerr.Newf(toolerr.CodeInvalidArguments, "Unknown queue action %q.", args.Action)
	}
}

func (t *Tool) add(ctx context.Context, args queueArgs) (any, error) {
	if args.TrackID == "" {
		return nil, toolerr.New(toolerr.CodeInvalidArguments, "add requires a track_id.", "")
	}
	if !args.PlayNext {
		return nil, toolerr.New(
			toolerr.CodeUnsupportedOperation,
			"The Music app does not expose a scriptable up-next queue.",
			"Set play_next to true to play the track immediately instead.",
		)
	}

	song, err := t.catalog.GetSong(ctx, t.cfg, args.TrackID)
	if err != nil {
		return nil, err
	}
	if song.URL == "" {
		return nil, toolerr.New(
			toolerr.CodePlaybackURLUnavailable,
			"The track carries no playable catalog URL.",
			"",
		)
	}
	if _, err := t.runner.Run(ctx, applescript.OpenLocation(song.URL)); err != nil {
		return nil, err
	}
	return map[string]any{"status": "playing", "track": song}, nil
}

func (t *Tool) view(ctx context.Context) (any, error) {
	state, err := t.runner.Run(ctx, applescript.PlayerState())
	if err != nil {
		return nil, err
	}

	result := map[string]any{"player_state": state}
	current, err := t.runner.Run(ctx, applescript.CurrentTrack())
	if err != nil {
		return nil, err
	}
	if current != "" {
		parts := strings.SplitN(current, " | ", 3)
		track := map[string]any{"name": parts[0]}
		if len(parts) > 1 {
			track["artist"] = parts[1]
		}
		if len(parts) > 2 {
			track["album"] = parts[2]
		}
		result["current_track"] = track
	}
	return result, nil
}
