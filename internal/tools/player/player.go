// Package player implements the play_song and control_playback tools,
// bridging catalog lookups to local Music.app playback.
package player

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/MrWong99/cadenza/internal/applescript"
	"github.com/MrWong99/cadenza/internal/catalog"
	"github.com/MrWong99/cadenza/internal/config"
	"github.com/MrWong99/cadenza/internal/toolerr"
	"github.com/MrWong99/cadenza/internal/tools"
)

// Catalog is the slice of the catalog client the player needs.
type Catalog interface {
	GetSong(ctx context.Context, cfg config.MusicKitConfig, songID string) (catalog.Song, error)
}

// Tools serves play_song and control_playback calls.
type Tools struct {
	catalog Catalog
	runner  applescript.Runner
	cfg     config.MusicKitConfig
}

// New builds the player tools.
func New(cat Catalog, runner applescript.Runner, cfg config.MusicKitConfig) *Tools {
	return &Tools{catalog: cat, runner: runner, cfg: cfg}
}

// PlaySong returns the play_song tool descriptor.
func (t *Tools) PlaySong() tools.Tool {
	return tools.Tool{
		Name:        "play_song",
		Description: "Play a song from the Apple Music catalog in the local Music app.",
		InputSchema: tools.Obj(map[string]any{
			"track_id":          tools.Str("Apple Music catalog identifier of the track."),
			"play_location_url": tools.Str("Optional catalog URL to open instead of resolving the track id."),
		}, "track_id"),
		Handle: t.handlePlay,
	}
}

// ControlPlayback returns the control_playback tool descriptor.
func (t *Tools) ControlPlayback() tools.Tool {
	return tools.Tool{
		Name:        "control_playback",
		Description: "Control local playback: play, pause, skip, shuffle, repeat.",
		InputSchema: tools.Obj(map[string]any{
			"action":       tools.StrEnum("Playback action to perform.", "play", "pause", "next", "previous", "toggle_shuffle", "toggle_repeat"),
			"shuffle_mode": tools.StrEnum("Shuffle grouping for toggle_shuffle.", "off", "songs", "albums"),
			"repeat_mode":  tools.StrEnum("Repeat mode for toggle_repeat.", "off", "one", "all"),
		}, "action"),
		Handle: t.handleControl,
	}
}

type playArgs struct {
	TrackID         string `json:"track_id"`
	PlayLocationURL string `json:"play_location_url"`
}

func (t *Tools) handlePlay(ctx context.Context, raw json.RawMessage) (any, error) {
	var args playArgs
	if err := tools.DecodeArgs(raw, &args); err != nil {
		return nil, err
	}
	if args.TrackID == "" {
		return nil, toolerr.New(toolerr.CodeInvalidArguments, "A track_id is required.", "")
	}

	song, err := t.catalog.GetSong(ctx, t.cfg, args.TrackID)
	if err != nil {
		return nil, err
	}

	url := args.PlayLocationURL
	if url == "" {
		url = song.URL
	}
	if url == "" && song.PlayParams != nil {
		if id := song.PlayParams.CatalogID; id != "" {
			url = "https://music.apple.com/" + id
		} else if song.PlayParams.ID != "" {
			url = "https://music.apple.com/" + song.PlayParams.ID
		}
	}
	if url == "" {
		return nil, toolerr.New(
			toolerr.CodePlaybackURLUnavailable,
			"The track carries no playable catalog URL.",
			"The resource may not be playable in this storefront.",
		)
	}

	if _, err := t.runner.Run(ctx, applescript.OpenLocation(url)); err != nil {
		return nil, err
	}

	slog.Info("play_song started playback", "track_id", args.TrackID, "url", url)
	return map[string]any{
		"status": "playing",
		"track":  song,
		"url":    url,
	}, nil
}

type controlArgs struct {
	Action      string `json:"action"`
	ShuffleMode string `json:"shuffle_mode"`
	RepeatMode  string `json:"repeat_mode"`
}

func (t *Tools) handleControl(ctx context.Context, raw json.RawMessage) (any, error) {
	var args controlArgs
	if err := tools.DecodeArgs(raw, &args); err != nil {
		return nil, err
	}

	var script string
	switch args.Action {
	case "play":
		script = applescript.Play()
	case "pause":
		script = applescript.Pause()
	case "next":
		script = applescript.NextTrack()
	case "previous":
		script = applescript.PreviousTrack()
	case "toggle_shuffle":
		mode := args.ShuffleMode
		if mode == "" {
			mode = "songs"
		}
		if mode != "off" && mode != "songs" && mode != "albums" {
			return nil, toolerr.Newf(toolerr.CodeInvalidArguments, "shuffle_mode %q is not one of off, songs, albums.", mode)
		}
		script = applescript.SetShuffleMode(mode)
	case "toggle_repeat":
		mode := args.RepeatMode
		if mode == "" {
			mode = "all"
		}
		if mode != "off" && mode != "one" && mode != "all" {
			return nil, toolerr.Newf(toolerr.CodeInvalidArguments, "repeat_mode %q is not one of off, one, all.", mode)
		}
		script = applescript.SetRepeatMode(mode)
	case "":
		return nil, toolerr.New(toolerr.CodeInvalidArguments, "An action is required.", "")
	default:
		return nil, toolerr.Newf(toolerr.CodeInvalidArguments, "Unknown playback action %q.", args.Action)
	}

	if _, err := t.runner.Run(ctx, script); err != nil {
		return nil, err
	}
	return map[string]any{"status": "ok", "action": args.Action}, nil
}
