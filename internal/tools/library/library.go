// Package library implements the add_to_library and remove_from_library
// tools. Adding opens the catalog track locally and duplicates it into the
// library source; removal is not scriptable and reports a classified
// unsupported_operation instead of pretending success.
package library

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

// Catalog is the slice of the catalog client the library tools need.
type Catalog interface {
	GetSong(ctx context.Context, cfg config.MusicKitConfig, songID string) (catalog.Song, error)
}

// Tools serves the library tool calls.
type Tools struct {
	catalog Catalog
	runner  applescript.Runner
	cfg     config.MusicKitConfig
}

// New builds the library tools.
func New(cat Catalog, runner applescript.Runner, cfg config.MusicKitConfig) *Tools {
	return &Tools{catalog: cat, runner: runner, cfg: cfg}
}

// Add returns the add_to_library tool descriptor.
func (t *Tools) Add() tools.Tool {
	return tools.Tool{
		Name:        "add_to_library",
		Description: "Add a catalog track to the local Music library.",
		InputSchema: tools.Obj(map[string]any{
			"track_id": tools.Str("Apple Music catalog identifier of the track."),
		}, "track_id"),
		Handle: t.handleAdd,
	}
}

// Remove returns the remove_from_library tool descriptor.
func (t *Tools) Remove() tools.Tool {
	return tools.Tool{
		Name:        "remove_from_library",
		Description: "Remove a track from the local Music library.",
		InputSchema: tools.Obj(map[string]any{
			"track_id": tools.Str("Apple Music catalog identifier of the track."),
		}, "track_id"),
		Handle: t.handleRemove,
	}
}

type trackArgs struct {
	TrackID string `json:"track_id"`
}

func (t *Tools) handleAdd(ctx context.Context, raw json.RawMessage) (any, error) {
	var args trackArgs
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
	if song.URL == "" {
		return nil, toolerr.New(
			toolerr.CodePlaybackURLUnavailable,
			"The track carries no catalog URL to open.",
			"",
		)
	}

	// The track has to be loaded in the player before it can be duplicated
	// into the library source.
	if _, err := t.runner.Run(ctx, applescript.OpenLocation(song.URL)); err != nil {
		return nil, err
	}
	if _, err := t.runner.Run(ctx, applescript.AddCurrentTrackToLibrary()); err != nil {
		return nil, err
	}

	slog.Info("add_to_library added track", "track_id", args.TrackID, "name", song.Name)
	return map[string]any{"status": "added", "track": song}, nil
}

func (t *Tools) handleRemove(ctx context.Context, raw json.RawMessage) (any, error) {
	var args trackArgs
	if err := tools.DecodeArgs(raw, &args); err != nil {
		return nil, err
	}
	if args.TrackID == "" {
		return nil, toolerr.New(toolerr.CodeInvalidArguments, "A track_id is required.", "")
	}

	return nil, toolerr.New(
		toolerr.CodeUnsupportedOperation,
		"Removing tracks is not supported through the scripting bridge.",
		"Remove the track manually in the Music app.",
	)
}
