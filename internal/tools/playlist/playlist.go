// Package playlist implements the create_playlist tool: a local playlist
// created through the AppleScript bridge, with catalog track ids resolved
// to names before insertion.
package playlist

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

// Catalog is the slice of the catalog client the playlist tool needs.
type Catalog interface {
	GetSong(ctx context.Context, cfg config.MusicKitConfig, songID string) (catalog.Song, error)
}

// Tool serves create_playlist calls.
type Tool struct {
	catalog Catalog
	runner  applescript.Runner
	cfg     config.MusicKitConfig
}

// New builds the playlist tool.
func New(cat Catalog, runner applescript.Runner, cfg config.MusicKitConfig) *Tool {
	return &Tool{catalog: cat, runner: runner, cfg: cfg}
}

// Definition returns the MCP tool descriptor.
func (t *Tool) Definition() tools.Tool {
	return tools.Tool{
		Name:        "create_playlist",
		Description: "Create a playlist in the local Music library, optionally seeded with library tracks.",
		InputSchema: tools.Obj(map[string]any{
			"name":        tools.Str("Name of the new playlist."),
			"description": tools.Str("Optional playlist description."),
			"track_ids":   tools.StrArray("Optional catalog track ids to add. Tracks must already be in the library."),
		}, "name"),
		Handle: t.handle,
	}
}

type createArgs struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	TrackIDs    []string `json:"track_ids"`
}

func (t *Tool) handle(ctx context.Context, raw json.RawMessage) (any, error) {
	var args createArgs
	if err := tools.DecodeArgs(raw, &args); err != nil {
		return nil, err
	}
	if args.Name == "" {
		return nil, toolerr.New(toolerr.CodeInvalidArguments, "A playlist name is required.", "")
	}

	if _, err := t.runner.Run(ctx, applescript.CreatePlaylist(args.Name, args.Description)); err != nil {
		return nil, err
	}

	// Track insertion matches on name, so failures for tracks missing from
	// the library are reported per-track instead of failing the call.
	added := make([]string, 0, len(args.TrackIDs))
	var skipped []map[string]string
	for _, id := range args.TrackIDs {
		song, err := t.catalog.GetSong(ctx, t.cfg, id)
		if err != nil {
			skipped = append(skipped, skipReason(id, err))
			continue
		}
		if _, err := t.runner.Run(ctx, applescript.AddTrackToPlaylist(args.Name, song.Name)); err != nil {
			skipped = append(skipped, skipReason(id, err))
			continue
		}
		added = append(added, song.Name)
	}

	slog.Info("create_playlist finished",
		"name", args.Name, "added", len(added), "skipped", len(skipped))

	result := map[string]any{
		"status": "created",
		"name":   args.Name,
		"added":  added,
	}
	if len(skipped) > 0 {
		result["skipped"] = skipped
	}
	return result, nil
}

func skipReason(trackID string, err error) map[string]string {
	reason := map[string]string{"track_id": trackID}
	if te, ok := toolerr.As(err); ok {
		reason["code"] = te.Code
		reason["message"] = te.Message
	} else {
		reason["message"] = err.Error()
	}
	return reason
}
