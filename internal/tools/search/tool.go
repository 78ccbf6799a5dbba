// Package search implements the search_music tool: catalog search with a
// short-lived in-process result cache.
package search

import (
	"context"
	"encoding/json"
	"log/slog"

	"go.opentelemetry.io/otel/metric"

	"github.com/MrWong99/cadenza/internal/catalog"
	"github.com/MrWong99/cadenza/internal/config"
	"github.com/MrWong99/cadenza/internal/observe"
	"github.com/MrWong99/cadenza/internal/toolerr"
	"github.com/MrWong99/cadenza/internal/tools"
)

const (
	defaultLimit = 10
	maxLimit     = 25
)

// Catalog is the slice of the catalog client the search tool needs.
type Catalog interface {
	SearchCatalog(ctx context.Context, cfg config.MusicKitConfig, term string, types []string, limit, offset int) (*catalog.SearchResponse, error)
}

// Tool serves search_music calls.
type Tool struct {
	catalog Catalog
	cache   *Cache
	cfg     config.MusicKitConfig
	metrics *observe.Metrics
}

// New builds the search tool. A nil cache disables memoization; a nil
// metrics disables instrumentation.
func New(cat Catalog, cache *Cache, cfg config.MusicKitConfig, metrics *observe.Metrics) *Tool {
	return &Tool{catalog: cat, cache: cache, cfg: cfg, metrics: metrics}
}

// Definition returns the MCP tool descriptor.
func (t *Tool) Definition() tools.Tool {
	return tools.Tool{
		Name:        "search_music",
		Description: "Search the Apple Music catalog for songs, albums, artists, or playlists.",
		InputSchema: tools.Obj(map[string]any{
			"term":   tools.Str("Search term, e.g. a song title or artist name."),
			"types":  tools.StrArray("Catalog resource types to search. Defaults to songs."),
			"limit":  tools.Int("Maximum results per type, 1-25. Defaults to 10."),
			"offset": tools.Int("Result offset for pagination. Defaults to 0."),
		}, "term"),
		Handle: t.handle,
	}
}

type searchArgs struct {
	Term   string   `json:"term"`
	Types  []string `json:"types"`
	Limit  *int     `json:"limit"`
	Offset int      `json:"offset"`
}

func (a *searchArgs) validate() (limit int, err error) {
	if a.Term == "" {
		return 0, toolerr.New(toolerr.CodeInvalidArguments, "A non-empty search term is required.", "")
	}
	if len(a.Types) == 0 {
		a.Types = []string{"songs"}
	}
	limit = defaultLimit
	if a.Limit != nil {
		limit = *a.Limit
	}
	if limit < 1 || limit > maxLimit {
		return 0, toolerr.Newf(toolerr.CodeInvalidArguments, "limit must be between 1 and %d.", maxLimit)
	}
	if a.Offset < 0 {
		return 0, toolerr.New(toolerr.CodeInvalidArguments, "offset must not be negative.", "")
	}
	return limit, nil
}

func (t *Tool) handle(ctx context.Context, raw json.RawMessage) (any, error) {
	var args searchArgs
	if err := tools.DecodeArgs(raw, &args); err != nil {
		return nil, err
	}
	limit, err := args.validate()
	if err != nil {
		return nil, err
	}

	source := "live"
	var resp *catalog.SearchResponse
	if t.cache != nil {
		resp = t.cache.Get(args.Term, args.Types, limit, args.Offset)
	}
	t.recordLookup(ctx, resp != nil)

	if resp != nil {
		source = "cache"
	} else {
		resp, err = t.catalog.SearchCatalog(ctx, t.cfg, args.Term, args.Types, limit, args.Offset)
		if err != nil {
			return nil, err
		}
		if t.cache != nil {
			t.cache.Put(args.Term, args.Types, limit, args.Offset, resp)
		}
	}

	slog.Info("search_music completed",
		"term", args.Term, "types", args.Types, "hits", resp.Hits(), "source", source)

	return map[string]any{
		"source":     source,
		"term":       args.Term,
		"types":      args.Types,
		"limit":      limit,
		"offset":     args.Offset,
		"storefront": t.cfg.Storefront,
		"results":    resp.Songs(),
		"raw":        json.RawMessage(resp.Raw),
	}, nil
}

func (t *Tool) recordLookup(ctx context.Context, hit bool) {
	if t.metrics == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	t.metrics.SearchCacheLookups.Add(ctx, 1, metric.WithAttributes(observe.Attr("result", result)))
}
