// Package healthcheck implements the health_check tool: concurrent probes
// of the AppleScript bridge and the Apple Music catalog.
package healthcheck

import (
	"context"
	"encoding/json"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/cadenza/internal/applescript"
	"github.com/MrWong99/cadenza/internal/catalog"
	"github.com/MrWong99/cadenza/internal/config"
	"github.com/MrWong99/cadenza/internal/toolerr"
	"github.com/MrWong99/cadenza/internal/tools"
)

// probeTimeout bounds each individual check.
const probeTimeout = 10 * time.Second

// Catalog is the slice of the catalog client the health probe needs.
type Catalog interface {
	SearchCatalog(ctx context.Context, cfg config.MusicKitConfig, term string, types []string, limit, offset int) (*catalog.SearchResponse, error)
}

// CheckResult is the outcome of one probe.
type CheckResult struct {
	Status  string `json:"status"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	Hint    string `json:"hint,omitempty"`
}

// Tool serves health_check calls.
type Tool struct {
	catalog Catalog
	runner  applescript.Runner
	cfg     config.MusicKitConfig
}

// New builds the health check tool. A nil runner marks the AppleScript
// probe as unavailable without attempting it.
func New(cat Catalog, runner applescript.Runner, cfg config.MusicKitConfig) *Tool {
	return &Tool{catalog: cat, runner: runner, cfg: cfg}
}

// Definition returns the MCP tool descriptor.
func (t *Tool) Definition() tools.Tool {
	return tools.Tool{
		Name:        "health_check",
		Description: "Check connectivity to the local Music app and the Apple Music catalog.",
		InputSchema: tools.Obj(map[string]any{}),
		Handle:      t.handle,
	}
}

func (t *Tool) handle(ctx context.Context, raw json.RawMessage) (any, error) {
	// No arguments accepted; an unexpected field is still a caller error.
	var empty struct{}
	if err := tools.DecodeArgs(raw, &empty); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	var scriptResult, catalogResult CheckResult
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		scriptResult = t.probeScriptBridge(ctx)
		return nil
	})
	g.Go(func() error {
		catalogResult = t.probeCatalog(ctx)
		return nil
	})
	g.Wait()

	overall := "ok"
	if scriptResult.Status != "ok" || catalogResult.Status != "ok" {
		overall = "degraded"
	}
	return map[string]any{
		"status": overall,
		"checks": map[string]CheckResult{
			"applescript": scriptResult,
			"catalog":     catalogResult,
		},
	}, nil
}

func (t *Tool) probeScriptBridge(ctx context.Context) CheckResult {
	if t.runner == nil {
		return CheckResult{
			Status:  "failed",
			Code:    toolerr.CodeScriptBridgeUnavailable,
			Message: "The osascript interpreter is not available on this system.",
		}
	}
	if _, err := t.runner.Run(ctx, applescript.PlayerState()); err != nil {
		return failedResult(err)
	}
	return CheckResult{Status: "ok"}
}

func (t *Tool) probeCatalog(ctx context.Context) CheckResult {
	if _, err := t.catalog.SearchCatalog(ctx, t.cfg, "health check", []string{"songs"}, 1, 0); err != nil {
		return failedResult(err)
	}
	return CheckResult{Status: "ok"}
}

func failedResult(err error) CheckResult {
	if te, ok := toolerr.As(err); ok {
		return CheckResult{Status: "failed", Code: te.Code, Message: te.Message, Hint: te.Hint}
	}
	return CheckResult{Status: "failed", Code: toolerr.CodeInternalError, Message: err.Error()}
}
