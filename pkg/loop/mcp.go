package loop

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"seer/pkg/mcputil"
)

type loopReq struct {
	Name           string `json:"name"`
	Image          string `json:"image"`
	Root           string `json:"root,omitempty"`
	UpdateBaseline bool   `json:"update_baseline,omitempty"`
}

// RegisterMCP registers the baseline loop tool on an MCP server. Tool
// calls are serialized with a mutex because the store expects a single
// writer per baseline name.
func (s *Store) RegisterMCP(srv *mcp.Server) {
	var mu sync.Mutex

	tool := &mcp.Tool{
		Name:        "seer_loop",
		Description: "Track a named baseline screenshot: the first call stores the image as the baseline, later calls diff against it and archive the capture. Set update_baseline to accept the current image as the new baseline.",
		InputSchema: mcputil.InputSchema(map[string]any{
			"name":            map[string]any{"type": "string", "description": "Baseline name, typically one per logical screen"},
			"image":           map[string]any{"type": "string", "description": "Path of the capture to feed into the loop"},
			"root":            map[string]any{"type": "string", "description": "Baseline tree root for this call (default: the server's root)"},
			"update_baseline": map[string]any{"type": "boolean", "description": "Replace the baseline with this capture after comparing"},
		}, []string{"name", "image"}),
	}

	mcputil.RegisterTool(srv, tool, func(_ context.Context, args json.RawMessage) (any, error) {
		var in loopReq
		if err := json.Unmarshal(args, &in); err != nil {
			return nil, fmt.Errorf("invalid arguments: %w", err)
		}
		if in.Name == "" || in.Image == "" {
			return nil, errors.New(`"name" and "image" are required`)
		}
		store := s
		if in.Root != "" {
			store = NewStore(Config{Root: in.Root, Logger: s.log, Now: s.now})
		}
		mu.Lock()
		defer mu.Unlock()
		return store.Run(in.Name, in.Image, in.UpdateBaseline)
	})
}
