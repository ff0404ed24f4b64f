package diff

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"seer/pkg/imgio"
	"seer/pkg/mcputil"
)

type compareReq struct {
	Baseline  string `json:"baseline"`
	Current   string `json:"current"`
	Resize    bool   `json:"resize,omitempty"`
	DiffOut   string `json:"diff_out,omitempty"`
	ReportOut string `json:"report_out,omitempty"`
}

// RegisterMCP registers the comparison tool on an MCP server.
func RegisterMCP(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "seer_compare",
		Description: "Compare a screenshot against a baseline image: changed-pixel percentage, average difference, and perceptual hash distance, with an optional red-highlight diff image.",
		InputSchema: mcputil.InputSchema(map[string]any{
			"baseline":   map[string]any{"type": "string", "description": "Path of the baseline image"},
			"current":    map[string]any{"type": "string", "description": "Path of the current image"},
			"resize":     map[string]any{"type": "boolean", "description": "Resample current to the baseline size if dimensions differ"},
			"diff_out":   map[string]any{"type": "string", "description": "Write the red-highlight diff PNG here"},
			"report_out": map[string]any{"type": "string", "description": "Write the metrics report JSON here"},
		}, []string{"baseline", "current"}),
	}

	mcputil.RegisterTool(srv, tool, func(_ context.Context, args json.RawMessage) (any, error) {
		var in compareReq
		if err := json.Unmarshal(args, &in); err != nil {
			return nil, fmt.Errorf("invalid arguments: %w", err)
		}
		if in.Baseline == "" || in.Current == "" {
			return nil, errors.New(`"baseline" and "current" are required`)
		}

		opts := Options{Resize: in.Resize, Highlight: in.DiffOut != ""}
		m, highlight, err := CompareFiles(in.Baseline, in.Current, opts)
		if err != nil {
			return nil, err
		}
		if in.DiffOut != "" {
			if err := imgio.SavePNG(in.DiffOut, highlight); err != nil {
				return nil, err
			}
		}
		if in.ReportOut != "" {
			rep := NewReport(in.Baseline, in.Current, in.DiffOut, m)
			if err := WriteReport(in.ReportOut, rep); err != nil {
				return nil, err
			}
		}

		resp := map[string]any{
			"percent_changed":  round3(m.PercentChanged),
			"avg_diff_percent": round3(m.AvgDiffPercent),
			"hash_distance":    m.HashDistance,
			"width":            m.Width,
			"height":           m.Height,
			"resized":          m.Resized,
		}
		if in.DiffOut != "" {
			resp["diff_image"] = absPath(in.DiffOut)
		}
		if in.ReportOut != "" {
			resp["report"] = absPath(in.ReportOut)
		}
		return resp, nil
	})
}
