package annotate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"seer/pkg/mcputil"
)

type annotateReq struct {
	Image    string `json:"image"`
	SpecPath string `json:"spec_path,omitempty"`
	SpecJSON string `json:"spec_json,omitempty"`
	Out      string `json:"out,omitempty"`
}

// RegisterMCP registers the annotation tool on an MCP server.
func (r *Renderer) RegisterMCP(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "seer_annotate",
		Description: "Draw rectangles, arrows, labels, and spotlights from an annotation spec onto a screenshot, saving the result as PNG.",
		InputSchema: mcputil.InputSchema(map[string]any{
			"image":     map[string]any{"type": "string", "description": "Path of the screenshot to annotate"},
			"spec_path": map[string]any{"type": "string", "description": "Path of a JSON or YAML annotation spec"},
			"spec_json": map[string]any{"type": "string", "description": "Inline JSON annotation spec"},
			"out":       map[string]any{"type": "string", "description": "Output PNG path (default: <image>.annotated.png)"},
		}, []string{"image"}),
	}

	mcputil.RegisterTool(srv, tool, func(_ context.Context, args json.RawMessage) (any, error) {
		var in annotateReq
		if err := json.Unmarshal(args, &in); err != nil {
			return nil, fmt.Errorf("invalid arguments: %w", err)
		}
		if in.Image == "" {
			return nil, errors.New(`"image" is required`)
		}
		spec, err := toolSpec(in)
		if err != nil {
			return nil, err
		}

		return r.RenderFile(in.Image, in.Out, spec)
	})
}

func toolSpec(in annotateReq) (*Spec, error) {
	switch {
	case in.SpecPath != "" && in.SpecJSON != "":
		return nil, errors.New(`give either "spec_path" or "spec_json", not both`)
	case in.SpecPath != "":
		return LoadSpec(in.SpecPath)
	case in.SpecJSON != "":
		return ParseSpec([]byte(in.SpecJSON))
	}
	return nil, errors.New(`"spec_path" or "spec_json" is required`)
}
