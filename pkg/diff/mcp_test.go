package diff

import (
	"context"
	"encoding/json"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"seer/pkg/imgio"
)

var testMCPImpl = &mcp.Implementation{Name: "seer-test", Version: "0.1.0"}

func mcpSession(t *testing.T) *mcp.ClientSession {
	t.Helper()
	srv := mcp.NewServer(testMCPImpl, nil)
	RegisterMCP(srv)

	serverT, clientT := mcp.NewInMemoryTransports()
	ctx := context.Background()
	go func() { _ = srv.Run(ctx, serverT) }()

	client := mcp.NewClient(testMCPImpl, nil)
	session, err := client.Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	return session
}

func mcpCallTool(t *testing.T, session *mcp.ClientSession, name string, args any) string {
	t.Helper()
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	tc, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("CallTool(%s): expected TextContent", name)
	}
	if result.IsError {
		t.Fatalf("CallTool(%s) tool error: %s", name, tc.Text)
	}
	return tc.Text
}

func TestMCP_Compare(t *testing.T) {
	session := mcpSession(t)
	dir := t.TempDir()

	tools, err := session.ListTools(context.Background(), nil)
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}
	if len(tools.Tools) != 1 || tools.Tools[0].Name != "seer_compare" {
		t.Fatalf("unexpected tool list: %+v", tools.Tools)
	}

	base := filepath.Join(dir, "base.png")
	cur := filepath.Join(dir, "cur.png")
	diffOut := filepath.Join(dir, "diff.png")
	reportOut := filepath.Join(dir, "report.json")

	white := color.NRGBA{255, 255, 255, 255}
	baseImg := solidImage(100, 100, white)
	curImg := solidImage(100, 100, white)
	fillBlock(curImg, 0, 0, 50, 50, color.NRGBA{0, 0, 0, 255})
	if err := imgio.SavePNG(base, baseImg); err != nil {
		t.Fatalf("save baseline: %v", err)
	}
	if err := imgio.SavePNG(cur, curImg); err != nil {
		t.Fatalf("save current: %v", err)
	}

	text := mcpCallTool(t, session, "seer_compare", map[string]any{
		"baseline":   base,
		"current":    cur,
		"diff_out":   diffOut,
		"report_out": reportOut,
	})

	var resp struct {
		PercentChanged float64 `json:"percent_changed"`
		AvgDiffPercent float64 `json:"avg_diff_percent"`
		HashDistance   int     `json:"hash_distance"`
		Width          int     `json:"width"`
		Height         int     `json:"height"`
		Resized        bool    `json:"resized"`
		DiffImage      string  `json:"diff_image"`
		Report         string  `json:"report"`
	}
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.PercentChanged != 25 || resp.AvgDiffPercent != 25 {
		t.Errorf("metrics = %g%% / %g%%, want 25 / 25", resp.PercentChanged, resp.AvgDiffPercent)
	}
	if resp.Width != 100 || resp.Height != 100 || resp.Resized {
		t.Errorf("unexpected size fields: %+v", resp)
	}
	if _, err := os.Stat(resp.DiffImage); err != nil {
		t.Errorf("diff image missing: %v", err)
	}
	if _, err := os.Stat(resp.Report); err != nil {
		t.Errorf("report missing: %v", err)
	}
}

func TestMCP_Compare_SizeMismatch(t *testing.T) {
	session := mcpSession(t)
	dir := t.TempDir()

	base := filepath.Join(dir, "base.png")
	cur := filepath.Join(dir, "cur.png")
	white := color.NRGBA{255, 255, 255, 255}
	if err := imgio.SavePNG(base, solidImage(40, 40, white)); err != nil {
		t.Fatalf("save baseline: %v", err)
	}
	if err := imgio.SavePNG(cur, solidImage(50, 50, white)); err != nil {
		t.Fatalf("save current: %v", err)
	}

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "seer_compare",
		Arguments: map[string]any{"baseline": base, "current": cur},
	})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected a size mismatch error")
	}
	terr, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatal("expected a TextContent error payload")
	}
	if !strings.Contains(terr.Text, "size mismatch") {
		t.Errorf("unexpected error: %v", terr.Text)
	}

	// The same pair passes once resizing is allowed.
	text := mcpCallTool(t, session, "seer_compare", map[string]any{
		"baseline": base,
		"current":  cur,
		"resize":   true,
	})
	var resp struct {
		Resized bool `json:"resized"`
		Width   int  `json:"width"`
	}
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !resp.Resized || resp.Width != 40 {
		t.Errorf("expected a resized 40-wide comparison, got %+v", resp)
	}
}
