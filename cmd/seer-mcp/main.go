// Command seer-mcp serves the annotation, comparison, and baseline-loop
// tools over MCP on stdin/stdout, for use by agent clients.
//
// Usage:
//
//	seer-mcp [-root .seer] [-log-level info]
package main

import (
	"context"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"seer/pkg/annotate"
	"seer/pkg/diff"
	"seer/pkg/loop"
)

const version = "1.0.0"

func main() {
	root := flag.String("root", "", "baseline tree root for the loop tool (default: .seer)")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	// Stdout carries the protocol; logs must stay on stderr.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	srv := mcp.NewServer(&mcp.Implementation{Name: "seer", Version: version}, nil)
	annotate.New(annotate.Config{Logger: logger}).RegisterMCP(srv)
	diff.RegisterMCP(srv)
	loop.NewStore(loop.Config{Root: *root, Logger: logger}).RegisterMCP(srv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	transport := &mcp.IOTransport{
		Reader: os.Stdin,
		Writer: os.Stdout,
	}
	logger.Info("seer mcp server on stdio", "version", version)
	if err := srv.Run(ctx, transport); err != nil && err != io.EOF && ctx.Err() == nil {
		logger.Error("mcp server", "error", err)
		os.Exit(1)
	}
}
