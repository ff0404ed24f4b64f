// Command seer annotates screenshots and diffs them against baselines.
//
// Usage:
//
//	seer annotate -spec spec.json [-out out.png] screenshot.png
//	seer compare [-resize] [-diff out.png] [-report out.json] baseline.png current.png
//	seer loop -name home [-root dir] [-update-baseline] current.png
//
// Every subcommand prints a JSON summary on stdout; logs go to stderr.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"seer/pkg/annotate"
	"seer/pkg/diff"
	"seer/pkg/imgio"
	"seer/pkg/loop"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	switch os.Args[1] {
	case "annotate":
		cmdAnnotate(os.Args[2:])
	case "compare":
		cmdCompare(os.Args[2:])
	case "loop":
		cmdLoop(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `seer — screenshot annotation and visual diffing

usage:
  seer annotate -spec spec.json [-out out.png] <screenshot.png>
  seer compare [-resize] [-diff out.png] [-report out.json] <baseline.png> <current.png>
  seer loop -name <name> [-root dir] [-update-baseline] <current.png>

annotate  Draws an annotation spec onto a screenshot.
compare   Diffs two images and prints change metrics.
loop      Feeds a capture into a named baseline loop.
`)
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "seer: %v\n", err)
	os.Exit(1)
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fatal(err)
	}
}

func cmdAnnotate(args []string) {
	fs := flag.NewFlagSet("annotate", flag.ExitOnError)
	specPath := fs.String("spec", "", "JSON or YAML annotation spec (required)")
	out := fs.String("out", "", "output PNG path (default: <input>.annotated.png)")
	verbose := fs.Bool("v", false, "debug logging")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: seer annotate -spec spec.json [-out out.png] <screenshot.png>")
		fs.PrintDefaults()
	}
	fs.Parse(args)
	if *specPath == "" || fs.NArg() != 1 {
		fs.Usage()
		os.Exit(1)
	}

	spec, err := annotate.LoadSpec(*specPath)
	if err != nil {
		fatal(err)
	}
	r := annotate.New(annotate.Config{Logger: newLogger(*verbose)})
	res, err := r.RenderFile(fs.Arg(0), *out, spec)
	if err != nil {
		fatal(err)
	}
	printJSON(res)
}

func cmdCompare(args []string) {
	fs := flag.NewFlagSet("compare", flag.ExitOnError)
	resize := fs.Bool("resize", false, "resample current to the baseline size if dimensions differ")
	diffOut := fs.String("diff", "", "write a red-highlight diff PNG here")
	reportOut := fs.String("report", "", "write the metrics report JSON here")
	verbose := fs.Bool("v", false, "debug logging")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: seer compare [-resize] [-diff out.png] [-report out.json] <baseline.png> <current.png>")
		fs.PrintDefaults()
	}
	fs.Parse(args)
	if fs.NArg() != 2 {
		fs.Usage()
		os.Exit(1)
	}
	newLogger(*verbose)

	baseline, current := fs.Arg(0), fs.Arg(1)
	opts := diff.Options{Resize: *resize, Highlight: *diffOut != ""}
	m, highlight, err := diff.CompareFiles(baseline, current, opts)
	if err != nil {
		fatal(err)
	}
	if *diffOut != "" {
		if err := imgio.SavePNG(*diffOut, highlight); err != nil {
			fatal(err)
		}
	}
	rep := diff.NewReport(baseline, current, *diffOut, m)
	if *reportOut != "" {
		if err := diff.WriteReport(*reportOut, rep); err != nil {
			fatal(err)
		}
	}
	printJSON(rep)
}

func cmdLoop(args []string) {
	fs := flag.NewFlagSet("loop", flag.ExitOnError)
	name := fs.String("name", "", "baseline name, one per logical screen (required)")
	root := fs.String("root", "", "baseline tree root (default: .seer)")
	update := fs.Bool("update-baseline", false, "accept the capture as the new baseline after comparing")
	verbose := fs.Bool("v", false, "debug logging")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: seer loop -name <name> [-root dir] [-update-baseline] <current.png>")
		fs.PrintDefaults()
	}
	fs.Parse(args)
	if *name == "" || fs.NArg() != 1 {
		fs.Usage()
		os.Exit(1)
	}

	s := loop.NewStore(loop.Config{Root: *root, Logger: newLogger(*verbose)})
	res, err := s.Run(*name, fs.Arg(0), *update)
	if err != nil {
		fatal(err)
	}
	printJSON(res)
}
