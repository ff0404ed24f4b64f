// Package loop keeps a named baseline screenshot on disk and folds every
// new capture into it: the first capture for a name becomes the baseline,
// later captures are archived and compared against it. It is the
// persistence layer for iterate-on-a-screen workflows.
package loop

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"seer/pkg/diff"
	"seer/pkg/imgio"
)

// Loop states reported in Result.State.
const (
	StateBaselineCreated = "baseline_created"
	StateCompared        = "compared"
)

const timestampFormat = "20060102-150405"

// Config tunes a Store. Root is the directory holding the baseline tree;
// Now supplies timestamps and exists so tests can step the clock.
type Config struct {
	Root   string
	Logger *slog.Logger
	Now    func() time.Time
}

func (c Config) defaults() Config {
	if c.Root == "" {
		c.Root = ".seer"
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// Store manages baselines under a root directory. It does no locking:
// callers must not run two invocations for the same name at once.
type Store struct {
	root string
	log  *slog.Logger
	now  func() time.Time
}

func NewStore(cfg Config) *Store {
	cfg = cfg.defaults()
	return &Store{root: cfg.Root, log: cfg.Logger, now: cfg.Now}
}

// Result describes one loop invocation. Metrics is nil when the call
// seeded a fresh baseline.
type Result struct {
	State           string        `json:"state"`
	Name            string        `json:"name"`
	Baseline        string        `json:"baseline"`
	Latest          string        `json:"latest"`
	History         string        `json:"history"`
	Diff            string        `json:"diff_image,omitempty"`
	Report          string        `json:"report,omitempty"`
	Metrics         *diff.Metrics `json:"metrics,omitempty"`
	BaselineUpdated bool          `json:"baseline_updated,omitempty"`
}

// Run feeds one capture into the loop for name. The first call for a name
// copies it to baseline, latest, and history. Later calls archive it the
// same way, then diff it against the baseline, writing a highlight image
// and a metrics report. With updateBaseline the capture also replaces the
// baseline after the comparison; the old baseline survives only as its
// original history entry.
func (s *Store) Run(name, imagePath string, updateBaseline bool) (*Result, error) {
	clean := Sanitize(name)
	// All-dot names survive Sanitize but "." and ".." are path steps,
	// not file names.
	if strings.Trim(clean, ".") == "" {
		return nil, fmt.Errorf("invalid baseline name %q", name)
	}
	ts := s.now().UTC().Format(timestampFormat)

	base := filepath.Join(s.root, "baseline", clean)
	latest := filepath.Join(s.root, "latest", clean)
	history := filepath.Join(s.root, "history", clean+"-"+ts)

	_, err := os.Stat(base)
	if errors.Is(err, os.ErrNotExist) {
		for _, dst := range []string{base, latest, history} {
			if err := copyFile(imagePath, dst); err != nil {
				return nil, err
			}
		}
		s.log.Info("baseline created", "name", clean, "baseline", base)
		return &Result{
			State:    StateBaselineCreated,
			Name:     clean,
			Baseline: absPath(base),
			Latest:   absPath(latest),
			History:  absPath(history),
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("stat baseline: %w", err)
	}

	if err := copyFile(imagePath, latest); err != nil {
		return nil, err
	}
	if err := copyFile(imagePath, history); err != nil {
		return nil, err
	}

	// Window sizes drift while iterating on a screen; compare anyway and
	// let resized=true in the report flag it.
	m, highlight, err := diff.CompareFiles(base, imagePath, diff.Options{Resize: true, Highlight: true})
	if err != nil {
		return nil, err
	}

	diffPath := filepath.Join(s.root, "diff", clean+"-"+ts+".png")
	reportPath := filepath.Join(s.root, "report", clean+"-"+ts+".json")
	if err := imgio.SavePNG(diffPath, highlight); err != nil {
		return nil, err
	}
	if err := diff.WriteReport(reportPath, diff.NewReport(base, imagePath, diffPath, m)); err != nil {
		return nil, err
	}

	res := &Result{
		State:    StateCompared,
		Name:     clean,
		Baseline: absPath(base),
		Latest:   absPath(latest),
		History:  absPath(history),
		Diff:     absPath(diffPath),
		Report:   absPath(reportPath),
		Metrics:  m,
	}
	if updateBaseline {
		if err := copyFile(imagePath, base); err != nil {
			return nil, err
		}
		res.BaselineUpdated = true
	}
	s.log.Info("compared against baseline",
		"name", clean,
		"percent_changed", m.PercentChanged,
		"hash_distance", m.HashDistance,
		"baseline_updated", res.BaselineUpdated)
	return res, nil
}

// Sanitize maps a baseline name onto the filename-safe alphabet: any rune
// outside [A-Za-z0-9._-] becomes an underscore.
func Sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.' || r == '_' || r == '-':
			return r
		}
		return '_'
	}, name)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("copy %s: %w", src, err)
	}
	defer in.Close()
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("copy to %s: %w", dst, err)
	}
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("copy to %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy to %s: %w", dst, err)
	}
	return out.Close()
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}
