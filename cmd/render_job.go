package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/slopify/slopify/packages/cli/internal/media/layout"
	"github.com/slopify/slopify/packages/cli/internal/media/studio"
)

// RenderJob is a render described in a YAML manifest. Relative paths are
// resolved against the manifest's directory.
type RenderJob struct {
	Main       string       `yaml:"main"`
	Overlays   []JobOverlay `yaml:"overlays"`
	Width      int          `yaml:"width"`
	Height     int          `yaml:"height"`
	FrameRate  float64      `yaml:"fps"`
	Duration   float64      `yaml:"duration"`
	Codec      string       `yaml:"codec"`
	Background string       `yaml:"background"`
	OutputDir  string       `yaml:"output_dir"`
	Filename   string       `yaml:"filename"`
	Open       bool         `yaml:"open"`
}

// JobOverlay is one overlay entry. An empty Position is assigned automatically.
type JobOverlay struct {
	Src      string `yaml:"src"`
	Position string `yaml:"position"`
}

func loadRenderJob(path string) (*RenderJob, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read job file: %v", err)
	}
	job := &RenderJob{}
	if err := yaml.Unmarshal(data, job); err != nil {
		return nil, fmt.Errorf("failed to parse job file: %v", err)
	}
	if job.Main == "" {
		return nil, fmt.Errorf("job file %s has no main video", path)
	}

	base := filepath.Dir(path)
	job.Main = resolvePath(base, job.Main)
	for i := range job.Overlays {
		job.Overlays[i].Src = resolvePath(base, job.Overlays[i].Src)
	}
	if job.OutputDir != "" {
		job.OutputDir = resolvePath(base, job.OutputDir)
	}
	return job, nil
}

func resolvePath(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

// parseOverlayFlag splits "path@slot". A suffix that is not a slot stays part
// of the path.
func parseOverlayFlag(s string) JobOverlay {
	if i := strings.LastIndex(s, "@"); i > 0 {
		if _, err := layout.ParsePosition(s[i+1:]); err == nil {
			return JobOverlay{Src: s[:i], Position: s[i+1:]}
		}
	}
	return JobOverlay{Src: s}
}

// assignOverlays resolves overlay slots. Explicit slots are kept; the rest
// take the free visible positions for the overlay count, in display order.
func assignOverlays(overlays []JobOverlay) ([]studio.OverlaySource, error) {
	if len(overlays) > layout.TotalOverlayPositions {
		return nil, fmt.Errorf("%w: %d > %d", layout.ErrTooManyOverlays, len(overlays), layout.TotalOverlayPositions)
	}

	out := make([]studio.OverlaySource, len(overlays))
	used := map[layout.Position]bool{}
	for i, o := range overlays {
		if o.Src == "" {
			return nil, fmt.Errorf("overlay %d has no source", i)
		}
		out[i].Src = o.Src
		if o.Position == "" {
			continue
		}
		p, err := layout.ParsePosition(o.Position)
		if err != nil {
			return nil, err
		}
		if !p.IsOverlay() {
			return nil, fmt.Errorf("overlay %d cannot use the %s position", i, p)
		}
		if used[p] {
			return nil, fmt.Errorf("position %s is assigned twice", p)
		}
		used[p] = true
		out[i].Position = &p
	}

	free := []layout.Position{}
	for _, p := range layout.VisiblePositions(len(overlays)) {
		if !used[p] {
			free = append(free, p)
		}
	}
	for _, p := range layout.PriorityOrder {
		if !used[p] && !slices.Contains(free, p) {
			free = append(free, p)
		}
	}
	for i := range out {
		if out[i].Position != nil {
			continue
		}
		p := free[0]
		free = free[1:]
		out[i].Position = &p
	}
	return out, nil
}
