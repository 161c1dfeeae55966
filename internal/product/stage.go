// Package product turns gridded granules into deliverable product sets:
// the primary data file, its browse image, optional degree tiles, and a
// coverage report. Each product is produced by an idempotent stage that
// skips work already on disk.
package product

import (
	"fmt"
	"log"

	"github.com/terrascope-data/gridded.report/internal/fsutil"
	"github.com/terrascope-data/gridded.report/internal/granule"
)

// Builder produces the primary product file when the stage needs to run.
type Builder func() (*granule.GriddedGranule, error)

// Renderer writes a browse image for a gridded product.
type Renderer func(fs fsutil.FileSystem, g *granule.GriddedGranule, layer, path string) error

// Stage is one product in the output set. A stage is complete when both
// its primary file and browse image exist; completeness is judged by file
// presence alone, with no integrity check of the contents.
type Stage struct {
	Name    string
	Primary string

	// BrowseLayer selects the layer rendered into the browse image.
	// Empty selects the first layer of the product.
	BrowseLayer string

	// Render overrides the browse renderer. Nil uses RenderBrowse.
	Render Renderer
}

// Complete reports whether the stage's outputs are already on disk.
func (s *Stage) Complete(fs fsutil.FileSystem) bool {
	return fs.Exists(s.Primary) && fs.Exists(granule.BrowsePath(s.Primary))
}

// Ensure makes the stage's outputs exist. When they already do, the
// primary is reopened and the builder is never invoked; otherwise the
// builder produces the primary and the browse image is rendered next to
// it. The built return reports whether any work was done.
func (s *Stage) Ensure(fs fsutil.FileSystem, build Builder) (g *granule.GriddedGranule, built bool, err error) {
	if s.Complete(fs) {
		log.Printf("product: stage %s outputs exist, skipping", s.Name)
		g, err = granule.OpenGridded(fs, s.Primary)
		if err != nil {
			return nil, false, fmt.Errorf("stage %s: failed to reopen existing product: %w", s.Name, err)
		}
		return g, false, nil
	}

	log.Printf("product: stage %s building %s", s.Name, s.Primary)
	g, err = build()
	if err != nil {
		return nil, false, fmt.Errorf("stage %s: %w", s.Name, err)
	}

	layer := s.BrowseLayer
	if layer == "" {
		names := g.LayerNames()
		if len(names) == 0 {
			return nil, false, fmt.Errorf("stage %s: product has no layers to render", s.Name)
		}
		layer = names[0]
	}
	render := s.Render
	if render == nil {
		render = RenderBrowse
	}
	browse := granule.BrowsePath(s.Primary)
	if err := render(fs, g, layer, browse); err != nil {
		return nil, false, fmt.Errorf("stage %s: failed to render browse %s: %w", s.Name, browse, err)
	}
	return g, true, nil
}
