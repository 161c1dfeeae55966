package spatialindex

import (
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"github.com/terrascope-data/gridded.report/internal/fsutil"
	"github.com/terrascope-data/gridded.report/internal/geometry"
)

// Cache resolves spatial indexes, loading them from a persistent location
// when one is configured and trusted, and building them otherwise. Resolved
// indexes are memoized by location so that at most one build happens per
// distinct location per process invocation.
type Cache struct {
	fs    fsutil.FileSystem
	trust bool

	whole map[string]*SpatialIndex
	scans map[string][]*SpatialIndex
	stats Stats
}

// Stats counts cache activity for one process invocation.
type Stats struct {
	Builds   int // indexes built from geometry
	Loads    int // indexes deserialized from disk
	MemoHits int // resolutions served from the in-process memo
}

// NewCache creates a cache over the given filesystem. When trustCache is
// false, existing files at cache locations are ignored and indexes are
// rebuilt (and re-persisted) unconditionally.
func NewCache(fs fsutil.FileSystem, trustCache bool) *Cache {
	return &Cache{
		fs:    fs,
		trust: trustCache,
		whole: make(map[string]*SpatialIndex),
		scans: make(map[string][]*SpatialIndex),
	}
}

// Stats returns the cache activity counters.
func (c *Cache) Stats() Stats { return c.stats }

// Resolve returns the whole-swath index for the given geometry and radius.
// With a non-empty location the index is loaded from there when present and
// trusted, or built and persisted there; with an empty location the index is
// built fresh and never persisted.
func (c *Cache) Resolve(swath *geometry.SwathGeometry, grid *geometry.GridGeometry, radiusMeters float64, location string) (*SpatialIndex, error) {
	if location != "" {
		if ix, ok := c.whole[location]; ok {
			c.stats.MemoHits++
			return ix, nil
		}
		if c.trust && c.fs.Exists(location) {
			log.Printf("spatialindex: loading index from %s", location)
			ix, err := Load(c.fs, location)
			if err != nil {
				return nil, err
			}
			c.stats.Loads++
			c.whole[location] = ix
			return ix, nil
		}
	}

	log.Printf("spatialindex: building index (%d cells, radius %.0fm)", grid.NumCells(), radiusMeters)
	ix, err := Build(swath, grid, radiusMeters)
	if err != nil {
		return nil, err
	}
	c.stats.Builds++

	if location != "" {
		if dir := filepath.Dir(location); dir != "." {
			if err := c.fs.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create index directory: %w", err)
			}
		}
		log.Printf("spatialindex: saving index to %s", location)
		if err := ix.Save(c.fs, location); err != nil {
			return nil, err
		}
		c.whole[location] = ix
	}
	return ix, nil
}

// ResolveScans returns one index per scan line, ordered by scan-line number.
// The location is a directory holding one file per scan line, named by
// two-digit zero-padded ordinal and discovered by lexical sort. Two-digit
// names keep lexical order equal to scan order only up to 100 scan lines;
// a wider swath would interleave on discovery. A directory whose file count
// does not match the swath's scan-line count is treated as incomplete and
// rebuilt wholesale.
func (c *Cache) ResolveScans(swath *geometry.SwathGeometry, grid *geometry.GridGeometry, radiusMeters float64, location string) ([]*SpatialIndex, error) {
	expected := swath.Rows()

	if location != "" {
		if scans, ok := c.scans[location]; ok {
			c.stats.MemoHits++
			return scans, nil
		}
		if c.trust && c.fs.Exists(location) {
			names, err := c.fs.ReadDir(location)
			if err != nil {
				return nil, fmt.Errorf("failed to list index directory %s: %w", location, err)
			}
			var indexFiles []string
			for _, name := range names {
				if strings.HasSuffix(name, IndexFileSuffix) {
					indexFiles = append(indexFiles, name)
				}
			}
			if len(indexFiles) == expected {
				log.Printf("spatialindex: loading %d scan indexes from %s", expected, location)
				scans := make([]*SpatialIndex, 0, expected)
				for _, name := range indexFiles {
					ix, err := Load(c.fs, filepath.Join(location, name))
					if err != nil {
						return nil, err
					}
					scans = append(scans, ix)
				}
				c.stats.Loads++
				c.scans[location] = scans
				return scans, nil
			}
			if len(indexFiles) > 0 {
				log.Printf("spatialindex: index directory %s has %d of %d scan files, rebuilding",
					location, len(indexFiles), expected)
			}
		}
	}

	log.Printf("spatialindex: building %d scan indexes", expected)
	scans := make([]*SpatialIndex, 0, expected)
	for r := 0; r < expected; r++ {
		line, err := swath.ScanLine(r)
		if err != nil {
			return nil, err
		}
		ix, err := Build(line, grid, radiusMeters)
		if err != nil {
			return nil, err
		}
		scans = append(scans, ix)
	}
	c.stats.Builds++

	if location != "" {
		if err := c.fs.MkdirAll(location, 0755); err != nil {
			return nil, fmt.Errorf("failed to create index directory: %w", err)
		}
		for r, ix := range scans {
			name := fmt.Sprintf("%02d%s", r, IndexFileSuffix)
			if err := ix.Save(c.fs, filepath.Join(location, name)); err != nil {
				return nil, err
			}
		}
		log.Printf("spatialindex: saved %d scan indexes to %s", expected, location)
		c.scans[location] = scans
	}
	return scans, nil
}
