package runconfig

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/terrascope-data/gridded.report/internal/fsutil"
	"github.com/terrascope-data/gridded.report/internal/granule"
)

// GenerateParams are the inputs for composing a run-config. Only LSTPath
// is required; companion swaths are discovered next to it and identifiers
// default from the LST granule name.
type GenerateParams struct {
	LSTPath      string
	CloudPath    string
	RadiancePath string

	Orbit int
	Scene int
	Build string

	WorkingDir string
	OutputDir  string

	SpatialIndexPath string

	ProductCounter int
	ProductionTime time.Time
	JobID          string
	InstanceID     string
}

// discoverSibling finds a companion swath next to the LST file by product
// name, orbit and scene. The lexically last candidate wins, matching the
// newest product counter.
func discoverSibling(fs fsutil.FileSystem, dir, product string, orbit, scene int) (string, error) {
	pattern := fmt.Sprintf("*_%s_%05d_%03d_*%s", product, orbit, scene, granule.DataSuffix)
	names, err := fs.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to list %s for %s discovery: %w", dir, product, err)
	}
	var match string
	for _, name := range names {
		ok, err := filepath.Match(pattern, name)
		if err != nil {
			return "", err
		}
		if ok {
			match = name
		}
	}
	if match == "" {
		return "", fmt.Errorf("no %s swath found in %s matching %s", product, dir, pattern)
	}
	return filepath.Join(dir, match), nil
}

// Generate composes a run-config document for the given LST swath and
// writes it under <workingDir>/runconfig. An existing file for the same
// granule is left untouched and its path returned.
func Generate(fs fsutil.FileSystem, p GenerateParams) (string, error) {
	if p.LSTPath == "" {
		return "", fmt.Errorf("%w: LST swath path", ErrMissingValue)
	}
	if !fs.Exists(p.LSTPath) {
		return "", fmt.Errorf("LST swath not found: %s", p.LSTPath)
	}

	sourceID := strings.TrimSuffix(filepath.Base(p.LSTPath), filepath.Ext(p.LSTPath))
	if p.Orbit == 0 || p.Scene == 0 || p.Build == "" {
		orbit, scene, build, err := granule.ParseGranuleID(sourceID)
		if err != nil {
			return "", fmt.Errorf("cannot derive orbit/scene/build from %s: %w", sourceID, err)
		}
		if p.Orbit == 0 {
			p.Orbit = orbit
		}
		if p.Scene == 0 {
			p.Scene = scene
		}
		if p.Build == "" {
			p.Build = build
		}
	}

	dir := filepath.Dir(p.LSTPath)
	if p.CloudPath == "" {
		path, err := discoverSibling(fs, dir, granule.ProductCloud, p.Orbit, p.Scene)
		if err != nil {
			return "", err
		}
		p.CloudPath = path
		log.Printf("runconfig: discovered cloud swath %s", path)
	}
	if p.RadiancePath == "" {
		path, err := discoverSibling(fs, dir, granule.ProductRadiance, p.Orbit, p.Scene)
		if err != nil {
			return "", err
		}
		p.RadiancePath = path
		log.Printf("runconfig: discovered radiance swath %s", path)
	}

	if p.WorkingDir == "" {
		p.WorkingDir = sourceID
	}
	if p.OutputDir == "" {
		p.OutputDir = filepath.Join(p.WorkingDir, "output")
	}
	if p.ProductCounter == 0 {
		p.ProductCounter = 1
	}
	if p.ProductionTime.IsZero() {
		p.ProductionTime = time.Now().UTC()
	}
	if p.JobID == "" {
		p.JobID = uuid.NewString()
	}
	if p.InstanceID == "" {
		p.InstanceID = uuid.NewString()
	}

	node, err := os.Hostname()
	if err != nil {
		node = "unknown"
	}

	doc := &Document{
		InputFileGroup: InputFileGroup{
			RadianceSwath: p.RadiancePath,
			LSTSwath:      p.LSTPath,
			CloudSwath:    p.CloudPath,
		},
		StaticAncillaryFileGroup: StaticAncillaryFileGroup{
			WorkingDirectory: p.WorkingDir,
			SpatialIndexPath: p.SpatialIndexPath,
		},
		ProductPathGroup: ProductPathGroup{
			ProductPath:    p.OutputDir,
			ProductCounter: strconv.Itoa(p.ProductCounter),
		},
		Geometry: Geometry{
			OrbitNumber: strconv.Itoa(p.Orbit),
			SceneID:     strconv.Itoa(p.Scene),
		},
		PrimaryExecutable: PrimaryExecutable{BuildID: p.Build},
		JobIdentification: JobIdentification{
			JobID:              p.JobID,
			InstanceID:         p.InstanceID,
			ProcessingNode:     node,
			ProductionDateTime: p.ProductionTime.Format(timeLayout),
		},
	}

	name := fmt.Sprintf("%s_%05d_%03d_%s.xml", granule.ProductLST, p.Orbit, p.Scene, p.Build)
	path := filepath.Join(p.WorkingDir, "runconfig", name)
	if fs.Exists(path) {
		log.Printf("runconfig: %s exists, not regenerating", path)
		return path, nil
	}

	body, err := doc.Marshal()
	if err != nil {
		return "", err
	}
	if err := fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create run-config directory: %w", err)
	}
	if err := fs.WriteFile(path, body, 0644); err != nil {
		return "", fmt.Errorf("failed to write run-config %s: %w", path, err)
	}
	log.Printf("runconfig: wrote %s", path)
	return path, nil
}
