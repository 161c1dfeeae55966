// Package runconfig reads and writes the XML run-config documents that
// drive a pipeline run. Parsing resolves the document into a flat struct
// with every required field validated up front; the rest of the system
// never sees the XML shape.
package runconfig

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/terrascope-data/gridded.report/internal/fsutil"
)

// ErrMissingValue marks a run-config that parses but lacks a required
// field. Callers treat it as a configuration error.
var ErrMissingValue = errors.New("missing run-config value")

// timeLayout is the timestamp form used in run-config documents.
const timeLayout = time.RFC3339

// Document is the XML shape of a run-config file.
type Document struct {
	XMLName                  xml.Name                 `xml:"RunConfig"`
	InputFileGroup           InputFileGroup           `xml:"InputFileGroup"`
	StaticAncillaryFileGroup StaticAncillaryFileGroup `xml:"StaticAncillaryFileGroup"`
	ProductPathGroup         ProductPathGroup         `xml:"ProductPathGroup"`
	Geometry                 Geometry                 `xml:"Geometry"`
	PrimaryExecutable        PrimaryExecutable        `xml:"PrimaryExecutable"`
	JobIdentification        JobIdentification        `xml:"JobIdentification"`
}

type InputFileGroup struct {
	RadianceSwath string `xml:"RadianceSwath"`
	LSTSwath      string `xml:"LSTSwath"`
	CloudSwath    string `xml:"CloudSwath"`
}

type StaticAncillaryFileGroup struct {
	WorkingDirectory string `xml:"WorkingDirectory"`
	SpatialIndexPath string `xml:"SpatialIndexPath"`
}

type ProductPathGroup struct {
	ProductPath    string `xml:"ProductPath"`
	ProductCounter string `xml:"ProductCounter"`
}

type Geometry struct {
	OrbitNumber string `xml:"OrbitNumber"`
	SceneID     string `xml:"SceneId"`
}

type PrimaryExecutable struct {
	BuildID string `xml:"BuildID"`
}

type JobIdentification struct {
	JobID              string `xml:"JobId"`
	InstanceID         string `xml:"InstanceId"`
	ProcessingNode     string `xml:"ProcessingNode"`
	ProductionDateTime string `xml:"ProductionDateTime"`
}

// Resolved is the validated, flat form of a run-config consumed by the
// pipeline.
type Resolved struct {
	WorkingDir string
	OutputDir  string

	RadiancePath string
	LSTPath      string
	CloudPath    string

	// SpatialIndexPath is the optional persisted index location. Empty
	// means indexes are built in memory only.
	SpatialIndexPath string

	Orbit          int
	Scene          int
	Build          string
	ProductCounter int

	JobID          string
	InstanceID     string
	ProductionTime time.Time
}

func missing(field, path string) error {
	return fmt.Errorf("%w: %s in %s", ErrMissingValue, field, path)
}

// Load parses and validates a run-config file.
func Load(fs fsutil.FileSystem, path string) (*Resolved, error) {
	data, err := fs.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read run-config %s: %w", path, err)
	}
	var doc Document
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse run-config %s: %w", path, err)
	}
	return doc.Resolve(path)
}

// Resolve validates a parsed document. The path argument is used only in
// error messages.
func (doc *Document) Resolve(path string) (*Resolved, error) {
	r := &Resolved{
		WorkingDir:       doc.StaticAncillaryFileGroup.WorkingDirectory,
		OutputDir:        doc.ProductPathGroup.ProductPath,
		RadiancePath:     doc.InputFileGroup.RadianceSwath,
		LSTPath:          doc.InputFileGroup.LSTSwath,
		CloudPath:        doc.InputFileGroup.CloudSwath,
		SpatialIndexPath: doc.StaticAncillaryFileGroup.SpatialIndexPath,
		Build:            doc.PrimaryExecutable.BuildID,
		JobID:            doc.JobIdentification.JobID,
		InstanceID:       doc.JobIdentification.InstanceID,
	}

	if r.WorkingDir == "" {
		return nil, missing("StaticAncillaryFileGroup/WorkingDirectory", path)
	}
	if r.OutputDir == "" {
		return nil, missing("ProductPathGroup/ProductPath", path)
	}
	if r.RadiancePath == "" {
		return nil, missing("InputFileGroup/RadianceSwath", path)
	}
	if r.LSTPath == "" {
		return nil, missing("InputFileGroup/LSTSwath", path)
	}
	if r.CloudPath == "" {
		return nil, missing("InputFileGroup/CloudSwath", path)
	}
	if doc.Geometry.OrbitNumber == "" {
		return nil, missing("Geometry/OrbitNumber", path)
	}
	orbit, err := strconv.Atoi(doc.Geometry.OrbitNumber)
	if err != nil {
		return nil, fmt.Errorf("run-config %s: bad Geometry/OrbitNumber: %w", path, err)
	}
	r.Orbit = orbit
	if doc.Geometry.SceneID == "" {
		return nil, missing("Geometry/SceneId", path)
	}
	scene, err := strconv.Atoi(doc.Geometry.SceneID)
	if err != nil {
		return nil, fmt.Errorf("run-config %s: bad Geometry/SceneId: %w", path, err)
	}
	r.Scene = scene
	if r.Build == "" {
		return nil, missing("PrimaryExecutable/BuildID", path)
	}
	if doc.ProductPathGroup.ProductCounter == "" {
		return nil, missing("ProductPathGroup/ProductCounter", path)
	}
	counter, err := strconv.Atoi(doc.ProductPathGroup.ProductCounter)
	if err != nil {
		return nil, fmt.Errorf("run-config %s: bad ProductPathGroup/ProductCounter: %w", path, err)
	}
	r.ProductCounter = counter
	if doc.JobIdentification.ProductionDateTime == "" {
		return nil, missing("JobIdentification/ProductionDateTime", path)
	}
	t, err := time.Parse(timeLayout, doc.JobIdentification.ProductionDateTime)
	if err != nil {
		return nil, fmt.Errorf("run-config %s: bad JobIdentification/ProductionDateTime: %w", path, err)
	}
	r.ProductionTime = t.UTC()
	return r, nil
}

// Marshal renders a document as an indented XML file body.
func (doc *Document) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "    ")
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("failed to encode run-config: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}
