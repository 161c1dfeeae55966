package granule

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// File suffixes for product outputs.
const (
	DataSuffix   = ".grd"
	BrowseSuffix = ".png"
)

// collectionTag prefixes every granule ID in this product collection.
const collectionTag = "TSGv01"

// Product short names.
const (
	ProductRadiance     = "RAD"
	ProductLST          = "LST"
	ProductCloud        = "CLOUD"
	ProductRadianceGrid = "RADG"
	ProductLSTGrid      = "LSTG"
	ProductCloudGrid    = "CLOUDG"
)

// GranuleID composes the canonical granule identifier for a product.
func GranuleID(product string, orbit, scene int, t time.Time, build string, counter int) string {
	return fmt.Sprintf("%s_%s_%05d_%03d_%s_%s_%02d",
		collectionTag, product, orbit, scene, t.UTC().Format("20060102T150405"), build, counter)
}

// BrowsePath derives the browse image path for a primary product path by
// replacing its extension with the image suffix.
func BrowsePath(primaryPath string) string {
	ext := filepath.Ext(primaryPath)
	return strings.TrimSuffix(primaryPath, ext) + BrowseSuffix
}

// ParseGranuleID extracts orbit, scene and build from a granule identifier
// of the canonical form. Used when deriving identifiers from a source
// granule filename.
func ParseGranuleID(id string) (orbit, scene int, build string, err error) {
	parts := strings.Split(id, "_")
	if len(parts) < 5 {
		return 0, 0, "", fmt.Errorf("granule ID %q has too few fields", id)
	}
	orbit, err = strconv.Atoi(parts[len(parts)-5])
	if err != nil {
		return 0, 0, "", fmt.Errorf("granule ID %q: bad orbit field: %w", id, err)
	}
	scene, err = strconv.Atoi(parts[len(parts)-4])
	if err != nil {
		return 0, 0, "", fmt.Errorf("granule ID %q: bad scene field: %w", id, err)
	}
	build = parts[len(parts)-2]
	return orbit, scene, build, nil
}
