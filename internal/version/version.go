package version

var (
	// Version is the current pipeline version, stamped into product
	// provenance metadata
	Version = "dev"
	// GitSHA is the git commit SHA
	GitSHA = "unknown"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
)

// PGEName identifies this product generation executable in provenance
// metadata and run ledgers.
const PGEName = "SWATH_GRID_RAD_LST"
