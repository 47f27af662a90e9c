// Package version carries build metadata stamped via -ldflags.
package version

var (
	// Version is the semantic version (e.g., "1.0.0")
	Version = "dev"

	// GitCommit is the short git commit hash
	GitCommit = "unknown"
)

// String returns "version (commit)" for startup logging.
func String() string {
	return Version + " (" + GitCommit + ")"
}
