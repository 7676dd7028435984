// Package version carries the build stamp set with -ldflags at release time.
package version

import "fmt"

var (
	// Version is written to the LOG task log of every processed database.
	Version = "dev"
	GitSHA  = "unknown"
	// BuildTime is the UTC build timestamp.
	BuildTime = "unknown"
)

// String renders the stamp for `lmt-report version`.
func String() string {
	return fmt.Sprintf("lmt-report version %s (%s, built %s)", Version, GitSHA, BuildTime)
}
