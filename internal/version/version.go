// Package version provides version information for abstractbot.
package version

import "fmt"

// These variables are set at build time via ldflags.
var (
	// Version is the semantic version of abstractbot.
	Version = "0.1.0"

	// Commit is the git commit hash.
	Commit = "unknown"

	// BuildDate is the build timestamp.
	BuildDate = "unknown"
)

// String renders the version line printed by the CLI.
func String() string {
	return fmt.Sprintf("abstractbot %s (commit %s, built %s)", Version, Commit, BuildDate)
}
