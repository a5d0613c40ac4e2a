// Package agentsim holds build information for the agent simulator.
package agentsim

import "fmt"

// Version is the release version.
const Version = "0.1.0"

// Set at build time with -ldflags "-X github.com/felixgeelhaar/agentsim.GitCommit=...".
var (
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// BuildInfo describes the running binary on one line.
func BuildInfo() string {
	return fmt.Sprintf("agentsim %s (commit %s, built %s)", Version, GitCommit, BuildDate)
}
