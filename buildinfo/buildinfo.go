// Package buildinfo provides build information about the binary, injected at
// build time via ldflags.
package buildinfo

import "fmt"

var (
	// GitCommit is the current git commit.
	GitCommit = "git-commit-not-set"
	// GitBranch is the current git branch.
	GitBranch = "git-branch-not-set"
	// GitState is the current git state (clean or dirty).
	GitState = "git-state-not-set"
	// GitSummary is output of "git describe --tags --dirty --always".
	GitSummary = "git-summary-not-set"
	// BuildDate is the date the binary was built.
	BuildDate = "build-date-not-set"
	// Version is the binary release version.
	Version = "version-not-set"
)

// Summary returns a single-line build summary.
func Summary() string {
	return fmt.Sprintf("%s (branch: %s, commit: %s, state: %s, built: %s)",
		Version, GitBranch, GitCommit, GitState, BuildDate)
}
