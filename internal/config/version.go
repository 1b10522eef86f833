package config

import "fmt"

// Set via -ldflags "-X github.com/bobmcallan/dodgy-dave/internal/config.Version=..." at build time.
var (
	Version   = "dev"
	Build     = "unknown"
	GitCommit = "unknown"
)

// BuildInfo describes the running binary.
type BuildInfo struct {
	Version   string `json:"version"`
	Build     string `json:"build"`
	GitCommit string `json:"git_commit"`
}

// Info returns the build information baked into the binary.
func Info() BuildInfo {
	return BuildInfo{Version: Version, Build: Build, GitCommit: GitCommit}
}

// String renders the version with build metadata, e.g. "dev (build: unknown, commit: unknown)".
func (b BuildInfo) String() string {
	return fmt.Sprintf("%s (build: %s, commit: %s)", b.Version, b.Build, b.GitCommit)
}
