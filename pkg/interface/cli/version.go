package cli

import (
	"fmt"
	"strings"
)

var (
	// Version is the current version of the program
	Version = "dev"
	// CommitHash is the current commit hash of the program
	CommitHash string
	// BuildTime is the current build time of the program
	BuildTime string
)

// ProgramVersion is the version object of the program, filled via -ldflags
type ProgramVersion struct {
	Version    string `json:"version"`
	CommitHash string `json:"commit_hash"`
	BuildTime  string `json:"build_time"`
}

// CurrentVersion returns the version baked into the binary
func CurrentVersion() ProgramVersion {
	return ProgramVersion{Version: Version, CommitHash: CommitHash, BuildTime: BuildTime}
}

// Short returns the short version of the program
func (v ProgramVersion) Short() string {
	parts := []string{"v" + v.Version}
	for _, p := range []string{v.CommitHash, v.BuildTime} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "-")
}

// String returns the verbose version of the program
func (v ProgramVersion) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Version: v%s\n", v.Version)
	fmt.Fprintf(&b, "Commit: %s\n", v.CommitHash)
	fmt.Fprintf(&b, "Build Date: %s", v.BuildTime)
	return b.String()
}
