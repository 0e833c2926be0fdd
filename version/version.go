// Package version exposes build metadata set through -ldflags.
package version

import "runtime"

var (
	// GitRelease is the release tag, e.g. v0.3.0.
	GitRelease = "dev"
	// GitCommit is the commit hash the binary was built from.
	GitCommit = "unknown"
	// GitCommitDate is the commit date in RFC3339.
	GitCommitDate = "unknown"
	// GoInfo is the toolchain and platform the binary was built with.
	GoInfo = runtime.Version() + " " + runtime.GOOS + "/" + runtime.GOARCH
)
