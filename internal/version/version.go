// Package version exposes the build version of intentrouter.
package version

import (
	_ "embed"
	"runtime"
	"strings"
)

//go:embed VERSION
var versionContent string

// Commit is set at build time with -ldflags "-X .../version.Commit=<sha>".
var Commit = "unknown"

// Get returns the current version, with whitespace trimmed
func Get() string {
	return strings.TrimSpace(versionContent)
}

// String returns the version with commit and Go runtime details.
func String() string {
	return Get() + " (" + Commit + ", " + runtime.Version() + ")"
}
