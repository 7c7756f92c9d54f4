package config

import "stepnotify/internal/types"

// Linker-injected build metadata variables. These are set at compile time
// via -ldflags, for example:
//
//	go build -ldflags "-X stepnotify/internal/config.version=1.2.3 \
//	    -X stepnotify/internal/config.commit=$(git rev-parse --short HEAD) \
//	    -X stepnotify/internal/config.buildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
//
// Default values are used during local development when ldflags are not set.
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

// NewBuildInfo constructs a BuildInfo from the linker-injected globals.
func NewBuildInfo() types.BuildInfo {
	return types.BuildInfo{
		Version:   version,
		Commit:    commit,
		BuildTime: buildTime,
	}
}
