package version

import (
	"github.com/prometheus/client_golang/prometheus"
	versioncollector "github.com/prometheus/client_golang/prometheus/collectors/version"
	promversion "github.com/prometheus/common/version"
)

// Set at build time with -ldflags "-X cloudops/internal/version.Version=...".
var (
	Version   string = "dev"
	GitCommit string = "unknown"
	BuildTime string = "unknown"
)

const program = "cloudops"

func GetVersion() string {
	return Version
}

func GetFullVersion() string {
	return Version + " (commit: " + GitCommit + ", built: " + BuildTime + ")"
}

func setBuildInfo() {
	promversion.Version = Version
	promversion.Revision = GitCommit
	promversion.BuildDate = BuildTime
}

// Collector exposes the build as the cloudops_build_info gauge.
func Collector() prometheus.Collector {
	setBuildInfo()
	return versioncollector.NewCollector(program)
}

// Print returns the multi-line build report shown by the version command.
func Print() string {
	setBuildInfo()
	return promversion.Print(program)
}
