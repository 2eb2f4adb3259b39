package version

import (
	"runtime"
	"runtime/debug"
)

// Set via ldflags:
//
//	-X github.com/smazurov/stillcam/internal/version.Version=v0.3.0
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Info contains version and build metadata.
type Info struct {
	Version   string `json:"version" example:"v0.3.0" doc:"Release version"`
	GitCommit string `json:"git_commit" example:"4f2a9c1" doc:"Source revision"`
	BuildDate string `json:"build_date" example:"2026-01-02T03:04:05Z" doc:"Build timestamp"`
	Modified  bool   `json:"modified" doc:"Built from a dirty working tree"`
	GoVersion string `json:"go_version" example:"go1.24.11" doc:"Go toolchain"`
	Platform  string `json:"platform" example:"linux/arm64" doc:"Target OS and architecture"`
}

// Get returns version and build information. Values not set through ldflags
// are filled from the VCS stamp embedded by the go tool when available.
func Get() Info {
	info := Info{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}

	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	if info.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		info.Version = bi.Main.Version
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.GitCommit == "unknown" {
				info.GitCommit = s.Value
			}
		case "vcs.time":
			if info.BuildDate == "unknown" {
				info.BuildDate = s.Value
			}
		case "vcs.modified":
			info.Modified = s.Value == "true"
		}
	}
	return info
}

// String returns the application version string.
func String() string {
	return Get().Version
}
