// Package version carries build metadata injected through -ldflags.
package version

import (
	"fmt"
	"runtime"
)

// Info describes one build of a y12 binary
type Info struct {
	// Version is the display string, e.g. "Kestrel (2026.10) - v0.4.0-1a2b3c4"
	Version        string
	ReleaseName    string
	ReleaseVersion string
	BuildDate      string
	GitCommit      string
}

var (
	DefaultVersion        = "dev"
	DefaultReleaseName    = "Kestrel"
	DefaultReleaseVersion = "0.0.0"
	DefaultBuildDate      = "unknown"
	DefaultGitCommit      = "unknown"
)

// New returns an Info populated with the defaults
func New() *Info {
	return &Info{
		Version:        DefaultVersion,
		ReleaseName:    DefaultReleaseName,
		ReleaseVersion: DefaultReleaseVersion,
		BuildDate:      DefaultBuildDate,
		GitCommit:      DefaultGitCommit,
	}
}

// GoVersion returns the runtime Go version
func GoVersion() string {
	return runtime.Version()
}

func (i *Info) String() string {
	return i.Version
}

// Short returns v<release>-<commit>
func (i *Info) Short() string {
	return fmt.Sprintf("v%s-%s", i.ReleaseVersion, i.GitCommit)
}

// UserAgent returns the value sent by outbound HTTP clients
func (i *Info) UserAgent(binary string) string {
	return fmt.Sprintf("%s/%s", binary, i.Short())
}

// Full returns a multi-line description
func (i *Info) Full() string {
	return fmt.Sprintf(`%s
  Release:    %s
  Version:    %s
  Build Date: %s
  Git Commit: %s
  Go Version: %s`,
		i.Version, i.ReleaseName, i.ReleaseVersion, i.BuildDate, i.GitCommit, GoVersion())
}

// Map renders the info for JSON responses
func (i *Info) Map() map[string]string {
	return map[string]string{
		"version":         i.Version,
		"release_name":    i.ReleaseName,
		"release_version": i.ReleaseVersion,
		"build_date":      i.BuildDate,
		"git_commit":      i.GitCommit,
		"go_version":      GoVersion(),
	}
}
