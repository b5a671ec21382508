// Package versions provides build information for grain-shell and compares
// the versions recorded in files it writes.
package versions

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"time"
)

const unknown = "unknown"

// Set at build time with -ldflags
var (
	// Version is the release version
	Version = "dev"
	// Commit is the git commit of the build
	Commit = unknown
	// BuildDate is when the binary was built
	BuildDate = unknown
)

// Info describes the running binary
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"buildDate"`
	GoVersion string `json:"goVersion"`
	Platform  string `json:"platform"`
}

// GetInfo returns the build information of the running binary
func GetInfo() Info {
	return infoFrom(Version, Commit, BuildDate, readBuildSettings())
}

// Current returns the version string recorded in journal entries and status files
func Current() string {
	return GetInfo().Version
}

func readBuildSettings() map[string]string {
	settings := map[string]string{}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			settings[s.Key] = s.Value
		}
	}
	return settings
}

func infoFrom(version, commit, buildDate string, settings map[string]string) Info {
	if strings.HasPrefix(version, "dev") {
		if commit == unknown && settings["vcs.revision"] != "" {
			commit = settings["vcs.revision"]
		}
		if buildDate == unknown && settings["vcs.time"] != "" {
			buildDate = settings["vcs.time"]
		}
	}

	if t, err := time.Parse(time.RFC3339, buildDate); err == nil {
		buildDate = t.UTC().Format("2006-01-02 15:04:05 MST")
	}

	if version == "dev" && commit != unknown {
		version = fmt.Sprintf("dev-%.8s", commit)
	}

	return Info{
		Version:   version,
		Commit:    commit,
		BuildDate: buildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}
