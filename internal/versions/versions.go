// Package versions reports build information about the running binary.
package versions

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"time"
)

const unknown = "unknown"

// Set at build time via -ldflags. A plain "go build" leaves the defaults
// in place and Get falls back to the VCS metadata embedded by the
// toolchain.
var (
	Version   = "dev"
	Commit    = unknown
	BuildDate = unknown
)

// Info describes the running binary.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// Get assembles the version info, filling gaps from debug.ReadBuildInfo.
func Get() Info {
	version, commit, date := Version, Commit, BuildDate

	if version == "dev" {
		if bi, ok := debug.ReadBuildInfo(); ok {
			for _, s := range bi.Settings {
				switch s.Key {
				case "vcs.revision":
					if commit == unknown {
						commit = s.Value
					}
				case "vcs.time":
					if date == unknown {
						date = s.Value
					}
				}
			}
		}
		if commit != unknown {
			version = "build-" + fmt.Sprintf("%.8s", commit)
		}
	}

	if t, err := time.Parse(time.RFC3339, date); err == nil {
		date = t.Format("2006-01-02 15:04:05 MST")
	}

	return Info{
		Version:   version,
		Commit:    commit,
		BuildDate: date,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}
