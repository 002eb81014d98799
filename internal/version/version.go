// Package version resolves the build version reported by the bezel CLI
// and the control API health endpoint. Release builds inject it through
// ldflags; development builds fall back to a VCS pseudo-version from the
// embedded build info.
package version

import (
	"runtime/debug"
	"strings"
	"time"
)

const defaultModule = "pkt.systems/bezel"

// buildVersion is injected with
// -ldflags "-X pkt.systems/bezel/internal/version.buildVersion=v1.2.3".
var buildVersion = ""

// Current returns the version string with any +dirty suffix stripped.
// This is what healthz and user-facing logs report.
func Current() string {
	return strings.TrimSuffix(resolve(), "+dirty")
}

// CurrentWithDirty keeps the +dirty suffix so a locally modified build
// is distinguishable from the commit it was built from.
func CurrentWithDirty() string {
	return resolve()
}

// Module returns the module path from build info when available.
func Module() string {
	if info, ok := debug.ReadBuildInfo(); ok {
		if path := strings.TrimSpace(info.Main.Path); path != "" {
			return path
		}
	}
	return defaultModule
}

// resolve picks the first usable source: ldflags, a real module version,
// then a pseudo-version derived from VCS build settings.
func resolve() string {
	if v := strings.TrimSpace(buildVersion); v != "" {
		return v
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		if v := strings.TrimSpace(info.Main.Version); v != "" && v != "(devel)" {
			return v
		}
		if v := pseudoFromBuildInfo(info, true); v != "" {
			return v
		}
	}
	return "v0.0.0-unknown"
}

func pseudoFromBuildInfo(info *debug.BuildInfo, includeDirty bool) string {
	if info == nil {
		return ""
	}
	var revision, vcsTime string
	var modified bool
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
		case "vcs.time":
			vcsTime = setting.Value
		case "vcs.modified":
			modified = setting.Value == "true"
		}
	}
	if revision == "" || vcsTime == "" {
		return ""
	}
	parsed, err := time.Parse(time.RFC3339, vcsTime)
	if err != nil {
		return ""
	}
	if len(revision) > 12 {
		revision = revision[:12]
	}
	ver := "v0.0.0-" + parsed.UTC().Format("20060102150405") + "-" + revision
	if modified && includeDirty {
		ver += "+dirty"
	}
	return ver
}
