// Package version reports the build version of the halolight binary.
package version

import (
	"runtime"
	"runtime/debug"
	"strings"
	"sync"
	"time"
)

const (
	defaultModule  = "pkt.systems/halolight"
	unknownVersion = "v0.0.0-unknown"
	dirtySuffix    = "+dirty"
)

// buildVersion is set via -ldflags "-X pkt.systems/halolight/internal/version.buildVersion=...".
var buildVersion = ""

var buildInfo = sync.OnceValues(debug.ReadBuildInfo)

// Info describes the running binary.
type Info struct {
	Module    string
	Version   string
	Revision  string
	BuiltAt   time.Time
	Modified  bool
	GoVersion string
}

// String renders the info as one line, e.g.
// "pkt.systems/halolight v1.0.0 (abcdef012345, 2025-03-01T12:00:00Z, modified) go1.25.2".
func (i Info) String() string {
	line := i.Module + " " + i.Version
	if i.Revision != "" {
		details := []string{shortRevision(i.Revision)}
		if !i.BuiltAt.IsZero() {
			details = append(details, i.BuiltAt.UTC().Format(time.RFC3339))
		}
		if i.Modified {
			details = append(details, "modified")
		}
		line += " (" + strings.Join(details, ", ") + ")"
	}
	return line + " " + i.GoVersion
}

// Read collects the version info from the linker flag and the build info.
func Read() Info {
	info := Info{Module: defaultModule, Version: Current(), GoVersion: runtime.Version()}
	bi, ok := buildInfo()
	if !ok {
		return info
	}
	if path := strings.TrimSpace(bi.Main.Path); path != "" {
		info.Module = path
	}
	info.stampVCS(bi)
	return info
}

func (i *Info) stampVCS(bi *debug.BuildInfo) {
	if bi == nil {
		return
	}
	for _, setting := range bi.Settings {
		switch setting.Key {
		case "vcs.revision":
			i.Revision = setting.Value
		case "vcs.time":
			if at, err := time.Parse(time.RFC3339, setting.Value); err == nil {
				i.BuiltAt = at
			}
		case "vcs.modified":
			i.Modified = setting.Value == "true"
		}
	}
}

// Current returns the best available version without a +dirty suffix.
func Current() string {
	return resolve(false)
}

// CurrentWithDirty is Current but keeps +dirty for modified trees.
func CurrentWithDirty() string {
	return resolve(true)
}

// resolve prefers the linker flag, then the module version, then a
// pseudo-version built from the VCS stamp.
func resolve(dirty bool) string {
	trim := func(v string) string {
		if dirty {
			return v
		}
		return strings.TrimSuffix(v, dirtySuffix)
	}
	if v := strings.TrimSpace(buildVersion); v != "" {
		return trim(v)
	}
	bi, ok := buildInfo()
	if !ok {
		return unknownVersion
	}
	if v := strings.TrimSpace(bi.Main.Version); v != "" && v != "(devel)" {
		return trim(v)
	}
	if v := pseudoFromBuildInfo(bi, dirty); v != "" {
		return v
	}
	return unknownVersion
}

// pseudoFromBuildInfo builds a Go pseudo-version from the VCS stamp.
func pseudoFromBuildInfo(bi *debug.BuildInfo, dirty bool) string {
	var stamp Info
	stamp.stampVCS(bi)
	if stamp.Revision == "" || stamp.BuiltAt.IsZero() {
		return ""
	}
	v := "v0.0.0-" + stamp.BuiltAt.UTC().Format("20060102150405") + "-" + shortRevision(stamp.Revision)
	if dirty && stamp.Modified {
		v += dirtySuffix
	}
	return v
}

func shortRevision(rev string) string {
	return rev[:min(len(rev), 12)]
}
