package version

import (
	"runtime/debug"
	"strings"
	"testing"
	"time"
)

func TestCurrentPrefersBuildVersion(t *testing.T) {
	old := buildVersion
	buildVersion = "v1.2.3+dirty"
	t.Cleanup(func() { buildVersion = old })

	if got := Current(); got != "v1.2.3" {
		t.Fatalf("expected build version, got %q", got)
	}
	if got := CurrentWithDirty(); got != "v1.2.3+dirty" {
		t.Fatalf("expected dirty build version, got %q", got)
	}
}

func TestPseudoFromBuildInfo(t *testing.T) {
	ts := time.Date(2025, time.January, 2, 3, 4, 5, 0, time.UTC)
	info := &debug.BuildInfo{
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "1234567890abcdef"},
			{Key: "vcs.time", Value: ts.Format(time.RFC3339)},
			{Key: "vcs.modified", Value: "true"},
		},
	}
	tests := []struct {
		name  string
		dirty bool
		want  string
	}{
		{"clean", false, "v0.0.0-20250102030405-1234567890ab"},
		{"dirty", true, "v0.0.0-20250102030405-1234567890ab+dirty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := pseudoFromBuildInfo(info, tt.dirty); got != tt.want {
				t.Fatalf("got %q want %q", got, tt.want)
			}
		})
	}
	if pseudoFromBuildInfo(nil, true) != "" {
		t.Fatalf("expected empty version for nil build info")
	}
}

func TestInfoString(t *testing.T) {
	info := Info{
		Module:    "pkt.systems/halolight",
		Version:   "v1.0.0",
		Revision:  "abcdef0123456789",
		BuiltAt:   time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC),
		Modified:  true,
		GoVersion: "go1.25.2",
	}
	want := "pkt.systems/halolight v1.0.0 (abcdef012345, 2025-03-01T12:00:00Z, modified) go1.25.2"
	if got := info.String(); got != want {
		t.Fatalf("got %q want %q", got, want)
	}
	bare := Info{Module: "m", Version: "v0", GoVersion: "go"}
	if got := bare.String(); strings.Contains(got, "(") {
		t.Fatalf("unexpected vcs section: %q", got)
	}
}
