package version

import (
	"runtime/debug"
	"strings"
	"testing"

	"github.com/fatih/color"
)

func TestColoredWithoutColor(t *testing.T) {
	prevNoColor := color.NoColor
	prevVersion := Version
	t.Cleanup(func() {
		color.NoColor = prevNoColor
		Version = prevVersion
	})
	color.NoColor = true

	tests := []struct {
		version string
		want    string
	}{
		{"0.1.0-dev", "0.1.0-dev"},
		{"1.2.3", "1.2.3"},
		{"  ", "dev"},
	}
	for _, tt := range tests {
		Version = tt.version
		if got := Colored(); got != tt.want {
			t.Fatalf("Colored() with %q = %q, want %q", tt.version, got, tt.want)
		}
	}
}

func TestColoredHighlightsParts(t *testing.T) {
	prevNoColor := color.NoColor
	prevVersion := Version
	t.Cleanup(func() {
		color.NoColor = prevNoColor
		Version = prevVersion
	})
	color.NoColor = false
	Version = "1.2.3-rc1"

	got := Colored()
	if !strings.Contains(got, "\x1b[") || !strings.HasSuffix(got, "-rc1") {
		t.Fatalf("expected ANSI escapes and plain suffix, got %q", got)
	}
}

func TestResolvePrefersLinkerValues(t *testing.T) {
	prevVersion, prevCommit, prevDate := Version, GitCommit, BuildDate
	t.Cleanup(func() { Version, GitCommit, BuildDate = prevVersion, prevCommit, prevDate })
	Version, GitCommit, BuildDate = " ", "abc123", ""

	info := Resolve()
	if info.Version != "dev" || info.Commit != "abc123" || info.GoVersion == "" {
		t.Fatalf("unexpected info %+v", info)
	}

	info = Info{Commit: "abc123"}
	info.fromSettings([]debug.BuildSetting{
		{Key: "vcs.revision", Value: "fff"},
		{Key: "vcs.time", Value: "2026-01-02T03:04:05Z"},
		{Key: "vcs.modified", Value: "true"},
	})
	if info.Commit != "abc123" || info.BuildDate != "2026-01-02T03:04:05Z" || !info.Modified {
		t.Fatalf("vcs stamps applied wrongly: %+v", info)
	}
}
