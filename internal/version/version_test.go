package version

import (
	"runtime"
	"strings"
	"testing"
)

func TestGetLdflagsWin(t *testing.T) {
	oldV, oldC, oldD := Version, GitCommit, BuildDate
	t.Cleanup(func() { Version, GitCommit, BuildDate = oldV, oldC, oldD })

	Version, GitCommit, BuildDate = "v1.2.3", "abc123", "2026-01-01"
	info := Get()
	if info.Version != "v1.2.3" || info.GitCommit != "abc123" || info.BuildDate != "2026-01-01" {
		t.Errorf("Get() = %+v, want ldflags values", info)
	}
	if String() != "v1.2.3" {
		t.Errorf("String() = %q", String())
	}
}

func TestGetRuntimeFields(t *testing.T) {
	info := Get()
	if info.GoVersion != runtime.Version() {
		t.Errorf("GoVersion = %q, want %q", info.GoVersion, runtime.Version())
	}
	if !strings.Contains(info.Platform, "/") {
		t.Errorf("Platform = %q, want os/arch", info.Platform)
	}
	if info.Version == "" || info.GitCommit == "" {
		t.Errorf("Get() left empty fields: %+v", info)
	}
}
