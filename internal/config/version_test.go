package config

import "testing"

func TestInfo_Defaults(t *testing.T) {
	info := Info()

	if info.Version != "dev" {
		t.Errorf("expected default version dev, got %s", info.Version)
	}
	if info.Build != "unknown" {
		t.Errorf("expected default build unknown, got %s", info.Build)
	}
	if info.GitCommit != "unknown" {
		t.Errorf("expected default git commit unknown, got %s", info.GitCommit)
	}
}

func TestBuildInfo_String(t *testing.T) {
	info := BuildInfo{Version: "1.2.0", Build: "2026-10-01", GitCommit: "abc123"}

	expected := "1.2.0 (build: 2026-10-01, commit: abc123)"
	if got := info.String(); got != expected {
		t.Errorf("expected %q, got %q", expected, got)
	}
}
