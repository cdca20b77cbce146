package deps

import (
	"os"
	"path/filepath"
	"testing"

	"trimsync/internal/config"
	"trimsync/internal/services"
)

func writeStubBinary(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	return path
}

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := writeStubBinary(t, binDir, "present")

	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Unset", Command: ""},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}
	if !results[0].Available {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}
	if results[1].Available || results[1].Detail == "" {
		t.Fatalf("expected missing binary reported, got %#v", results[1])
	}
	if results[2].Available || results[2].Detail != "command not configured" {
		t.Fatalf("expected unset command reported, got %#v", results[2])
	}
}

func TestCheckModel(t *testing.T) {
	cfg := config.Default()

	cfg.Tools.ModelDir = ""
	if status := CheckModel(&cfg); !status.Available {
		t.Fatalf("empty model dir should pass, got %#v", status)
	}

	cfg.Tools.ModelDir = filepath.Join(t.TempDir(), "missing")
	if status := CheckModel(&cfg); status.Available {
		t.Fatal("missing model dir should fail")
	}

	cfg.Tools.ModelDir = t.TempDir()
	if status := CheckModel(&cfg); !status.Available {
		t.Fatalf("existing model dir should pass, got %#v", status)
	}
}

func TestVerifyMapsFailuresToCodes(t *testing.T) {
	binDir := t.TempDir()
	cfg := config.Default()
	cfg.Tools.FFmpeg = writeStubBinary(t, binDir, "ffmpeg")
	cfg.Tools.FFprobe = writeStubBinary(t, binDir, "ffprobe")
	cfg.Tools.Python = writeStubBinary(t, binDir, "python3")
	cfg.Tools.ModelDir = t.TempDir()

	if err := Verify(&cfg); err != nil {
		t.Fatalf("Verify failed on healthy config: %v", err)
	}

	broken := cfg
	broken.Tools.FFmpeg = "clearly-not-present-binary"
	if code := services.CodeOf(Verify(&broken), ""); code != services.CodeDependencyMissing {
		t.Fatalf("expected DEPENDENCY_MISSING, got %q", code)
	}

	broken = cfg
	broken.Tools.ModelDir = filepath.Join(t.TempDir(), "missing")
	if code := services.CodeOf(Verify(&broken), ""); code != services.CodeModelMissing {
		t.Fatalf("expected MODEL_MISSING, got %q", code)
	}
}
