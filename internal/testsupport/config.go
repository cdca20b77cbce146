// Package testsupport provides shared helpers for package tests: temp-dir
// backed configs, store construction, and fixture files.
package testsupport

import (
	"path/filepath"
	"testing"

	"trimsync/internal/config"
)

// NewConfig produces a config seeded with unique temp directories per test.
func NewConfig(t testing.TB) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.UploadDir = filepath.Join(base, "uploads")
	cfg.Paths.WorkDir = filepath.Join(base, "work")
	cfg.Paths.OutputDir = filepath.Join(base, "output")
	cfg.Paths.WatchDir = filepath.Join(base, "watch")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Tools.ModelDir = filepath.Join(base, "models")
	cfg.Paths.APIBind = "127.0.0.1:0"
	return &cfg
}
