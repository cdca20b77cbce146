package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeTools(); err != nil {
		return err
	}
	c.normalizeWorkflow()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	fields := []struct {
		name     string
		value    *string
		fallback string
	}{
		{"paths.data_dir", &c.Paths.DataDir, defaultDataDir},
		{"paths.upload_dir", &c.Paths.UploadDir, defaultUploadDir},
		{"paths.work_dir", &c.Paths.WorkDir, defaultWorkDir},
		{"paths.output_dir", &c.Paths.OutputDir, defaultOutputDir},
		{"paths.watch_dir", &c.Paths.WatchDir, defaultWatchDir},
		{"paths.log_dir", &c.Paths.LogDir, defaultLogDir},
	}
	for _, field := range fields {
		if strings.TrimSpace(*field.value) == "" {
			*field.value = field.fallback
		}
		expanded, err := expandPath(*field.value)
		if err != nil {
			return fmt.Errorf("%s: %w", field.name, err)
		}
		*field.value = expanded
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	return nil
}

func (c *Config) normalizeTools() error {
	c.Tools.FFmpeg = fallbackTrim(c.Tools.FFmpeg, defaultFFmpeg)
	c.Tools.FFprobe = fallbackTrim(c.Tools.FFprobe, defaultFFprobe)
	c.Tools.Python = fallbackTrim(c.Tools.Python, defaultPython)
	c.Tools.AnalyzerScript = fallbackTrim(c.Tools.AnalyzerScript, defaultAnalyzerScript)
	c.Tools.WhisperModel = fallbackTrim(c.Tools.WhisperModel, defaultWhisperModel)
	c.Tools.ModelDir = fallbackTrim(c.Tools.ModelDir, defaultModelDir)
	expanded, err := expandPath(c.Tools.ModelDir)
	if err != nil {
		return fmt.Errorf("tools.model_dir: %w", err)
	}
	c.Tools.ModelDir = expanded
	return nil
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.Workers <= 0 {
		c.Workflow.Workers = defaultWorkers
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(fallbackTrim(c.Logging.Format, defaultLogFormat))
	c.Logging.Level = strings.ToLower(fallbackTrim(c.Logging.Level, defaultLogLevel))
}

func fallbackTrim(value, fallback string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback
	}
	return value
}

func expandPath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", errors.New("path is empty")
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if path == "~" {
			return home, nil
		}
		path = filepath.Join(home, path[2:])
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path: %w", err)
	}
	return abs, nil
}
