// Package analyzer drives the Python analysis worker that produces speech,
// silence, scene-cut, and low-information regions for a video.
package analyzer

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"trimsync/internal/analysis"
	"trimsync/internal/config"
	"trimsync/internal/services"
)

// OutputFileName is the analysis JSON the worker writes into the work dir.
const OutputFileName = "analysis.json"

// Config captures the worker invocation parameters.
type Config struct {
	// Python is the interpreter binary.
	Python string
	// Module is the worker module executed with `python -m`.
	Module string
	// Model names the speech model the worker should load.
	Model string
	// ModelDir is where models are cached on disk.
	ModelDir string
	// FFmpegBinary and FFprobeBinary are forwarded to the worker.
	FFmpegBinary  string
	FFprobeBinary string
}

// Service invokes the analysis worker.
type Service struct {
	cfg           Config
	commandRunner func(ctx context.Context, name string, args ...string) error
}

// NewService creates an analyzer service with the given configuration.
func NewService(cfg Config) *Service {
	if cfg.Python == "" {
		cfg.Python = "python3"
	}
	return &Service{cfg: cfg}
}

// NewFromConfig builds an analyzer service from the daemon configuration.
func NewFromConfig(cfg *config.Config) *Service {
	return NewService(Config{
		Python:        cfg.Tools.Python,
		Module:        cfg.Tools.AnalyzerScript,
		Model:         cfg.Tools.WhisperModel,
		ModelDir:      cfg.Tools.ModelDir,
		FFmpegBinary:  cfg.Tools.FFmpeg,
		FFprobeBinary: cfg.Tools.FFprobe,
	})
}

// WithCommandRunner sets a custom command runner (for testing).
func (s *Service) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) error) {
	s.commandRunner = runner
}

// Analyze runs the worker against a video and returns the parsed result
// together with the path of the JSON it produced. Worker failures and a
// missing or unreadable output file surface as ANALYSIS_FAILED.
func (s *Service) Analyze(ctx context.Context, videoPath, workDir string) (*analysis.Result, string, error) {
	if strings.TrimSpace(videoPath) == "" {
		return nil, "", services.NewError(services.CodeAnalysisFailed, "analysis: video path required")
	}
	if strings.TrimSpace(workDir) == "" {
		return nil, "", services.NewError(services.CodeAnalysisFailed, "analysis: work dir required")
	}
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, "", services.WrapError(services.CodeAnalysisFailed, "analysis: ensure work dir", err)
	}

	outPath := filepath.Join(workDir, OutputFileName)
	args := s.buildArgs(videoPath, workDir, outPath)
	if err := s.run(ctx, s.cfg.Python, args...); err != nil {
		return nil, "", services.WrapError(services.CodeAnalysisFailed, "analysis worker", err)
	}

	result, err := analysis.Load(outPath)
	if err != nil {
		return nil, "", services.WrapError(services.CodeAnalysisFailed, "analysis output", err)
	}
	return result, outPath, nil
}

func (s *Service) buildArgs(videoPath, workDir, outPath string) []string {
	module := s.cfg.Module
	if module == "" {
		module = "ai_worker.analyze"
	}
	args := []string{
		"-m", module,
		"--video", videoPath,
		"--work-dir", workDir,
		"--out", outPath,
	}
	if s.cfg.Model != "" {
		args = append(args, "--model", s.cfg.Model)
	}
	if s.cfg.ModelDir != "" {
		args = append(args, "--model-dir", s.cfg.ModelDir)
	}
	if s.cfg.FFmpegBinary != "" {
		args = append(args, "--ffmpeg-bin", s.cfg.FFmpegBinary)
	}
	if s.cfg.FFprobeBinary != "" {
		args = append(args, "--ffprobe-bin", s.cfg.FFprobeBinary)
	}
	return args
}

func (s *Service) run(ctx context.Context, name string, args ...string) error {
	if s.commandRunner != nil {
		return s.commandRunner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}
