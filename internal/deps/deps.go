// Package deps checks the external tools and model assets the pipeline
// needs before it will accept work.
package deps

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"trimsync/internal/config"
	"trimsync/internal/services"
)

// Requirement defines an external dependency the pipeline relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// Requirements lists the binaries the configured pipeline shells out to.
func Requirements(cfg *config.Config) []Requirement {
	return []Requirement{
		{Name: "FFmpeg", Command: cfg.Tools.FFmpeg, Description: "Trim rendering"},
		{Name: "FFprobe", Command: cfg.Tools.FFprobe, Description: "Duration probing"},
		{Name: "Python", Command: cfg.Tools.Python, Description: "Analysis worker runtime"},
	}
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Available = false
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		if _, err := exec.LookPath(cmd); err != nil {
			status.Available = false
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		results = append(results, status)
	}
	return results
}

// CheckModel reports whether the configured speech model assets are present.
// An empty model dir defers the download to the worker and passes.
func CheckModel(cfg *config.Config) Status {
	status := Status{
		Name:        "Speech model",
		Command:     cfg.Tools.WhisperModel,
		Description: "Analysis worker model assets",
	}
	dir := strings.TrimSpace(cfg.Tools.ModelDir)
	if dir == "" {
		status.Available = true
		return status
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		status.Available = false
		status.Detail = fmt.Sprintf("model dir %q not found", dir)
		return status
	}
	status.Available = true
	return status
}

// Verify runs all readiness checks and returns a coded error for the first
// hard failure: DEPENDENCY_MISSING for binaries, MODEL_MISSING for model
// assets. Optional requirements never fail verification.
func Verify(cfg *config.Config) error {
	for _, status := range CheckBinaries(Requirements(cfg)) {
		if status.Available || status.Optional {
			continue
		}
		return services.NewError(services.CodeDependencyMissing,
			fmt.Sprintf("%s unavailable: %s", status.Name, status.Detail))
	}
	if status := CheckModel(cfg); !status.Available {
		return services.NewError(services.CodeModelMissing, status.Detail)
	}
	return nil
}
