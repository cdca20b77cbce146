// Package render turns a resolved keep range into an output file by driving
// ffmpeg with the cheapest encode strategy the cut allows.
package render

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"trimsync/internal/media/ffprobe"
	"trimsync/internal/services"
	"trimsync/internal/services/ffmpeg"
	"trimsync/internal/timeline"
)

const (
	// syncSafeStartSec is the latest a keep range may begin while still
	// counting as a tail-only cut.
	syncSafeStartSec = 0.001
	// durationToleranceSec bounds how far the rendered output may deviate
	// from the target duration.
	durationToleranceSec = 0.25
)

// probeDuration verifies rendered output; tests substitute it.
var probeDuration = ffprobe.Duration

// Strategy names the encode approach chosen for a render.
type Strategy string

const (
	// StrategyStreamCopy re-muxes the video without re-encoding.
	StrategyStreamCopy Strategy = "stream_copy"
	// StrategyCopyReplaceAudio copies the video stream and swaps in the
	// replacement audio track.
	StrategyCopyReplaceAudio Strategy = "copy_replace_audio"
	// StrategyReencode performs a full re-encode for precise mid-stream cuts.
	StrategyReencode Strategy = "reencode"
)

// Request describes one render invocation.
type Request struct {
	VideoPath  string
	AudioPath  string // replacement audio, empty when trimming original sound
	OutputPath string
	KeepRange  timeline.Range
	// TargetDurationSec is the duration the output must match within
	// tolerance. Zero means verify against the keep-range length; an
	// override keep range may legitimately differ from the target by a
	// small margin, so the target is the authoritative check.
	TargetDurationSec float64
	// Progress receives ratios in [0, 1]; 1.0 is only emitted after the
	// output has been verified.
	Progress func(ratio float64)
}

// Result reports a completed render.
type Result struct {
	OutputPath  string
	Strategy    Strategy
	DurationSec float64
}

// Orchestrator runs renders through an ffmpeg client and verifies output.
type Orchestrator struct {
	client        ffmpeg.Client
	ffprobeBinary string
}

// NewOrchestrator builds an orchestrator over the given ffmpeg client.
func NewOrchestrator(client ffmpeg.Client, ffprobeBinary string) *Orchestrator {
	return &Orchestrator{client: client, ffprobeBinary: ffprobeBinary}
}

// ChooseStrategy picks the encode approach for a keep range. A cut that
// starts after zero with replacement audio attached is rejected outright;
// the validator upstream enforces the same rule, but the renderer holds the
// line even if it was bypassed.
func ChooseStrategy(keep timeline.Range, hasReplacementAudio bool) (Strategy, error) {
	if keep.StartSec > syncSafeStartSec {
		if hasReplacementAudio {
			return "", services.NewError(services.CodeNoSyncSafeCut,
				"render: replacement audio requires a tail-only cut")
		}
		return StrategyReencode, nil
	}
	if hasReplacementAudio {
		return StrategyCopyReplaceAudio, nil
	}
	return StrategyStreamCopy, nil
}

// Render executes the request and returns the verified result. Encoder
// failures, a missing output file, and duration deviations beyond tolerance
// all surface as RENDER_FAILED.
func (o *Orchestrator) Render(ctx context.Context, req Request) (*Result, error) {
	keep := req.KeepRange.Normalize()
	if keep.Length() <= 0 {
		return nil, services.NewError(services.CodeRenderFailed, "render: degenerate keep range")
	}
	if strings.TrimSpace(req.VideoPath) == "" || strings.TrimSpace(req.OutputPath) == "" {
		return nil, services.NewError(services.CodeRenderFailed, "render: video and output paths required")
	}

	strategy, err := ChooseStrategy(keep, req.AudioPath != "")
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(req.OutputPath), 0o755); err != nil {
		return nil, services.WrapError(services.CodeRenderFailed, "render: ensure output dir", err)
	}

	args := buildArgs(strategy, req.VideoPath, req.AudioPath, req.OutputPath, keep)
	if err := o.client.Run(ctx, args, keep.Length(), req.Progress); err != nil {
		return nil, services.WrapError(services.CodeRenderFailed, "render: encode", err)
	}

	wantSec := req.TargetDurationSec
	if wantSec <= 0 {
		wantSec = keep.Length()
	}
	duration, err := o.verifyOutput(ctx, req.OutputPath, wantSec)
	if err != nil {
		return nil, err
	}
	if req.Progress != nil {
		req.Progress(1.0)
	}
	return &Result{OutputPath: req.OutputPath, Strategy: strategy, DurationSec: duration}, nil
}

func (o *Orchestrator) verifyOutput(ctx context.Context, outputPath string, wantSec float64) (float64, error) {
	if _, err := os.Stat(outputPath); err != nil {
		return 0, services.WrapError(services.CodeRenderFailed, "render: output missing", err)
	}
	duration, err := probeDuration(ctx, o.ffprobeBinary, outputPath)
	if err != nil {
		return 0, services.WrapError(services.CodeRenderFailed, "render: probe output", err)
	}
	if math.Abs(duration-wantSec) > durationToleranceSec {
		return 0, services.NewError(services.CodeRenderFailed,
			fmt.Sprintf("render: output duration %.3fs deviates from %.3fs by more than %.2fs",
				duration, wantSec, durationToleranceSec))
	}
	return duration, nil
}

// buildArgs assembles the ffmpeg invocation for a strategy.
func buildArgs(strategy Strategy, videoPath, audioPath, outputPath string, keep timeline.Range) []string {
	args := []string{"-y", "-hide_banner", "-nostdin"}

	switch strategy {
	case StrategyStreamCopy:
		args = append(args,
			"-i", videoPath,
			"-t", fmtSeconds(keep.Length()),
			"-c", "copy",
		)
	case StrategyCopyReplaceAudio:
		args = append(args,
			"-i", videoPath,
			"-i", audioPath,
			"-t", fmtSeconds(keep.Length()),
			"-map", "0:v:0",
			"-map", "1:a:0",
			"-c:v", "copy",
			"-c:a", "aac",
			"-b:a", "192k",
		)
	case StrategyReencode:
		args = append(args,
			"-ss", fmtSeconds(keep.StartSec),
			"-i", videoPath,
			"-t", fmtSeconds(keep.Length()),
			"-c:v", "libx264",
			"-preset", "veryfast",
			"-crf", "18",
			"-c:a", "aac",
			"-b:a", "192k",
		)
	}

	return append(args, outputPath)
}

func fmtSeconds(seconds float64) string {
	return strconv.FormatFloat(seconds, 'f', 3, 64)
}
