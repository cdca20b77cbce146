package render

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"trimsync/internal/services"
	"trimsync/internal/services/ffmpeg"
	"trimsync/internal/timeline"
)

type fakeClient struct {
	args    []string
	total   float64
	err     error
	ratios  []float64
	written string // file created to simulate encoder output
}

func (f *fakeClient) Run(ctx context.Context, args []string, totalSec float64, progress ffmpeg.ProgressFunc) error {
	f.args = args
	f.total = totalSec
	if progress != nil {
		for _, ratio := range []float64{0.25, 0.8, 0.99} {
			progress(ratio)
			f.ratios = append(f.ratios, ratio)
		}
	}
	if f.err != nil {
		return f.err
	}
	if f.written != "" {
		return os.WriteFile(f.written, []byte("media"), 0o644)
	}
	return nil
}

func stubProbe(t *testing.T, duration float64, err error) {
	t.Helper()
	original := probeDuration
	probeDuration = func(ctx context.Context, binary, path string) (float64, error) {
		return duration, err
	}
	t.Cleanup(func() { probeDuration = original })
}

func TestChooseStrategy(t *testing.T) {
	cases := []struct {
		name     string
		keep     timeline.Range
		audio    bool
		want     Strategy
		wantCode services.Code
	}{
		{"tail-only no audio", timeline.Range{StartSec: 0, EndSec: 8}, false, StrategyStreamCopy, ""},
		{"tail-only with audio", timeline.Range{StartSec: 0, EndSec: 8}, true, StrategyCopyReplaceAudio, ""},
		{"epsilon start counts as tail-only", timeline.Range{StartSec: 0.0005, EndSec: 8}, true, StrategyCopyReplaceAudio, ""},
		{"mid-stream no audio", timeline.Range{StartSec: 2, EndSec: 10}, false, StrategyReencode, ""},
		{"mid-stream with audio rejected", timeline.Range{StartSec: 2, EndSec: 10}, true, "", services.CodeNoSyncSafeCut},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ChooseStrategy(tc.keep, tc.audio)
			if tc.wantCode != "" {
				if err == nil {
					t.Fatal("expected error")
				}
				if code := services.CodeOf(err, ""); code != tc.wantCode {
					t.Fatalf("code: got %q, want %q", code, tc.wantCode)
				}
				return
			}
			if err != nil {
				t.Fatalf("ChooseStrategy failed: %v", err)
			}
			if got != tc.want {
				t.Fatalf("strategy: got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestRenderStreamCopySuccess(t *testing.T) {
	outputPath := filepath.Join(t.TempDir(), "out.mp4")
	client := &fakeClient{written: outputPath}
	stubProbe(t, 8.0, nil)

	var ratios []float64
	orch := NewOrchestrator(client, "ffprobe")
	result, err := orch.Render(context.Background(), Request{
		VideoPath:  "/tmp/in.mp4",
		OutputPath: outputPath,
		KeepRange:  timeline.Range{StartSec: 0, EndSec: 8},
		Progress:   func(ratio float64) { ratios = append(ratios, ratio) },
	})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if result.Strategy != StrategyStreamCopy {
		t.Fatalf("unexpected strategy %q", result.Strategy)
	}
	if result.DurationSec != 8.0 {
		t.Fatalf("unexpected duration %v", result.DurationSec)
	}
	if client.total != 8.0 {
		t.Fatalf("expected total duration 8, got %v", client.total)
	}
	if len(ratios) == 0 || ratios[len(ratios)-1] != 1.0 {
		t.Fatalf("expected final progress 1.0, got %v", ratios)
	}

	joined := ""
	for _, arg := range client.args {
		joined += arg + " "
	}
	for _, want := range []string{"-c copy", "-t 8.000", "/tmp/in.mp4"} {
		if !containsArg(joined, want) {
			t.Fatalf("expected args to contain %q, got %v", want, client.args)
		}
	}
}

func TestRenderReplaceAudioMapsBothInputs(t *testing.T) {
	outputPath := filepath.Join(t.TempDir(), "out.mp4")
	client := &fakeClient{written: outputPath}
	stubProbe(t, 8.1, nil)

	orch := NewOrchestrator(client, "ffprobe")
	result, err := orch.Render(context.Background(), Request{
		VideoPath:  "/tmp/in.mp4",
		AudioPath:  "/tmp/voice.wav",
		OutputPath: outputPath,
		KeepRange:  timeline.Range{StartSec: 0, EndSec: 8},
	})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if result.Strategy != StrategyCopyReplaceAudio {
		t.Fatalf("unexpected strategy %q", result.Strategy)
	}

	joined := ""
	for _, arg := range client.args {
		joined += arg + " "
	}
	for _, want := range []string{"/tmp/voice.wav", "-map 0:v:0", "-map 1:a:0", "-c:v copy"} {
		if !containsArg(joined, want) {
			t.Fatalf("expected args to contain %q, got %v", want, client.args)
		}
	}
}

func TestRenderReencodeSeeksToKeepStart(t *testing.T) {
	outputPath := filepath.Join(t.TempDir(), "out.mp4")
	client := &fakeClient{written: outputPath}
	stubProbe(t, 8.0, nil)

	orch := NewOrchestrator(client, "ffprobe")
	result, err := orch.Render(context.Background(), Request{
		VideoPath:  "/tmp/in.mp4",
		OutputPath: outputPath,
		KeepRange:  timeline.Range{StartSec: 2, EndSec: 10},
	})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if result.Strategy != StrategyReencode {
		t.Fatalf("unexpected strategy %q", result.Strategy)
	}

	joined := ""
	for _, arg := range client.args {
		joined += arg + " "
	}
	for _, want := range []string{"-ss 2.000", "-c:v libx264"} {
		if !containsArg(joined, want) {
			t.Fatalf("expected args to contain %q, got %v", want, client.args)
		}
	}
}

func TestRenderEncoderFailureIsCoded(t *testing.T) {
	client := &fakeClient{err: errors.New("exit status 1")}
	orch := NewOrchestrator(client, "ffprobe")

	_, err := orch.Render(context.Background(), Request{
		VideoPath:  "/tmp/in.mp4",
		OutputPath: filepath.Join(t.TempDir(), "out.mp4"),
		KeepRange:  timeline.Range{StartSec: 0, EndSec: 8},
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if code := services.CodeOf(err, ""); code != services.CodeRenderFailed {
		t.Fatalf("expected RENDER_FAILED, got %q", code)
	}
}

func TestRenderMissingOutputIsCoded(t *testing.T) {
	client := &fakeClient{} // exits zero but writes nothing
	orch := NewOrchestrator(client, "ffprobe")

	_, err := orch.Render(context.Background(), Request{
		VideoPath:  "/tmp/in.mp4",
		OutputPath: filepath.Join(t.TempDir(), "out.mp4"),
		KeepRange:  timeline.Range{StartSec: 0, EndSec: 8},
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if code := services.CodeOf(err, ""); code != services.CodeRenderFailed {
		t.Fatalf("expected RENDER_FAILED, got %q", code)
	}
}

func TestRenderDurationToleranceViolation(t *testing.T) {
	outputPath := filepath.Join(t.TempDir(), "out.mp4")
	client := &fakeClient{written: outputPath}
	stubProbe(t, 8.6, nil) // 0.6s past the keep length

	var ratios []float64
	orch := NewOrchestrator(client, "ffprobe")
	_, err := orch.Render(context.Background(), Request{
		VideoPath:  "/tmp/in.mp4",
		OutputPath: outputPath,
		KeepRange:  timeline.Range{StartSec: 0, EndSec: 8},
		Progress:   func(ratio float64) { ratios = append(ratios, ratio) },
	})
	if err == nil {
		t.Fatal("expected tolerance violation")
	}
	if code := services.CodeOf(err, ""); code != services.CodeRenderFailed {
		t.Fatalf("expected RENDER_FAILED, got %q", code)
	}
	for _, ratio := range ratios {
		if ratio == 1.0 {
			t.Fatal("progress must not reach 1.0 on a failed render")
		}
	}
}

func TestRenderVerifiesAgainstTargetDuration(t *testing.T) {
	// An override keep range may sit up to the tolerance away from the
	// target; the output check anchors on the target so the deviations
	// cannot stack.
	outputPath := filepath.Join(t.TempDir(), "out.mp4")
	client := &fakeClient{written: outputPath}
	stubProbe(t, 8.45, nil) // within 0.25 of the 8.2 keep, 0.45 past the 8s target

	orch := NewOrchestrator(client, "ffprobe")
	_, err := orch.Render(context.Background(), Request{
		VideoPath:         "/tmp/in.mp4",
		OutputPath:        outputPath,
		KeepRange:         timeline.Range{StartSec: 0, EndSec: 8.2},
		TargetDurationSec: 8,
	})
	if err == nil {
		t.Fatal("expected tolerance violation against the target duration")
	}
	if code := services.CodeOf(err, ""); code != services.CodeRenderFailed {
		t.Fatalf("expected RENDER_FAILED, got %q", code)
	}

	stubProbe(t, 8.2, nil)
	result, err := orch.Render(context.Background(), Request{
		VideoPath:         "/tmp/in.mp4",
		OutputPath:        outputPath,
		KeepRange:         timeline.Range{StartSec: 0, EndSec: 8.2},
		TargetDurationSec: 8,
	})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if result.DurationSec != 8.2 {
		t.Fatalf("unexpected duration %v", result.DurationSec)
	}
}

func containsArg(joined, want string) bool {
	return strings.Contains(joined, want)
}
