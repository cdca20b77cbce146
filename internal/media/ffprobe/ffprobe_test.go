package ffprobe

import (
	"context"
	"math"
	"os/exec"
	"testing"
)

func TestResultHelpers(t *testing.T) {
	result := Result{
		Streams: []Stream{
			{CodecType: "video"},
			{CodecType: "audio"},
			{CodecType: "audio"},
		},
		Format: Format{
			Duration: "123.45",
			Size:     "1000",
		},
	}
	if result.VideoStreamCount() != 1 {
		t.Fatalf("expected 1 video stream, got %d", result.VideoStreamCount())
	}
	if result.AudioStreamCount() != 2 {
		t.Fatalf("expected 2 audio streams, got %d", result.AudioStreamCount())
	}
	if result.DurationSeconds() != 123.45 {
		t.Fatalf("unexpected duration: %v", result.DurationSeconds())
	}
	if result.SizeBytes() != 1000 {
		t.Fatalf("unexpected size: %d", result.SizeBytes())
	}
}

func TestResultHelpersHandleInvalidNumbers(t *testing.T) {
	result := Result{
		Format: Format{
			Duration: "bad",
			Size:     "-1",
		},
	}
	if !math.IsNaN(result.DurationSeconds()) {
		t.Fatalf("expected duration NaN, got %v", result.DurationSeconds())
	}
	if result.SizeBytes() != 0 {
		t.Fatalf("expected size 0, got %d", result.SizeBytes())
	}
}

func TestDurationRejectsNonPositive(t *testing.T) {
	original := commandContext
	t.Cleanup(func() { commandContext = original })

	cases := []struct {
		name     string
		duration string
	}{
		{"zero", "0"},
		{"negative", "-3.5"},
		{"missing", ""},
		{"garbage", "not-a-number"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			payload := `{"streams":[],"format":{"duration":"` + tc.duration + `"}}`
			commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
				return exec.CommandContext(ctx, "sh", "-c", "printf %s '"+payload+"'")
			}
			if _, err := Duration(context.Background(), "ffprobe", "/tmp/in.mp4"); err == nil {
				t.Fatal("expected error for non-positive duration")
			}
		})
	}
}

func TestDurationParsesPositiveSeconds(t *testing.T) {
	original := commandContext
	t.Cleanup(func() { commandContext = original })

	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		return exec.CommandContext(ctx, "sh", "-c", `printf %s '{"streams":[{"codec_type":"video"}],"format":{"duration":"9.75"}}'`)
	}
	seconds, err := Duration(context.Background(), "", "/tmp/in.mp4")
	if err != nil {
		t.Fatalf("Duration failed: %v", err)
	}
	if seconds != 9.75 {
		t.Fatalf("unexpected duration: %v", seconds)
	}
}
