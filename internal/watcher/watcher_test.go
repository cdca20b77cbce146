package watcher_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"trimsync/internal/watcher"
)

func TestIsVideoFile(t *testing.T) {
	cases := []struct {
		path string
		want bool
	}{
		{"/watch/clip.mp4", true},
		{"/watch/CLIP.MKV", true},
		{"/watch/take2.mov", true},
		{"/watch/voice.wav", false},
		{"/watch/notes.txt", false},
		{"/watch/clip", false},
	}
	for _, tc := range cases {
		if got := watcher.IsVideoFile(tc.path); got != tc.want {
			t.Errorf("IsVideoFile(%q) = %v, want %v", tc.path, got, tc.want)
		}
	}
}

func TestReplacementAudioFor(t *testing.T) {
	dir := t.TempDir()
	video := filepath.Join(dir, "episode.mp4")
	if err := os.WriteFile(video, []byte("v"), 0o644); err != nil {
		t.Fatalf("write video: %v", err)
	}

	if got := watcher.ReplacementAudioFor(video); got != "" {
		t.Fatalf("expected no audio match, got %q", got)
	}

	audio := filepath.Join(dir, "episode.wav")
	if err := os.WriteFile(audio, []byte("a"), 0o644); err != nil {
		t.Fatalf("write audio: %v", err)
	}
	if got := watcher.ReplacementAudioFor(video); got != audio {
		t.Fatalf("expected %q, got %q", audio, got)
	}

	// A different stem must not match.
	other := filepath.Join(dir, "other.mp4")
	if err := os.WriteFile(other, []byte("v"), 0o644); err != nil {
		t.Fatalf("write video: %v", err)
	}
	if got := watcher.ReplacementAudioFor(other); got != "" {
		t.Fatalf("expected no audio match for other stem, got %q", got)
	}
}

func TestRunIngestsNewVideoWithPairedAudio(t *testing.T) {
	dir := t.TempDir()

	type ingested struct {
		video string
		audio string
	}
	var mu sync.Mutex
	var got []ingested
	received := make(chan struct{}, 4)

	handler := func(ctx context.Context, videoPath, audioPath string) error {
		mu.Lock()
		got = append(got, ingested{video: videoPath, audio: audioPath})
		mu.Unlock()
		received <- struct{}{}
		return nil
	}

	w, err := watcher.New(dir, handler, nil, watcher.WithSettleDelay(10*time.Millisecond))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		_ = w.Run(ctx)
		close(done)
	}()

	audio := filepath.Join(dir, "clip.wav")
	if err := os.WriteFile(audio, []byte("a"), 0o644); err != nil {
		t.Fatalf("write audio: %v", err)
	}
	video := filepath.Join(dir, "clip.mp4")
	if err := os.WriteFile(video, []byte("v"), 0o644); err != nil {
		t.Fatalf("write video: %v", err)
	}

	select {
	case <-received:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for ingest")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) == 0 {
		t.Fatal("expected at least one ingest")
	}
	if got[0].video != video {
		t.Fatalf("unexpected video path %q", got[0].video)
	}
	if got[0].audio != audio {
		t.Fatalf("expected paired audio %q, got %q", audio, got[0].audio)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run never returned after cancel")
	}
}
