package jobs_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"trimsync/internal/analysis"
	"trimsync/internal/config"
	"trimsync/internal/decision"
	"trimsync/internal/events"
	"trimsync/internal/jobs"
	"trimsync/internal/queue"
	"trimsync/internal/render"
	"trimsync/internal/services"
	"trimsync/internal/taskqueue"
	"trimsync/internal/testsupport"
	"trimsync/internal/timeline"
)

type fakeAnalyzer struct {
	result *analysis.Result
	err    error
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, videoPath, workDir string) (*analysis.Result, string, error) {
	if f.err != nil {
		return nil, "", f.err
	}
	result := f.result
	if result == nil {
		result = &analysis.Result{}
	}
	return result, workDir + "/analysis.json", nil
}

type fakeRenderer struct {
	err    error
	ratios []float64
}

func (f *fakeRenderer) Render(ctx context.Context, req render.Request) (*render.Result, error) {
	if req.Progress != nil {
		for _, ratio := range f.ratios {
			req.Progress(ratio)
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	if req.Progress != nil {
		req.Progress(1.0)
	}
	return &render.Result{
		OutputPath:  req.OutputPath,
		Strategy:    render.StrategyStreamCopy,
		DurationSec: req.KeepRange.Length(),
	}, nil
}

type harness struct {
	cfg      *config.Config
	store    *queue.Store
	bus      *events.Bus
	pool     *taskqueue.Pool
	service  *jobs.Service
	analyzer *fakeAnalyzer
	renderer *fakeRenderer
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	bus := events.NewBus(store, nil)
	t.Cleanup(bus.Close)
	pool := taskqueue.NewPool(1, nil)
	t.Cleanup(pool.Close)

	analyzerFake := &fakeAnalyzer{}
	rendererFake := &fakeRenderer{}
	service := jobs.NewService(cfg, store, bus, pool, analyzerFake, rendererFake, nil)
	service.WithDurationProber(func(ctx context.Context, binary, path string) (float64, error) {
		switch path {
		case "/tmp/video.mp4":
			return 10, nil
		case "/tmp/voice.wav":
			return 8, nil
		case "/tmp/long-voice.wav":
			return 12, nil
		case "/tmp/equal-voice.wav":
			return 10, nil
		default:
			return 0, errors.New("unknown fixture " + path)
		}
	})

	return &harness{
		cfg:      cfg,
		store:    store,
		bus:      bus,
		pool:     pool,
		service:  service,
		analyzer: analyzerFake,
		renderer: rendererFake,
	}
}

func waitForStatus(t *testing.T, h *harness, id string, want queue.Status) *queue.Job {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := h.service.Get(context.Background(), id)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if job.Status == want {
			return job
		}
		if job.Status == queue.StatusFailed && want != queue.StatusFailed {
			t.Fatalf("job failed while waiting for %q: [%s] %s", want, job.ErrorCode, job.ErrorMessage)
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for status %q", want)
	return nil
}

func TestCreateRunsAnalysisToAwaitingReview(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	job, err := h.service.Create(ctx, jobs.CreateRequest{VideoPath: "/tmp/video.mp4", AudioPath: "/tmp/voice.wav"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if job.VideoDurationSec != 10 || job.TargetDurationSec != 8 || job.DeltaSec != 2 {
		t.Fatalf("unexpected durations: %#v", job)
	}

	reviewed := waitForStatus(t, h, job.ID, queue.StatusAwaitingReview)
	dec, err := reviewed.Decision()
	if err != nil {
		t.Fatalf("Decision failed: %v", err)
	}
	if dec == nil {
		t.Fatal("expected stored decision")
	}
	if dec.KeepRange.StartSec != 0 || dec.KeepRange.EndSec != 8 {
		t.Fatalf("unexpected keep range: %#v", dec.KeepRange)
	}

	artifacts, err := h.service.Artifacts(ctx, job.ID)
	if err != nil {
		t.Fatalf("Artifacts failed: %v", err)
	}
	if len(artifacts) != 1 || artifacts[0].Kind != "analysis" {
		t.Fatalf("expected analysis artifact, got %#v", artifacts)
	}
}

func TestCreateWithoutAudioTargetsVideoDuration(t *testing.T) {
	h := newHarness(t)

	job, err := h.service.Create(context.Background(), jobs.CreateRequest{VideoPath: "/tmp/video.mp4"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if job.TargetDurationSec != job.VideoDurationSec {
		t.Fatalf("expected zero-trim target, got %#v", job)
	}
	waitForStatus(t, h, job.ID, queue.StatusAwaitingReview)
}

func TestCreateAudioEqualToVideoFailsImmediately(t *testing.T) {
	h := newHarness(t)

	// Equal durations leave nothing to trim: replacement audio must be
	// strictly shorter than the video.
	job, err := h.service.Create(context.Background(), jobs.CreateRequest{
		VideoPath: "/tmp/video.mp4",
		AudioPath: "/tmp/equal-voice.wav",
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if job.Status != queue.StatusFailed {
		t.Fatalf("expected immediate failure, got %q", job.Status)
	}
	if job.ErrorCode != string(services.CodeAudioLongerThanVideo) {
		t.Fatalf("unexpected error code %q", job.ErrorCode)
	}
}

func TestCreateAudioLongerThanVideoFailsImmediately(t *testing.T) {
	h := newHarness(t)

	job, err := h.service.Create(context.Background(), jobs.CreateRequest{
		VideoPath: "/tmp/video.mp4",
		AudioPath: "/tmp/long-voice.wav",
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if job.Status != queue.StatusFailed {
		t.Fatalf("expected immediate failure, got %q", job.Status)
	}
	if job.ErrorCode != string(services.CodeAudioLongerThanVideo) {
		t.Fatalf("unexpected error code %q", job.ErrorCode)
	}

	// The failure must also be visible in the durable event log.
	history, err := h.service.Events(context.Background(), job.ID, 0)
	if err != nil {
		t.Fatalf("Events failed: %v", err)
	}
	found := false
	for _, event := range history {
		if event.Type == queue.EventError {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected error event in history: %#v", history)
	}
}

func TestAnalysisFailureMapsToCode(t *testing.T) {
	h := newHarness(t)
	h.analyzer.err = services.NewError(services.CodeAnalysisFailed, "worker exploded")

	job, err := h.service.Create(context.Background(), jobs.CreateRequest{VideoPath: "/tmp/video.mp4"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	failed := waitForStatus(t, h, job.ID, queue.StatusFailed)
	if failed.ErrorCode != string(services.CodeAnalysisFailed) {
		t.Fatalf("unexpected error code %q", failed.ErrorCode)
	}
}

func TestSaveOverrideValidates(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	job, err := h.service.Create(ctx, jobs.CreateRequest{VideoPath: "/tmp/video.mp4", AudioPath: "/tmp/voice.wav"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	waitForStatus(t, h, job.ID, queue.StatusAwaitingReview)

	if _, err := h.service.SaveOverride(ctx, job.ID, timeline.Range{StartSec: -1, EndSec: 8}); err == nil {
		t.Fatal("expected bounds violation")
	} else if code := services.CodeOf(err, ""); code != services.CodeInvalidOverrideRange {
		t.Fatalf("expected INVALID_OVERRIDE_RANGE, got %q", code)
	}

	if _, err := h.service.SaveOverride(ctx, job.ID, timeline.Range{StartSec: 0.5, EndSec: 8.5}); err == nil {
		t.Fatal("expected tail-only violation with replacement audio")
	} else if code := services.CodeOf(err, ""); code != services.CodeNoSyncSafeCut {
		t.Fatalf("expected NO_SYNC_SAFE_CUT, got %q", code)
	}

	updated, err := h.service.SaveOverride(ctx, job.ID, timeline.Range{StartSec: 0, EndSec: 8.1})
	if err != nil {
		t.Fatalf("SaveOverride failed: %v", err)
	}
	keep, err := updated.EffectiveKeepRange()
	if err != nil {
		t.Fatalf("EffectiveKeepRange failed: %v", err)
	}
	if keep.EndSec != 8.1 {
		t.Fatalf("expected override to win, got %#v", keep)
	}
}

func TestOverrideOnMissingJob(t *testing.T) {
	h := newHarness(t)

	_, err := h.service.SaveOverride(context.Background(), "nope", timeline.Range{StartSec: 0, EndSec: 8})
	if code := services.CodeOf(err, ""); code != services.CodeJobNotFound {
		t.Fatalf("expected JOB_NOT_FOUND, got %v", err)
	}
}

func TestRenderCompletesJob(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	job, err := h.service.Create(ctx, jobs.CreateRequest{VideoPath: "/tmp/video.mp4", AudioPath: "/tmp/voice.wav"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	waitForStatus(t, h, job.ID, queue.StatusAwaitingReview)

	if _, err := h.service.RequestRender(ctx, job.ID); err != nil {
		t.Fatalf("RequestRender failed: %v", err)
	}
	completed := waitForStatus(t, h, job.ID, queue.StatusCompleted)
	if completed.OutputPath == "" {
		t.Fatal("expected output path on completed job")
	}
	if completed.ProgressRatio != 1 {
		t.Fatalf("expected progress 1.0, got %v", completed.ProgressRatio)
	}

	artifacts, err := h.service.Artifacts(ctx, job.ID)
	if err != nil {
		t.Fatalf("Artifacts failed: %v", err)
	}
	kinds := map[string]bool{}
	for _, artifact := range artifacts {
		kinds[artifact.Kind] = true
	}
	if !kinds["analysis"] || !kinds["output"] {
		t.Fatalf("expected analysis and output artifacts, got %#v", artifacts)
	}
}

func TestRequestRenderRejectsWhileRendering(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	job := &queue.Job{
		ID:                "job-rendering",
		Status:            queue.StatusRendering,
		VideoPath:         "/tmp/video.mp4",
		VideoDurationSec:  10,
		TargetDurationSec: 8,
		DeltaSec:          2,
	}
	if err := job.SetDecision(&decision.Decision{
		KeepRange:  timeline.Range{StartSec: 0, EndSec: 8},
		Strategy:   decision.StrategyOutro,
		Confidence: 0.9,
	}); err != nil {
		t.Fatalf("SetDecision failed: %v", err)
	}
	if err := h.store.Insert(ctx, job); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	if _, err := h.service.RequestRender(ctx, job.ID); err == nil {
		t.Fatal("expected rejection while a render is in progress")
	}

	// The request must not have re-queued a render task or touched status.
	current, err := h.service.Get(ctx, job.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if current.Status != queue.StatusRendering {
		t.Fatalf("unexpected status %q", current.Status)
	}
	history, err := h.service.Events(ctx, job.ID, 0)
	if err != nil {
		t.Fatalf("Events failed: %v", err)
	}
	for _, event := range history {
		if event.Message == "render queued" {
			t.Fatal("duplicate render request must not enqueue")
		}
	}
}

func TestRenderWithoutDecisionRejected(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	// Stall analysis so the job has no decision yet.
	h.analyzer.err = services.NewError(services.CodeAnalysisFailed, "broken")
	job, err := h.service.Create(ctx, jobs.CreateRequest{VideoPath: "/tmp/video.mp4"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	waitForStatus(t, h, job.ID, queue.StatusFailed)

	if _, err := h.service.RequestRender(ctx, job.ID); err == nil {
		t.Fatal("expected render request to fail without a decision")
	}
}

func TestRenderFailureAllowsRetry(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	job, err := h.service.Create(ctx, jobs.CreateRequest{VideoPath: "/tmp/video.mp4", AudioPath: "/tmp/voice.wav"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	waitForStatus(t, h, job.ID, queue.StatusAwaitingReview)

	h.renderer.err = services.NewError(services.CodeRenderFailed, "encoder crashed")
	if _, err := h.service.RequestRender(ctx, job.ID); err != nil {
		t.Fatalf("RequestRender failed: %v", err)
	}
	failed := waitForStatus(t, h, job.ID, queue.StatusFailed)
	if failed.ErrorCode != string(services.CodeRenderFailed) {
		t.Fatalf("unexpected error code %q", failed.ErrorCode)
	}

	// A second attempt on the same job succeeds once the encoder behaves.
	h.renderer.err = nil
	if _, err := h.service.RequestRender(ctx, job.ID); err != nil {
		t.Fatalf("retry RequestRender failed: %v", err)
	}
	retried := waitForStatus(t, h, job.ID, queue.StatusCompleted)
	if retried.ErrorCode != "" {
		t.Fatalf("expected error code cleared on retry, got %q", retried.ErrorCode)
	}
}

func TestSubscribeDeliversPipelineEvents(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	job, err := h.service.Create(ctx, jobs.CreateRequest{VideoPath: "/tmp/video.mp4", AudioPath: "/tmp/voice.wav"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	waitForStatus(t, h, job.ID, queue.StatusAwaitingReview)

	sub, err := h.service.Subscribe(ctx, job.ID, 0)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer sub.Close()

	if _, err := h.service.RequestRender(ctx, job.ID); err != nil {
		t.Fatalf("RequestRender failed: %v", err)
	}
	waitForStatus(t, h, job.ID, queue.StatusCompleted)

	deadline := time.After(5 * time.Second)
	var sawComplete bool
	for !sawComplete {
		select {
		case event, ok := <-sub.Events:
			if !ok {
				t.Fatal("subscription closed before complete event")
			}
			if event.Type == queue.EventComplete {
				sawComplete = true
			}
		case <-deadline:
			t.Fatal("timed out waiting for complete event")
		}
	}
}
