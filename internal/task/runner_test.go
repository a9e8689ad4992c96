package task

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"vidscribe/internal/classify"
	"vidscribe/internal/fault"
	"vidscribe/internal/transcribe"
	"vidscribe/internal/transcript"
)

// scratchTracker observes chunk scratch-file lifetimes across the fake
// extractor, the fake model, and the runner's remove hook. It verifies the
// at-most-one-chunk-on-disk invariant.
type scratchTracker struct {
	mu          sync.Mutex
	live        map[string]int // scratch path -> chunk index
	maxLive     int
	extractions int
	starts      []time.Duration
	durs        []time.Duration
	removals    int
}

func newScratchTracker() *scratchTracker {
	return &scratchTracker{live: make(map[string]int)}
}

func (s *scratchTracker) add(path string, index int, start, dur time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.live[path] = index
	s.extractions++
	s.starts = append(s.starts, start)
	s.durs = append(s.durs, dur)
	if len(s.live) > s.maxLive {
		s.maxLive = len(s.live)
	}
}

func (s *scratchTracker) lookup(path string) (index, liveCount int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live[path], len(s.live)
}

func (s *scratchTracker) remove(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.live, path)
	s.removals++
	return nil
}

func (s *scratchTracker) liveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.live)
}

type fakeProber struct {
	duration time.Duration
	err      error
}

func (f *fakeProber) Duration(ctx context.Context, path string) (time.Duration, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.duration, nil
}

type fakeExtractor struct {
	tracker *scratchTracker
	errOn   map[int]error
}

func (f *fakeExtractor) ExtractChunk(ctx context.Context, videoPath string, start, dur time.Duration, index int) (string, error) {
	if err, ok := f.errOn[index]; ok {
		return "", err
	}
	path := fmt.Sprintf("chunk_%03d.mp3", index)
	f.tracker.add(path, index, start, dur)
	return path, nil
}

// fakeModel returns two chunk-relative segments per chunk and records how
// many scratch files were live while it ran.
type fakeModel struct {
	tracker     *scratchTracker
	failOn      map[int]bool
	maxLiveSeen int
}

func (f *fakeModel) Transcribe(ctx context.Context, audioPath string) (*transcribe.Result, error) {
	index, liveCount := f.tracker.lookup(audioPath)
	if liveCount > f.maxLiveSeen {
		f.maxLiveSeen = liveCount
	}
	if f.failOn[index] {
		return nil, fmt.Errorf("model choked on chunk %d", index)
	}
	return &transcribe.Result{
		Segments: []transcript.Segment{
			{Start: 500 * time.Millisecond, End: 2 * time.Second, Text: fmt.Sprintf("chunk %d first", index)},
			{Start: 2 * time.Second, End: 4500 * time.Millisecond, Text: fmt.Sprintf("chunk %d second", index)},
		},
	}, nil
}

type fakeClassifier struct {
	result   classify.Result
	err      error
	calls    int
	gotQuery string
	gotSegs  []transcript.Segment
}

func (f *fakeClassifier) Classify(ctx context.Context, segments []transcript.Segment, query string) (classify.Result, error) {
	f.calls++
	f.gotQuery = query
	f.gotSegs = segments
	if f.err != nil {
		return classify.Result{}, f.err
	}
	return f.result, nil
}

type testHarness struct {
	runner      *Runner
	registry    *Registry
	tracker     *scratchTracker
	model       *fakeModel
	classifier  *fakeClassifier
	constructed *int
}

func newHarness(prober *fakeProber, extractErrs map[int]error, modelFailOn map[int]bool, opts Options) *testHarness {
	tracker := newScratchTracker()
	model := &fakeModel{tracker: tracker, failOn: modelFailOn}
	classifier := &fakeClassifier{}
	registry := NewRegistry(0)

	constructed := 0
	cache := transcribe.NewCache(func(ctx context.Context, size transcribe.Size) (transcribe.Transcriber, error) {
		constructed++
		return model, nil
	})

	runner := NewRunner(
		prober,
		&fakeExtractor{tracker: tracker, errOn: extractErrs},
		cache,
		classifier,
		registry,
		nil,
		opts,
	)
	runner.removeFile = tracker.remove

	return &testHarness{
		runner:      runner,
		registry:    registry,
		tracker:     tracker,
		model:       model,
		classifier:  classifier,
		constructed: &constructed,
	}
}

func (h *testHarness) run(t *testing.T, query string) Task {
	t.Helper()
	created := h.registry.Create()
	h.runner.Run(context.Background(), created.ID, "video.mp4", query)
	final, err := h.registry.Get(created.ID)
	if err != nil {
		t.Fatalf("Get after run: %v", err)
	}
	return final
}

func TestRunSixtyFiveSecondVideo(t *testing.T) {
	h := newHarness(&fakeProber{duration: 65 * time.Second}, nil, nil, Options{
		ChunkDuration: 20 * time.Second,
		MaxDuration:   5 * time.Minute,
	})

	final := h.run(t, "")

	if final.Status != StatusCompleted {
		t.Fatalf("status = %s, want %s (error: %+v)", final.Status, StatusCompleted, final.Error)
	}
	if final.Progress != 100 {
		t.Errorf("progress = %d, want 100", final.Progress)
	}
	if final.ChunksTotal != 4 || final.ChunksProcessed != 4 {
		t.Errorf("chunks = %d/%d, want 4/4", final.ChunksProcessed, final.ChunksTotal)
	}

	// chunk plan: 20, 20, 20, 5
	wantDurs := []time.Duration{20 * time.Second, 20 * time.Second, 20 * time.Second, 5 * time.Second}
	for i, want := range wantDurs {
		if h.tracker.durs[i] != want {
			t.Errorf("chunk %d duration = %v, want %v", i, h.tracker.durs[i], want)
		}
	}
	wantStarts := []time.Duration{0, 20 * time.Second, 40 * time.Second, 60 * time.Second}
	for i, want := range wantStarts {
		if h.tracker.starts[i] != want {
			t.Errorf("chunk %d start = %v, want %v", i, h.tracker.starts[i], want)
		}
	}

	if len(final.Segments) != 8 {
		t.Fatalf("expected 8 segments, got %d", len(final.Segments))
	}
}

func TestRunRebasesAcrossChunks(t *testing.T) {
	h := newHarness(&fakeProber{duration: 65 * time.Second}, nil, nil, Options{
		ChunkDuration: 20 * time.Second,
	})

	final := h.run(t, "")

	// every segment sits inside its chunk's absolute window, and ordering
	// is non-decreasing across chunk boundaries
	for i, seg := range final.Segments {
		chunk := i / 2
		offset := time.Duration(chunk) * 20 * time.Second
		if seg.Start < offset {
			t.Errorf("segment %d starts at %v, before chunk offset %v", i, seg.Start, offset)
		}
		if seg.End > offset+21*time.Second {
			t.Errorf("segment %d ends at %v, past chunk window", i, seg.End)
		}
		if i > 0 && seg.Start < final.Segments[i-1].Start {
			t.Errorf("segment %d start %v precedes segment %d start %v", i, seg.Start, i-1, final.Segments[i-1].Start)
		}
	}
}

func TestRunAtMostOneScratchFile(t *testing.T) {
	h := newHarness(&fakeProber{duration: 65 * time.Second}, nil, nil, Options{
		ChunkDuration: 20 * time.Second,
	})

	h.run(t, "")

	if h.tracker.maxLive > 1 {
		t.Errorf("saw %d scratch files live at once, want at most 1", h.tracker.maxLive)
	}
	if h.model.maxLiveSeen > 1 {
		t.Errorf("model observed %d live scratch files, want at most 1", h.model.maxLiveSeen)
	}
	if h.tracker.liveCount() != 0 {
		t.Errorf("%d scratch files left on disk after run", h.tracker.liveCount())
	}
}

func TestRunRejectsOverlongVideo(t *testing.T) {
	h := newHarness(&fakeProber{duration: 400 * time.Second}, nil, nil, Options{
		ChunkDuration: 20 * time.Second,
		MaxDuration:   300 * time.Second,
	})

	final := h.run(t, "")

	if final.Status != StatusFailed {
		t.Fatalf("status = %s, want %s", final.Status, StatusFailed)
	}
	if final.Error == nil || final.Error.Kind != fault.KindValidation {
		t.Errorf("error = %+v, want kind %s", final.Error, fault.KindValidation)
	}
	if h.tracker.extractions != 0 {
		t.Errorf("%d chunks extracted for a rejected video, want 0", h.tracker.extractions)
	}
	if len(final.Segments) != 0 {
		t.Errorf("rejected task has %d segments", len(final.Segments))
	}
}

func TestRunProbeFailure(t *testing.T) {
	probeErr := fault.New(fault.KindBackendTools, "ffprobe not found")
	h := newHarness(&fakeProber{err: probeErr}, nil, nil, Options{})

	final := h.run(t, "")

	if final.Status != StatusFailed {
		t.Fatalf("status = %s, want %s", final.Status, StatusFailed)
	}
	if final.Error.Kind != fault.KindBackendTools {
		t.Errorf("error kind = %s, want %s", final.Error.Kind, fault.KindBackendTools)
	}
	if final.Error.Suggestion == "" {
		t.Error("failed task carries no suggestion")
	}
}

func TestRunSingleChunkFailureIsNonFatal(t *testing.T) {
	h := newHarness(&fakeProber{duration: 65 * time.Second}, nil, map[int]bool{1: true}, Options{
		ChunkDuration: 20 * time.Second,
	})

	final := h.run(t, "")

	if final.Status != StatusCompleted {
		t.Fatalf("status = %s, want %s (error: %+v)", final.Status, StatusCompleted, final.Error)
	}
	if final.ChunksProcessed != 4 {
		t.Errorf("chunks_processed = %d, want 4", final.ChunksProcessed)
	}

	// chunk 1 contributes nothing; the transcript has a gap over [20s, 40s)
	if len(final.Segments) != 6 {
		t.Fatalf("expected 6 segments, got %d", len(final.Segments))
	}
	for i, seg := range final.Segments {
		if seg.Start >= 20*time.Second && seg.Start < 40*time.Second {
			t.Errorf("segment %d at %v falls inside the failed chunk's window", i, seg.Start)
		}
	}

	// failed chunk's scratch file is still cleaned up
	if h.tracker.liveCount() != 0 {
		t.Errorf("%d scratch files left after a failed chunk", h.tracker.liveCount())
	}
}

func TestRunExtractionFailureAborts(t *testing.T) {
	extractErr := fault.New(fault.KindFormat, "moov atom not found")
	h := newHarness(&fakeProber{duration: 65 * time.Second}, map[int]error{2: extractErr}, nil, Options{
		ChunkDuration: 20 * time.Second,
	})

	final := h.run(t, "")

	if final.Status != StatusFailed {
		t.Fatalf("status = %s, want %s", final.Status, StatusFailed)
	}
	if final.Error.Kind != fault.KindFormat {
		t.Errorf("error kind = %s, want %s", final.Error.Kind, fault.KindFormat)
	}
	// chunks 0 and 1 completed and were cleaned up before the abort
	if len(final.Segments) != 4 {
		t.Errorf("expected 4 segments from the chunks before the abort, got %d", len(final.Segments))
	}
	if h.tracker.liveCount() != 0 {
		t.Errorf("%d scratch files left after abort", h.tracker.liveCount())
	}
}

func TestRunEmptyQuerySkipsClassification(t *testing.T) {
	h := newHarness(&fakeProber{duration: 30 * time.Second}, nil, nil, Options{
		ChunkDuration: 20 * time.Second,
	})

	final := h.run(t, "   ")

	if final.Status != StatusCompleted {
		t.Fatalf("status = %s, want %s", final.Status, StatusCompleted)
	}
	if h.classifier.calls != 0 {
		t.Errorf("classifier called %d times for an empty query, want 0", h.classifier.calls)
	}
	if len(final.ProblemIndices) != 0 || len(final.SolutionIndices) != 0 {
		t.Error("index sets should be empty without a query")
	}
}

func TestRunClassifiesWithQuery(t *testing.T) {
	h := newHarness(&fakeProber{duration: 65 * time.Second}, nil, nil, Options{
		ChunkDuration: 20 * time.Second,
	})
	h.classifier.result = classify.Result{
		ProblemIndices:  []int{0, 2},
		SolutionIndices: []int{5},
	}

	final := h.run(t, "why does the deploy fail")

	if final.Status != StatusCompleted {
		t.Fatalf("status = %s, want %s", final.Status, StatusCompleted)
	}
	if h.classifier.calls != 1 {
		t.Fatalf("classifier called %d times, want 1", h.classifier.calls)
	}
	if h.classifier.gotQuery != "why does the deploy fail" {
		t.Errorf("classifier got query %q", h.classifier.gotQuery)
	}
	if len(h.classifier.gotSegs) != len(final.Segments) {
		t.Errorf("classifier saw %d segments, task has %d", len(h.classifier.gotSegs), len(final.Segments))
	}
	if fmt.Sprint(final.ProblemIndices) != fmt.Sprint([]int{0, 2}) {
		t.Errorf("ProblemIndices = %v", final.ProblemIndices)
	}
	if fmt.Sprint(final.SolutionIndices) != fmt.Sprint([]int{5}) {
		t.Errorf("SolutionIndices = %v", final.SolutionIndices)
	}
}

func TestRunClassificationFailureIsNonFatal(t *testing.T) {
	h := newHarness(&fakeProber{duration: 30 * time.Second}, nil, nil, Options{
		ChunkDuration: 20 * time.Second,
	})
	h.classifier.err = fmt.Errorf("generator unavailable")

	final := h.run(t, "some query")

	if final.Status != StatusCompleted {
		t.Fatalf("status = %s, want %s (error: %+v)", final.Status, StatusCompleted, final.Error)
	}
	if len(final.ProblemIndices) != 0 || len(final.SolutionIndices) != 0 {
		t.Error("failed classification should leave both index sets empty")
	}
}

func TestRunModelConstructionFailureAborts(t *testing.T) {
	registry := NewRegistry(0)
	cache := transcribe.NewCache(func(ctx context.Context, size transcribe.Size) (transcribe.Transcriber, error) {
		return nil, fault.New(fault.KindBackendTools, "model download failed")
	})
	tracker := newScratchTracker()
	runner := NewRunner(
		&fakeProber{duration: 30 * time.Second},
		&fakeExtractor{tracker: tracker},
		cache,
		nil,
		registry,
		nil,
		Options{},
	)

	created := registry.Create()
	runner.Run(context.Background(), created.ID, "video.mp4", "")

	final, _ := registry.Get(created.ID)
	if final.Status != StatusFailed {
		t.Fatalf("status = %s, want %s", final.Status, StatusFailed)
	}
	if final.Error.Kind != fault.KindBackendTools {
		t.Errorf("error kind = %s, want %s", final.Error.Kind, fault.KindBackendTools)
	}
	if tracker.extractions != 0 {
		t.Errorf("%d chunks extracted with no model, want 0", tracker.extractions)
	}
}

func TestRunModelConstructedOncePerRunner(t *testing.T) {
	h := newHarness(&fakeProber{duration: 65 * time.Second}, nil, nil, Options{
		ChunkDuration: 20 * time.Second,
	})

	h.run(t, "")
	second := h.registry.Create()
	h.runner.Run(context.Background(), second.ID, "other.mp4", "")

	if *h.constructed != 1 {
		t.Errorf("model constructed %d times across two tasks, want 1", *h.constructed)
	}
}

func TestSubmitIsPollable(t *testing.T) {
	h := newHarness(&fakeProber{duration: 30 * time.Second}, nil, nil, Options{
		ChunkDuration: 20 * time.Second,
	})

	id := h.runner.Submit(context.Background(), "video.mp4", "")

	deadline := time.Now().Add(5 * time.Second)
	for {
		snapshot, err := h.registry.Get(id)
		if err != nil {
			t.Fatalf("Get error: %v", err)
		}
		if snapshot.Status.Terminal() {
			if snapshot.Status != StatusCompleted {
				t.Fatalf("status = %s, want %s", snapshot.Status, StatusCompleted)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("task did not reach a terminal state in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestChunkCount(t *testing.T) {
	tests := []struct {
		d     time.Duration
		chunk time.Duration
		want  int
	}{
		{65 * time.Second, 20 * time.Second, 4},
		{60 * time.Second, 20 * time.Second, 3},
		{5 * time.Second, 20 * time.Second, 1},
		{20 * time.Second, 20 * time.Second, 1},
		{21 * time.Second, 20 * time.Second, 2},
		{0, 20 * time.Second, 0},
		{400 * time.Second, 20 * time.Second, 20},
	}

	for _, tt := range tests {
		if got := ChunkCount(tt.d, tt.chunk); got != tt.want {
			t.Errorf("ChunkCount(%v, %v) = %d, want %d", tt.d, tt.chunk, got, tt.want)
		}
	}
}
