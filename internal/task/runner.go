package task

import (
	"context"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"vidscribe/internal/classify"
	"vidscribe/internal/fault"
	"vidscribe/internal/logging"
	"vidscribe/internal/transcribe"
	"vidscribe/internal/transcript"
)

// duration query over a local media file
type Prober interface {
	Duration(ctx context.Context, path string) (time.Duration, error)
}

// materializes one audio chunk to a scratch location
type Extractor interface {
	ExtractChunk(ctx context.Context, videoPath string, start, dur time.Duration, index int) (string, error)
}

// marks problem/solution segments over a full transcript
type Classifier interface {
	Classify(ctx context.Context, segments []transcript.Segment, query string) (classify.Result, error)
}

// runner configuration
type Options struct {
	ChunkDuration time.Duration // audio chunk length (default 20s)
	MaxDuration   time.Duration // duration ceiling enforced before processing (default 5m)
	ModelSize     transcribe.Size
}

// Runner drives transcription tasks through their state machine: probe,
// sequential chunk loop, optional classification, finalize. Multiple tasks
// may run concurrently, each on its own goroutine; within one task chunk
// processing is strictly sequential so peak memory stays bounded to one
// chunk plus one model handle.
type Runner struct {
	probe      Prober
	extractor  Extractor
	models     *transcribe.Cache
	classifier Classifier // nil disables classification
	registry   *Registry
	log        *logging.Logger
	opts       Options

	removeFile func(string) error
}

func NewRunner(probe Prober, extractor Extractor, models *transcribe.Cache, classifier Classifier, registry *Registry, log *logging.Logger, opts Options) *Runner {
	if opts.ChunkDuration <= 0 {
		opts.ChunkDuration = 20 * time.Second
	}
	if opts.MaxDuration <= 0 {
		opts.MaxDuration = 5 * time.Minute
	}
	if opts.ModelSize == "" {
		opts.ModelSize = transcribe.SizeTiny
	}
	if log == nil {
		log = logging.NewNop()
	}

	return &Runner{
		probe:      probe,
		extractor:  extractor,
		models:     models,
		classifier: classifier,
		registry:   registry,
		log:        log,
		opts:       opts,
		removeFile: os.Remove,
	}
}

// Submit registers a task and starts processing it in the background. The
// caller polls the registry with the returned identifier.
func (r *Runner) Submit(ctx context.Context, videoPath, query string) string {
	t := r.registry.Create()
	go r.Run(ctx, t.ID, videoPath, query)
	return t.ID
}

// Run processes one task to a terminal state.
func (r *Runner) Run(ctx context.Context, id, videoPath, query string) {
	duration, err := r.probe.Duration(ctx, videoPath)
	if err != nil {
		r.fail(id, err)
		return
	}

	// the ceiling gate runs before any chunk is extracted, so an oversized
	// request fails without wasting I/O
	if duration > r.opts.MaxDuration {
		r.fail(id, fault.New(fault.KindValidation, fmt.Sprintf(
			"video duration %s exceeds the %s limit",
			duration.Round(time.Second), r.opts.MaxDuration,
		)))
		return
	}

	model, err := r.models.Get(ctx, r.opts.ModelSize)
	if err != nil {
		r.fail(id, err)
		return
	}

	total := ChunkCount(duration, r.opts.ChunkDuration)
	_ = r.registry.Update(id, func(t *Task) {
		t.Status = StatusProcessing
		t.ChunksTotal = total
	})

	for i := 0; i < total; i++ {
		start := time.Duration(i) * r.opts.ChunkDuration
		dur := r.opts.ChunkDuration
		if start+dur > duration {
			dur = duration - start
		}

		chunkPath, err := r.extractor.ExtractChunk(ctx, videoPath, start, dur, i)
		if err != nil {
			r.fail(id, err)
			return
		}

		segments, err := r.transcribeChunk(ctx, model, chunkPath, start)
		if err != nil {
			// one bad chunk leaves a gap in the transcript; the task carries on
			r.log.Warnw("chunk transcription failed",
				"task", id,
				"chunk", i,
				"error", err,
			)
		}

		progress := int(math.Round(100 * float64(i+1) / float64(total)))
		chunk := i
		_ = r.registry.Update(id, func(t *Task) {
			t.Segments = append(t.Segments, segments...)
			t.ChunksProcessed = chunk + 1
			t.Progress = progress
		})
	}

	if strings.TrimSpace(query) != "" && r.classifier != nil {
		r.classify(ctx, id, query)
	}

	_ = r.registry.Update(id, func(t *Task) {
		t.Status = StatusCompleted
		t.Progress = 100
		t.CompletedAt = time.Now()
	})
}

// transcribeChunk transcribes one scratch file and rebases its timestamps.
// The scratch file is removed on both the success and failure path; a removal
// failure is logged but never masks the chunk's own result.
func (r *Runner) transcribeChunk(ctx context.Context, model transcribe.Transcriber, chunkPath string, offset time.Duration) ([]transcript.Segment, error) {
	defer func() {
		if rmErr := r.removeFile(chunkPath); rmErr != nil && !os.IsNotExist(rmErr) {
			r.log.Warnw("failed to remove chunk file",
				"path", chunkPath,
				"error", rmErr,
			)
		}
	}()

	return transcribe.TranscribeChunk(ctx, model, chunkPath, offset)
}

// classify runs the classifier over the accumulated transcript. A
// classification failure is non-fatal; the task completes with empty sets.
func (r *Runner) classify(ctx context.Context, id, query string) {
	_ = r.registry.Update(id, func(t *Task) {
		t.Status = StatusClassifying
	})

	snapshot, err := r.registry.Get(id)
	if err != nil {
		return
	}

	result, err := r.classifier.Classify(ctx, snapshot.Segments, query)
	if err != nil {
		r.log.Warnw("classification failed",
			"task", id,
			"error", err,
		)
		return
	}

	_ = r.registry.Update(id, func(t *Task) {
		t.ProblemIndices = result.ProblemIndices
		t.SolutionIndices = result.SolutionIndices
	})
}

func (r *Runner) fail(id string, err error) {
	fe := fault.AsError(err)
	r.log.Errorw("task failed",
		"task", id,
		"kind", fe.Kind,
		"error", err,
	)
	_ = r.registry.Update(id, func(t *Task) {
		t.Status = StatusFailed
		t.Error = &Error{
			Kind:       fe.Kind,
			Message:    fe.Message,
			Suggestion: fe.Suggestion,
		}
		t.CompletedAt = time.Now()
	})
}

// ChunkCount reports how many chunks of length chunk cover duration d.
func ChunkCount(d, chunk time.Duration) int {
	if d <= 0 || chunk <= 0 {
		return 0
	}
	return int(math.Ceil(float64(d) / float64(chunk)))
}
