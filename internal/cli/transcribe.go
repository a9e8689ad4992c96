package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"vidscribe/internal/classify"
	"vidscribe/internal/config"
	"vidscribe/internal/media"
	"vidscribe/internal/task"
	"vidscribe/internal/transcribe"
	"vidscribe/internal/transcript"
)

var transcribeCmd = &cobra.Command{
	Use:   "transcribe [video_file]",
	Short: "Transcribe a video file chunk by chunk",
	Long: `Transcribe the given video file using AI speech-to-text.

The video's audio is extracted and transcribed in sequential chunks
(default 20 seconds each) with timestamps rebased to the source video.
Progress is reported while the task runs.

With --query, the finished transcript is classified: segments explaining
a problem and segments explaining a solution are marked by index.

Examples:
  vidscribe transcribe lecture.mp4
  vidscribe transcribe talk.mp4 --query "why does the build fail"
  vidscribe transcribe demo.mp4 --format srt -o demo.srt
  vidscribe transcribe clip.mp4 --provider gemini --chunk-duration 30`,
	Args: cobra.ExactArgs(1),
	RunE: runTranscribe,
}

func init() {
	rootCmd.AddCommand(transcribeCmd)

	transcribeCmd.Flags().
		StringP("query", "q", "", "Query driving problem/solution classification (empty skips classification)")
	transcribeCmd.Flags().
		String("provider", "", "Transcription provider (openai, gemini)")
	transcribeCmd.Flags().
		String("classifier", "", "Classification provider (openai, anthropic)")
	transcribeCmd.Flags().
		String("model-size", "", "Model resource tier (tiny, base, small)")
	transcribeCmd.Flags().
		Int("chunk-duration", 0, "Chunk duration in seconds")
	transcribeCmd.Flags().
		Int("max-duration", 0, "Maximum accepted video duration in seconds")
	transcribeCmd.Flags().
		StringP("format", "f", "text", "Output format (text, srt, json)")
}

func runTranscribe(cmd *cobra.Command, args []string) error {
	videoPath := args[0]
	ctx := context.Background()

	if _, err := os.Stat(videoPath); os.IsNotExist(err) {
		return fmt.Errorf("file not found: %s", videoPath)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	applyFlags(cmd, cfg)

	query, _ := cmd.Flags().GetString("query")
	formatStr, _ := cmd.Flags().GetString("format")
	outputPath, _ := cmd.Flags().GetString("output")

	format := transcript.Format(strings.ToLower(formatStr))
	writer, err := transcript.NewWriter(format)
	if err != nil {
		return err
	}

	if outputPath == "" {
		baseName := strings.TrimSuffix(videoPath, filepath.Ext(videoPath))
		outputPath = baseName + transcript.GetExtensionForFormat(format)
	}

	scratchDir, err := os.MkdirTemp(cfg.ScratchDir, "vidscribe-*")
	if err != nil {
		return fmt.Errorf("failed to create scratch directory: %w", err)
	}
	defer os.RemoveAll(scratchDir)

	runner, registry, err := buildRunner(ctx, cfg, scratchDir, query)
	if err != nil {
		return err
	}

	logger.Infow("Starting transcription",
		"input", videoPath,
		"provider", cfg.Provider,
		"model_size", cfg.ModelSize,
		"chunk_duration", cfg.ChunkDuration.String(),
	)

	id := runner.Submit(ctx, videoPath, query)

	final, err := pollUntilDone(registry, id)
	if err != nil {
		return err
	}

	if final.Status == task.StatusFailed {
		fmt.Fprintf(os.Stderr, "Transcription failed (%s): %s\n", final.Error.Kind, final.Error.Message)
		fmt.Fprintf(os.Stderr, "  Suggestion: %s\n", final.Error.Suggestion)
		return fmt.Errorf("task %s failed", id)
	}

	ann := transcript.Annotations{
		ProblemIndices:  final.ProblemIndices,
		SolutionIndices: final.SolutionIndices,
	}
	if err := writer.Write(final.Segments, ann, outputPath); err != nil {
		return fmt.Errorf("failed to write transcript: %w", err)
	}

	absOutput, _ := filepath.Abs(outputPath)
	fmt.Printf("Transcript written: %s\n", absOutput)
	fmt.Printf("  Segments: %d\n", len(final.Segments))
	fmt.Printf("  Chunks: %d/%d\n", final.ChunksProcessed, final.ChunksTotal)
	if query != "" {
		fmt.Printf("  Problem segments: %d\n", len(final.ProblemIndices))
		fmt.Printf("  Solution segments: %d\n", len(final.SolutionIndices))
	}

	return nil
}

// applyFlags lets command-line flags override environment configuration.
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	if v, _ := cmd.Flags().GetString("provider"); v != "" {
		cfg.Provider = v
	}
	if v, _ := cmd.Flags().GetString("classifier"); v != "" {
		cfg.Classifier = v
	}
	if v, _ := cmd.Flags().GetString("model-size"); v != "" {
		cfg.ModelSize = v
	}
	if v, _ := cmd.Flags().GetInt("chunk-duration"); v > 0 {
		cfg.ChunkDuration = time.Duration(v) * time.Second
	}
	if v, _ := cmd.Flags().GetInt("max-duration"); v > 0 {
		cfg.MaxDuration = time.Duration(v) * time.Second
	}
}

// buildRunner wires the pipeline components from configuration.
func buildRunner(ctx context.Context, cfg *config.Config, scratchDir, query string) (*task.Runner, *task.Registry, error) {
	provider := transcribe.Provider(cfg.Provider)

	apiKey := cfg.OpenAIKey
	if provider == transcribe.ProviderGemini {
		apiKey = cfg.GeminiKey
	}
	if apiKey == "" {
		return nil, nil, fmt.Errorf("API key for provider %q is required: set OPENAI_API_KEY or GEMINI_API_KEY", cfg.Provider)
	}

	models := transcribe.NewCache(func(ctx context.Context, size transcribe.Size) (transcribe.Transcriber, error) {
		return transcribe.Factory(ctx, provider, apiKey, transcribe.Options{
			Model: transcribe.ModelForSize(provider, size),
		})
	})

	var classifier task.Classifier
	if strings.TrimSpace(query) != "" {
		genProvider := classify.Provider(cfg.Classifier)
		genKey := cfg.OpenAIKey
		if genProvider == classify.ProviderAnthropic {
			genKey = cfg.AnthropicKey
		}
		gen, err := classify.Factory(ctx, genProvider, genKey, "")
		if err != nil {
			return nil, nil, err
		}
		classifier = classify.NewClassifier(gen, classify.Options{
			WindowDuration: cfg.WindowDuration,
		}, logger)
	}

	registry := task.NewRegistry(cfg.TaskRetention)
	runner := task.NewRunner(
		media.NewProber(),
		media.NewExtractor(scratchDir, media.DefaultExtractOptions()),
		models,
		classifier,
		registry,
		logger,
		task.Options{
			ChunkDuration: cfg.ChunkDuration,
			MaxDuration:   cfg.MaxDuration,
			ModelSize:     transcribe.Size(cfg.ModelSize),
		},
	)

	return runner, registry, nil
}

// pollUntilDone polls the registry the way an HTTP client would, printing
// progress transitions until the task reaches a terminal state.
func pollUntilDone(registry *task.Registry, id string) (task.Task, error) {
	lastProgress := -1
	for {
		snapshot, err := registry.Get(id)
		if err != nil {
			return task.Task{}, err
		}

		if snapshot.Progress != lastProgress {
			lastProgress = snapshot.Progress
			logger.Infow("Progress",
				"status", string(snapshot.Status),
				"progress", snapshot.Progress,
				"chunks", fmt.Sprintf("%d/%d", snapshot.ChunksProcessed, snapshot.ChunksTotal),
			)
		}

		if snapshot.Status.Terminal() {
			return snapshot, nil
		}

		time.Sleep(500 * time.Millisecond)
	}
}
