package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	"vidscribe/internal/fault"
	"vidscribe/internal/ffmpegbin"
)

// settings for the audio stream written to scratch chunks
type ExtractOptions struct {
	Format     string // output format (mp3, wav)
	SampleRate int    // sample rate in Hz
	Channels   int    // 1 = mono, 2 = stereo
	Bitrate    string // bitrate for lossy formats (e.g. "64k")
}

// defaults tuned for speech transcription
func DefaultExtractOptions() ExtractOptions {
	return ExtractOptions{
		Format:     "mp3",
		SampleRate: 16000,
		Channels:   1,
		Bitrate:    "64k",
	}
}

// Extractor materializes audio-only chunks of a video to a scratch directory.
// It never deletes its output; the caller owns cleanup.
type Extractor struct {
	scratchDir string
	opts       ExtractOptions
}

func NewExtractor(scratchDir string, opts ExtractOptions) *Extractor {
	return &Extractor{
		scratchDir: scratchDir,
		opts:       opts,
	}
}

// ExtractChunk writes the audio of [start, start+dur) to a standalone scratch
// file and returns its path. The ffmpeg invocation streams disk-to-disk, so no
// part of the video outside the window enters process memory. A start+dur past
// end-of-stream is clamped by ffmpeg; the last chunk is simply shorter.
func (e *Extractor) ExtractChunk(ctx context.Context, videoPath string, start, dur time.Duration, index int) (string, error) {
	if _, err := os.Stat(videoPath); os.IsNotExist(err) {
		return "", fault.New(fault.KindValidation, fmt.Sprintf("video file not found: %s", videoPath))
	}

	if err := os.MkdirAll(e.scratchDir, 0755); err != nil {
		return "", fault.Wrap(err, fault.KindProcessing, "failed to create scratch directory")
	}

	ffmpegPath, err := ffmpegbin.FFmpegPath()
	if err != nil {
		return "", err
	}

	chunkPath := filepath.Join(
		e.scratchDir,
		fmt.Sprintf("chunk_%03d.%s", index, e.opts.Format),
	)

	kwargs := ffmpeg.KwArgs{
		"ss": start.Seconds(),
		"t":  dur.Seconds(),
		"vn": "",
		"ar": e.opts.SampleRate,
		"ac": e.opts.Channels,
		"y":  "",
	}

	switch e.opts.Format {
	case "wav":
		kwargs["acodec"] = "pcm_s16le"
	default:
		kwargs["acodec"] = "libmp3lame"
		if e.opts.Bitrate != "" {
			kwargs["b:a"] = e.opts.Bitrate
		}
	}

	err = ffmpeg.Input(videoPath).
		Output(chunkPath, kwargs).
		OverWriteOutput().
		SetFfmpegPath(ffmpegPath).
		Run()

	if err != nil {
		_ = os.Remove(chunkPath)
		return "", fault.Wrap(err, fault.KindFormat, fmt.Sprintf("failed to extract chunk %d", index))
	}

	info, err := os.Stat(chunkPath)
	if err != nil || info.Size() == 0 {
		_ = os.Remove(chunkPath)
		return "", fault.New(fault.KindFormat, fmt.Sprintf("chunk %d extraction produced no audio", index))
	}

	return chunkPath, nil
}
