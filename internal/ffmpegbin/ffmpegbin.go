package ffmpegbin

import (
	"os"
	"os/exec"
	"sync"

	"vidscribe/internal/fault"
)

// resolved locations of the media toolchain binaries
type BinaryPaths struct {
	FFmpeg  string
	FFprobe string
}

var (
	ensureOnce sync.Once
	ensureErr  error
	ensurePath BinaryPaths
)

// Ensure resolves ffmpeg and ffprobe once per process. Explicit paths from the
// environment win; otherwise the search path is consulted. A missing binary is
// an operator problem, so it surfaces as a backend_tools fault.
func Ensure() (BinaryPaths, error) {
	ensureOnce.Do(func() {
		ensurePath, ensureErr = ensure()
	})
	return ensurePath, ensureErr
}

func FFmpegPath() (string, error) {
	paths, err := Ensure()
	if err != nil {
		return "", err
	}
	return paths.FFmpeg, nil
}

func FFprobePath() (string, error) {
	paths, err := Ensure()
	if err != nil {
		return "", err
	}
	return paths.FFprobe, nil
}

func ensure() (BinaryPaths, error) {
	ffmpegPath := os.Getenv("VIDSCRIBE_FFMPEG_PATH")
	ffprobePath := os.Getenv("VIDSCRIBE_FFPROBE_PATH")

	if ffmpegPath == "" {
		found, err := exec.LookPath("ffmpeg")
		if err != nil {
			return BinaryPaths{}, fault.Wrap(err, fault.KindBackendTools, "ffmpeg not found")
		}
		ffmpegPath = found
	}
	if ffprobePath == "" {
		found, err := exec.LookPath("ffprobe")
		if err != nil {
			return BinaryPaths{}, fault.Wrap(err, fault.KindBackendTools, "ffprobe not found")
		}
		ffprobePath = found
	}

	return BinaryPaths{FFmpeg: ffmpegPath, FFprobe: ffprobePath}, nil
}
