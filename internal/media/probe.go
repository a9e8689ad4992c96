package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"time"

	"vidscribe/internal/fault"
	"vidscribe/internal/ffmpegbin"
)

// read-only information about a local media file
type Info struct {
	Path       string
	Duration   time.Duration
	FormatName string
	Size       int64
}

// JSON output from ffprobe -show_format
type ffprobeOutput struct {
	Format struct {
		Duration   string `json:"duration"`
		FormatName string `json:"format_name"`
		Size       string `json:"size"`
	} `json:"format"`
}

// Prober answers duration/format queries over local media files.
type Prober struct{}

func NewProber() *Prober {
	return &Prober{}
}

// Duration probes the file and returns its playback length. The probe is the
// cheap gate in front of chunked processing, so it never touches the stream
// contents beyond the container header.
func (p *Prober) Duration(ctx context.Context, path string) (time.Duration, error) {
	info, err := p.Probe(ctx, path)
	if err != nil {
		return 0, err
	}
	return info.Duration, nil
}

// Probe runs ffprobe over the file and parses the format section.
func (p *Prober) Probe(ctx context.Context, path string) (*Info, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fault.New(fault.KindValidation, fmt.Sprintf("file not found: %s", path))
	}

	ffprobePath, err := ffmpegbin.FFprobePath()
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, ffprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		path,
	)

	var out bytes.Buffer
	cmd.Stdout = &out

	if err := cmd.Run(); err != nil {
		return nil, fault.Wrap(err, fault.KindFormat, "ffprobe failed")
	}

	return parseProbeOutput(path, out.Bytes())
}

func parseProbeOutput(path string, raw []byte) (*Info, error) {
	var probe ffprobeOutput
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fault.Wrap(err, fault.KindFormat, "failed to parse ffprobe output")
	}

	if probe.Format.Duration == "" {
		return nil, fault.New(fault.KindFormat, "ffprobe reported no duration; file is likely corrupt or not a media file")
	}

	seconds, err := strconv.ParseFloat(probe.Format.Duration, 64)
	if err != nil {
		return nil, fault.Wrap(err, fault.KindFormat, "failed to parse duration")
	}

	size, _ := strconv.ParseInt(probe.Format.Size, 10, 64)

	return &Info{
		Path:       path,
		Duration:   time.Duration(seconds * float64(time.Second)),
		FormatName: probe.Format.FormatName,
		Size:       size,
	}, nil
}
