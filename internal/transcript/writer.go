package transcript

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// supported transcript output formats
type Format string

const (
	FormatText Format = "text"
	FormatSRT  Format = "srt"
	FormatJSON Format = "json"
)

// Annotations marks which segment indices explain a problem and which
// explain a solution. Either set may be empty.
type Annotations struct {
	ProblemIndices  []int
	SolutionIndices []int
}

// interface for writing a transcript to a file
type Writer interface {
	Write(segments []Segment, ann Annotations, path string) error
}

func NewWriter(format Format) (Writer, error) {
	switch format {
	case FormatText:
		return &TextWriter{}, nil
	case FormatSRT:
		return &SRTWriter{}, nil
	case FormatJSON:
		return &JSONWriter{}, nil
	default:
		return nil, fmt.Errorf("unsupported format %q: use text, srt, or json", format)
	}
}

// plain script form: "[MM:SS] text" per line, with problem/solution markers
type TextWriter struct{}

func (w *TextWriter) Write(segments []Segment, ann Annotations, path string) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	problems := indexSet(ann.ProblemIndices)
	solutions := indexSet(ann.SolutionIndices)

	var sb strings.Builder
	for i, seg := range segments {
		sb.WriteString(fmt.Sprintf("[%s] %s", seg.Timestamp(), seg.Text))
		switch {
		case problems[i] && solutions[i]:
			sb.WriteString("  (problem, solution)")
		case problems[i]:
			sb.WriteString("  (problem)")
		case solutions[i]:
			sb.WriteString("  (solution)")
		}
		sb.WriteString("\n")
	}

	return os.WriteFile(path, []byte(sb.String()), 0644)
}

// SubRip format
type SRTWriter struct{}

func (w *SRTWriter) Write(segments []Segment, _ Annotations, path string) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	var sb strings.Builder
	for i, seg := range segments {
		sb.WriteString(fmt.Sprintf("%d\n", i+1))
		sb.WriteString(fmt.Sprintf("%s --> %s\n",
			formatSRTTime(seg.Start),
			formatSRTTime(seg.End)))
		sb.WriteString(seg.Text)
		sb.WriteString("\n\n")
	}

	return os.WriteFile(path, []byte(sb.String()), 0644)
}

// JSON form mirroring the poll snapshot: segments plus both index sets
type JSONWriter struct{}

type jsonTranscript struct {
	Segments        []jsonSegment `json:"segments"`
	ProblemIndices  []int         `json:"problem_indices"`
	SolutionIndices []int         `json:"solution_indices"`
}

type jsonSegment struct {
	Start     float64 `json:"start"`
	End       float64 `json:"end"`
	Text      string  `json:"text"`
	Timestamp string  `json:"timestamp"`
}

func (w *JSONWriter) Write(segments []Segment, ann Annotations, path string) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	out := jsonTranscript{
		Segments:        make([]jsonSegment, 0, len(segments)),
		ProblemIndices:  sortedCopy(ann.ProblemIndices),
		SolutionIndices: sortedCopy(ann.SolutionIndices),
	}
	for _, seg := range segments {
		out.Segments = append(out.Segments, jsonSegment{
			Start:     seg.StartSeconds(),
			End:       seg.EndSeconds(),
			Text:      seg.Text,
			Timestamp: seg.Timestamp(),
		})
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode transcript: %w", err)
	}

	return os.WriteFile(path, append(data, '\n'), 0644)
}

func formatSRTTime(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60
	millis := int(d.Milliseconds()) % 1000

	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, seconds, millis)
}

func indexSet(indices []int) map[int]bool {
	set := make(map[int]bool, len(indices))
	for _, i := range indices {
		set[i] = true
	}
	return set
}

func sortedCopy(indices []int) []int {
	out := make([]int, len(indices))
	copy(out, indices)
	sort.Ints(out)
	return out
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	return os.MkdirAll(dir, 0755)
}

// file extension for a format
func GetExtensionForFormat(format Format) string {
	switch format {
	case FormatSRT:
		return ".srt"
	case FormatJSON:
		return ".json"
	default:
		return ".txt"
	}
}
