package classify

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"vidscribe/internal/fault"
	"vidscribe/internal/logging"
	"vidscribe/internal/transcript"
)

// interface for the text-generation capability consumed by the classifier
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// text-generation provider
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
)

// classification options
type Options struct {
	WindowDuration time.Duration // video time per classification window
	Model          string
}

// segment indices marked as problem or solution statements
type Result struct {
	ProblemIndices  []int
	SolutionIndices []int
}

// creates a generator for the given provider
func Factory(ctx context.Context, provider Provider, apiKey, model string) (Generator, error) {
	switch provider {
	case ProviderOpenAI:
		return NewOpenAIGenerator(apiKey, model)
	case ProviderAnthropic:
		return NewAnthropicGenerator(apiKey, model)
	default:
		return nil, fault.New(fault.KindBackendTools, fmt.Sprintf("unsupported classification provider: %s", provider))
	}
}

// Classifier marks which transcript segments explain a problem and which
// explain a solution, driven by the user's query.
//
// Asking the model to index into the whole transcript at once is unreliable:
// the longer the prompt, the more likely the returned indices drift. So the
// transcript is partitioned into fixed time windows, each window's prompt
// relabels its segments with their global index, and the model only ever
// copies an index it was shown.
type Classifier struct {
	gen  Generator
	opts Options
	log  *logging.Logger
}

func NewClassifier(gen Generator, opts Options, log *logging.Logger) *Classifier {
	if opts.WindowDuration <= 0 {
		opts.WindowDuration = 120 * time.Second
	}
	if log == nil {
		log = logging.NewNop()
	}
	return &Classifier{
		gen:  gen,
		opts: opts,
		log:  log,
	}
}

// a contiguous sub-range of global segment indices covering one time window
type window struct {
	first    int
	segments []transcript.Segment
}

func (w window) last() int {
	return w.first + len(w.segments) - 1
}

// Classify partitions the transcript into time windows, asks the generator
// about each, and unions the accepted indices. A failed window contributes
// nothing; only an empty transcript short-circuits.
func (c *Classifier) Classify(ctx context.Context, segments []transcript.Segment, query string) (Result, error) {
	if len(segments) == 0 {
		return Result{}, nil
	}

	windows := partitionWindows(segments, c.opts.WindowDuration)

	problems := make(map[int]bool)
	solutions := make(map[int]bool)

	for i, w := range windows {
		prompt := buildWindowPrompt(query, w)

		response, err := c.gen.Generate(ctx, prompt)
		if err != nil {
			c.log.Warnw("classification window failed",
				"window", i,
				"error", err,
			)
			continue
		}

		parsed, err := parseIndexResponse(response)
		if err != nil {
			c.log.Warnw("could not parse classification response",
				"window", i,
				"error", err,
			)
			continue
		}

		for _, idx := range parsed.Problem {
			if idx >= w.first && idx <= w.last() {
				problems[idx] = true
			} else {
				c.log.Debugw("dropping out-of-range problem index",
					"window", i,
					"index", idx,
				)
			}
		}
		for _, idx := range parsed.Solution {
			if idx >= w.first && idx <= w.last() {
				solutions[idx] = true
			} else {
				c.log.Debugw("dropping out-of-range solution index",
					"window", i,
					"index", idx,
				)
			}
		}
	}

	return Result{
		ProblemIndices:  sortedKeys(problems),
		SolutionIndices: sortedKeys(solutions),
	}, nil
}

// partitionWindows cuts the segment list into contiguous runs, starting a new
// window whenever a segment begins at or past the current window's end. The
// cut is on video time, not segment count, since segment density varies with
// speech rate.
func partitionWindows(segments []transcript.Segment, windowDur time.Duration) []window {
	var windows []window

	current := window{first: 0}
	windowEnd := segments[0].Start + windowDur

	for i, seg := range segments {
		if seg.Start >= windowEnd && len(current.segments) > 0 {
			windows = append(windows, current)
			current = window{first: i}
			windowEnd = seg.Start + windowDur
		}
		current.segments = append(current.segments, seg)
	}
	if len(current.segments) > 0 {
		windows = append(windows, current)
	}

	return windows
}

// buildWindowPrompt lists the window's segments, each prefixed with its
// global index behind a sentinel token, and asks for a JSON object whose
// index arrays copy those numbers verbatim. The model is never asked to
// compute an offset.
func buildWindowPrompt(query string, w window) string {
	var sb strings.Builder

	sb.WriteString("You are analyzing a portion of a video transcript. ")
	sb.WriteString("Each line starts with a sentinel index like #12 followed by a timestamp and the spoken text.\n\n")

	if query != "" {
		sb.WriteString(fmt.Sprintf("User's query: %q\n\n", query))
	}

	sb.WriteString("Transcript lines:\n")
	for i, seg := range w.segments {
		sb.WriteString(fmt.Sprintf("#%d [%s] %s\n", w.first+i, seg.Timestamp(), seg.Text))
	}

	sb.WriteString("\nIMPORTANT INSTRUCTIONS:\n")
	sb.WriteString("1. Identify lines where the speaker explains a PROBLEM (an error, a difficulty, something going wrong).\n")
	sb.WriteString("2. Identify lines where the speaker explains a SOLUTION (a fix, an approach that resolves the problem).\n")
	sb.WriteString("3. Return ONLY a JSON object of the form {\"problem\": [..], \"solution\": [..]}.\n")
	sb.WriteString("4. The arrays must contain ONLY index numbers copied from the # labels above.\n")
	sb.WriteString("5. Never invent or compute an index; only copy the numbers shown.\n")
	sb.WriteString("6. Use empty arrays when nothing qualifies. Do not add any explanation or markdown formatting.\n")

	return sb.String()
}

func sortedKeys(set map[int]bool) []int {
	out := make([]int, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}
