package transcribe

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"vidscribe/internal/fault"
	"vidscribe/internal/transcript"
)

// implements Transcriber using the OpenAI Audio API
type OpenAITranscriber struct {
	client  openai.Client
	model   string
	options Options
}

// segment from the Whisper verbose_json response
type whisperSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// verbose_json response structure from Whisper
type whisperVerboseResponse struct {
	Text     string           `json:"text"`
	Segments []whisperSegment `json:"segments"`
	Language string           `json:"language"`
	Duration float64          `json:"duration"`
}

func NewOpenAITranscriber(ctx context.Context, apiKey string, opts Options) (*OpenAITranscriber, error) {
	if apiKey == "" {
		return nil, fault.New(fault.KindBackendTools, "OpenAI API key is required")
	}

	client := openai.NewClient(option.WithAPIKey(apiKey))

	model := opts.Model
	if model == "" {
		model = "whisper-1"
	}

	return &OpenAITranscriber{
		client:  client,
		model:   model,
		options: opts,
	}, nil
}

// transcribes a single audio file; timestamps are relative to that file
func (t *OpenAITranscriber) Transcribe(ctx context.Context, audioPath string) (*Result, error) {
	file, err := os.Open(audioPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio file: %w", err)
	}
	defer file.Close()

	params := openai.AudioTranscriptionNewParams{
		File:                   file,
		Model:                  openai.AudioModel(t.model),
		ResponseFormat:         openai.AudioResponseFormatVerboseJSON,
		TimestampGranularities: []string{"segment"},
	}

	if t.options.Language != "" {
		params.Language = openai.String(t.options.Language)
	}
	if t.options.Prompt != "" {
		params.Prompt = openai.String(t.options.Prompt)
	}

	resp, err := t.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("transcription failed: %w", err)
	}

	segments, duration, err := parseVerboseJSONResponse(resp.RawJSON())
	if err != nil {
		// responses without timestamped segments still carry the full text
		segments = []transcript.Segment{{
			Start: 0,
			End:   duration,
			Text:  strings.TrimSpace(resp.Text),
		}}
	}

	return &Result{
		Segments: segments,
		Language: t.options.Language,
		Duration: duration,
	}, nil
}

func parseVerboseJSONResponse(rawJSON string) ([]transcript.Segment, time.Duration, error) {
	if rawJSON == "" {
		return nil, 0, fmt.Errorf("empty response")
	}

	var verboseResp whisperVerboseResponse
	if err := json.Unmarshal([]byte(rawJSON), &verboseResp); err != nil {
		return nil, 0, fmt.Errorf("failed to parse verbose_json response: %w", err)
	}

	duration := time.Duration(verboseResp.Duration * float64(time.Second))

	if len(verboseResp.Segments) == 0 {
		if verboseResp.Text == "" {
			return nil, duration, fmt.Errorf("no segments or text in response")
		}
		return []transcript.Segment{{
			Start: 0,
			End:   duration,
			Text:  strings.TrimSpace(verboseResp.Text),
		}}, duration, nil
	}

	segments := make([]transcript.Segment, 0, len(verboseResp.Segments))
	for _, seg := range verboseResp.Segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		segments = append(segments, transcript.Segment{
			Start: time.Duration(seg.Start * float64(time.Second)),
			End:   time.Duration(seg.End * float64(time.Second)),
			Text:  text,
		})
	}

	return segments, duration, nil
}
