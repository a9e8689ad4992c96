package transcribe

import (
	"context"
	"fmt"
	"time"

	"vidscribe/internal/fault"
	"vidscribe/internal/transcript"
)

// transcription result for one audio file
type Result struct {
	Segments []transcript.Segment
	Language string
	Duration time.Duration
}

// interface for audio transcription
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (*Result, error)
}

// transcription service provider
type Provider string

const (
	ProviderOpenAI Provider = "openai"
	ProviderGemini Provider = "gemini"
)

// model resource/accuracy tier
type Size string

const (
	SizeTiny  Size = "tiny"
	SizeBase  Size = "base"
	SizeSmall Size = "small"
)

// transcription options
type Options struct {
	Language string // source language of the audio
	Model    string // provider model name; resolved from Size when empty
	Prompt   string
}

// ModelForSize maps a resource tier to a provider model name. Unknown sizes
// fall back to the lightest tier, matching the memory-constrained default.
func ModelForSize(provider Provider, size Size) string {
	switch provider {
	case ProviderGemini:
		switch size {
		case SizeBase, SizeSmall:
			return "gemini-2.5-flash"
		default:
			return "gemini-2.5-flash-lite"
		}
	default:
		// the hosted Whisper API exposes a single model; tiers only matter
		// for providers with a real size ladder
		return "whisper-1"
	}
}

// creates a transcriber for the given provider
func Factory(ctx context.Context, provider Provider, apiKey string, opts Options) (Transcriber, error) {
	switch provider {
	case ProviderOpenAI:
		return NewOpenAITranscriber(ctx, apiKey, opts)
	case ProviderGemini:
		return NewGeminiTranscriber(ctx, apiKey, opts)
	default:
		return nil, fault.New(fault.KindBackendTools, fmt.Sprintf("unsupported transcription provider: %s", provider))
	}
}
