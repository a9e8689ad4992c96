package fault

import (
	"errors"
	"fmt"
	"strings"
)

// category of a pipeline failure, reported to pollers
type Kind string

const (
	KindValidation   Kind = "validation"    // user-fixable precondition (duration, file type)
	KindBackendTools Kind = "backend_tools" // required binary or API credential missing
	KindFormat       Kind = "format"        // unsupported codec/container or corrupt media
	KindResources    Kind = "resources"     // memory/CPU exhaustion from the toolchain
	KindProcessing   Kind = "processing"    // anything uncategorized
)

// Error carries a kind and an actionable suggestion alongside the message.
type Error struct {
	Kind       Kind
	Message    string
	Suggestion string
	cause      error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// creates a classified error with the default suggestion for its kind
func New(kind Kind, message string) *Error {
	return &Error{
		Kind:       kind,
		Message:    message,
		Suggestion: SuggestionFor(kind),
	}
}

// wraps an underlying error with a kind and message prefix
func Wrap(err error, kind Kind, message string) *Error {
	return &Error{
		Kind:       kind,
		Message:    fmt.Sprintf("%s: %v", message, err),
		Suggestion: SuggestionFor(kind),
		cause:      err,
	}
}

// KindOf classifies an arbitrary error. Typed *Error values classify
// structurally; untyped errors fall back to message heuristics so that
// failures escaping third-party code still land in a useful bucket.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "executable file not found"),
		strings.Contains(msg, "no such binary"),
		strings.Contains(msg, "api key"):
		return KindBackendTools
	case strings.Contains(msg, "out of memory"),
		strings.Contains(msg, "cannot allocate"),
		strings.Contains(msg, "resource temporarily unavailable"):
		return KindResources
	case strings.Contains(msg, "invalid data"),
		strings.Contains(msg, "codec"),
		strings.Contains(msg, "moov atom"),
		strings.Contains(msg, "unsupported"):
		return KindFormat
	default:
		return KindProcessing
	}
}

// AsError normalizes any error to a classified *Error.
func AsError(err error) *Error {
	var fe *Error
	if errors.As(err, &fe) {
		return fe
	}
	kind := KindOf(err)
	return &Error{
		Kind:       kind,
		Message:    err.Error(),
		Suggestion: SuggestionFor(kind),
		cause:      err,
	}
}

// default human-actionable suggestion per kind
func SuggestionFor(kind Kind) string {
	switch kind {
	case KindValidation:
		return "Check the video duration and file type, then resubmit."
	case KindBackendTools:
		return "Install ffmpeg/ffprobe and make sure they are on PATH, and verify API credentials are set."
	case KindFormat:
		return "Re-encode the video to a common container such as mp4 (H.264/AAC) and try again."
	case KindResources:
		return "Free up memory or switch to a smaller model tier, then retry."
	default:
		return "Retry the request; if the problem persists, check the server logs."
	}
}
