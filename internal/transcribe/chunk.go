package transcribe

import (
	"context"
	"time"

	"vidscribe/internal/transcript"
)

// TranscribeChunk runs the transcriber over one chunk's audio and rebases the
// chunk-relative timestamps to the chunk's absolute offset in the source
// video. Without the rebase every chunk after the first would restart its
// clock at zero, corrupting seek behavior and classification windows.
func TranscribeChunk(ctx context.Context, t Transcriber, chunkPath string, offset time.Duration) ([]transcript.Segment, error) {
	result, err := t.Transcribe(ctx, chunkPath)
	if err != nil {
		return nil, err
	}
	return RebaseSegments(result.Segments, offset), nil
}

// RebaseSegments shifts every segment by the chunk offset.
func RebaseSegments(segments []transcript.Segment, offset time.Duration) []transcript.Segment {
	rebased := make([]transcript.Segment, len(segments))
	for i, seg := range segments {
		rebased[i] = transcript.Segment{
			Start: seg.Start + offset,
			End:   seg.End + offset,
			Text:  seg.Text,
		}
	}
	return rebased
}
