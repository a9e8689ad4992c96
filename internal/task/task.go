package task

import (
	"time"

	"vidscribe/internal/fault"
	"vidscribe/internal/transcript"
)

// lifecycle state of a transcription task
type Status string

const (
	StatusPending     Status = "pending"
	StatusProcessing  Status = "processing"  // chunk loop in progress
	StatusClassifying Status = "classifying" // segment classification in progress
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
)

// reports whether the status is terminal; terminal states are absorbing
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// error surface shown to pollers of a failed task
type Error struct {
	Kind       fault.Kind `json:"kind"`
	Message    string     `json:"message"`
	Suggestion string     `json:"suggestion"`
}

// Task is one end-to-end transcription request. It is mutated only by the
// single goroutine driving it and read concurrently by pollers through
// registry snapshots.
type Task struct {
	ID              string               `json:"id"`
	Status          Status               `json:"status"`
	Progress        int                  `json:"progress"`
	Segments        []transcript.Segment `json:"segments"`
	ProblemIndices  []int                `json:"problem_indices"`
	SolutionIndices []int                `json:"solution_indices"`
	ChunksProcessed int                  `json:"chunks_processed"`
	ChunksTotal     int                  `json:"chunks_total"`
	Error           *Error               `json:"error,omitempty"`
	CreatedAt       time.Time            `json:"created_at"`
	CompletedAt     time.Time            `json:"completed_at,omitzero"`
}

// clone returns a deep copy safe to hand to a concurrent poller.
func (t *Task) clone() Task {
	out := *t
	out.Segments = append([]transcript.Segment(nil), t.Segments...)
	out.ProblemIndices = append([]int(nil), t.ProblemIndices...)
	out.SolutionIndices = append([]int(nil), t.SolutionIndices...)
	if t.Error != nil {
		errCopy := *t.Error
		out.Error = &errCopy
	}
	return out
}
